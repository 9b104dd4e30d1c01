package influxdb

import (
	"sort"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-rules/internal/device"
)

// Measurement names.
const (
	MeasurementDeviceState = "device_state"
	MeasurementSensor      = "sensor_value"
)

// WriteDeviceState records one point per device write.
//
// Managed devices produce a device_state point whose fields are the state
// leaves joined with underscores (power, brightness, color_h, ...); sensors
// produce a sensor_value point from their scalar or array leaves. Devices
// with nothing numeric, boolean or textual to record are skipped.
func (c *Client) WriteDeviceState(d device.Device) {
	measurement := MeasurementDeviceState
	tags := map[string]string{
		"integration_id": d.IntegrationID,
		"device_id":      d.ID,
		"name":           d.Name,
	}

	fields := make(map[string]any)
	if d.Kind == device.KindSensor {
		measurement = MeasurementSensor
		collectFields(fields, "value", d.SensorValue)
	} else {
		collectFields(fields, "", map[string]any(d.State))
		if d.SceneID != nil {
			tags["scene_id"] = *d.SceneID
		}
	}

	if len(fields) == 0 {
		return
	}
	c.WritePoint(measurement, tags, fields, time.Now())
}

// WritePoint queues a point. Dropped silently when not connected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// collectFields flattens a JSON-shaped value into line-protocol fields.
func collectFields(fields map[string]any, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectFields(fields, fieldKey(prefix, k), val[k])
		}
	case []any:
		for i, elem := range val {
			collectFields(fields, fieldKey(prefix, strconv.Itoa(i)), elem)
		}
	case bool, float64, float32, int, int64, string:
		if prefix != "" {
			fields[prefix] = val
		}
	}
}

func fieldKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}
