package automation

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/event"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
)

// StateHandler returns an MQTT handler that turns bridge state reports on
// graylogic/state/{integration}/{device} into DeviceUpdated messages.
//
// Payload:
//
//	{"name": "Living Room Lamp", "kind": "managed",
//	 "state": {"power": true}, "scene_id": "evening"}
//	{"name": "Hall Temp", "kind": "sensor", "value": 21.5}
//
// A managed report without scene_id keeps the device's current scene.
func StateHandler(tx event.TxChannel) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		d, err := ParseStateReport(topic, payload)
		if err != nil {
			return err
		}
		tx.Send(event.DeviceUpdated{Device: d})
		return nil
	}
}

// ParseStateReport decodes one bridge state message.
func ParseStateReport(topic string, payload []byte) (device.Device, error) {
	integrationID, deviceID, ok := mqtt.ParseBridgeState(topic)
	if !ok {
		return device.Device{}, fmt.Errorf("%w: unexpected topic %q", ErrInvalidStateReport, topic)
	}
	if !gjson.ValidBytes(payload) {
		return device.Device{}, fmt.Errorf("%w: payload is not JSON", ErrInvalidStateReport)
	}
	report := gjson.ParseBytes(payload)
	if !report.IsObject() {
		return device.Device{}, fmt.Errorf("%w: payload is not an object", ErrInvalidStateReport)
	}

	d := device.Device{
		ID:            deviceID,
		IntegrationID: integrationID,
		Name:          report.Get("name").String(),
		Kind:          device.Kind(report.Get("kind").String()),
	}
	if d.Kind == "" {
		d.Kind = device.KindManaged
	}

	switch d.Kind {
	case device.KindManaged:
		state, err := device.ValidateState(report.Get("state").Value())
		if err != nil {
			return device.Device{}, fmt.Errorf("%w: %w", ErrInvalidStateReport, err)
		}
		d.State = state
		if sceneID := report.Get("scene_id"); sceneID.Type == gjson.String {
			id := sceneID.String()
			d.SceneID = &id
		}
	case device.KindSensor:
		d.SensorValue = report.Get("value").Value()
	}

	if err := device.ValidateDevice(&d); err != nil {
		return device.Device{}, fmt.Errorf("%w: %w", ErrInvalidStateReport, err)
	}
	return d, nil
}

// ActionRequestHandler returns an MQTT handler that decodes externally
// requested actions and puts them on the bus.
func ActionRequestHandler(tx event.TxChannel) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		a, err := action.Unmarshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		tx.Send(event.ActionMessage{Action: a})
		return nil
	}
}
