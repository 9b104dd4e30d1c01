package device

import (
	"fmt"
	"slices"
	"strings"
)

// Key uniquely identifies a device across all integrations.
//
// Device IDs are only unique within the integration that reported them,
// so the integration ID is always part of the key.
type Key struct {
	IntegrationID string
	DeviceID      string
}

// NewKey builds a Key from its parts.
func NewKey(integrationID, deviceID string) Key {
	return Key{IntegrationID: integrationID, DeviceID: deviceID}
}

// String returns the canonical "integration/device" form of the key.
func (k Key) String() string {
	return k.IntegrationID + "/" + k.DeviceID
}

// MarshalText implements encoding.TextMarshaler so keys can be used as JSON
// object keys and YAML scalars.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "integration/device" form produced by MarshalText.
func (k *Key) UnmarshalText(text []byte) error {
	integrationID, deviceID, ok := strings.Cut(string(text), "/")
	if !ok || integrationID == "" || deviceID == "" {
		return fmt.Errorf("%w: malformed key %q", ErrInvalidDevice, string(text))
	}
	k.IntegrationID = integrationID
	k.DeviceID = deviceID
	return nil
}

// Kind classifies how a device's value is shaped.
type Kind string

const (
	// KindManaged devices carry a controllable State and an optional active scene.
	KindManaged Kind = "managed"
	// KindSensor devices report a read-only value of arbitrary shape.
	KindSensor Kind = "sensor"
)

// Device is a point-in-time snapshot of one device as reported by its integration.
type Device struct {
	// Identity
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	IntegrationID string `json:"integration_id" yaml:"integration_id"`

	Kind Kind `json:"kind" yaml:"kind"`

	// Managed devices
	State   State   `json:"state,omitempty" yaml:"state,omitempty"`
	SceneID *string `json:"scene_id,omitempty" yaml:"scene_id,omitempty"`

	// Sensor devices
	SensorValue any `json:"sensor_value,omitempty" yaml:"sensor_value,omitempty"`
}

// State holds the controllable state of a managed device.
//
// Examples:
//   - Switch: {"power": true}
//   - Dimmer: {"power": true, "brightness": 0.75, "transition": 0.4}
//   - Colour light: {"power": true, "color": {"h": 35, "s": 0.6}}
type State map[string]any

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return deepCopyMap(s)
}

// Key returns the device's registry key.
func (d *Device) Key() Key {
	return NewKey(d.IntegrationID, d.ID)
}

// IsPoweredOn reports whether a managed device's state has power set.
func (d *Device) IsPoweredOn() bool {
	if d.Kind != KindManaged {
		return false
	}
	on, _ := d.State["power"].(bool) //nolint:errcheck // missing or non-bool power means off
	return on
}

// Value returns the device's current value as a generic JSON-shaped tree.
//
// Managed devices produce {"state": {...}, "scene": id-or-null};
// sensors produce {"value": v}. The returned tree is a deep copy.
func (d *Device) Value() map[string]any {
	if d.Kind == KindSensor {
		return map[string]any{"value": deepCopyValue(d.SensorValue)}
	}

	state := deepCopyMap(d.State)
	if state == nil {
		state = map[string]any{}
	}

	var scene any
	if d.SceneID != nil {
		scene = *d.SceneID
	}

	return map[string]any{
		"state": state,
		"scene": scene,
	}
}

// Apply validates value as a complete replacement state and returns an
// updated copy of the device. The receiver is never modified.
//
// Returns ErrNotManaged for sensors and ErrInvalidState when value does not
// have the shape of a State.
func (d *Device) Apply(value any) (Device, error) {
	if d.Kind != KindManaged {
		return Device{}, fmt.Errorf("%w: %s", ErrNotManaged, d.Key())
	}

	state, err := ValidateState(value)
	if err != nil {
		return Device{}, err
	}

	updated := *d.DeepCopy()
	updated.State = state
	return updated, nil
}

// DeepCopy creates a complete independent copy of the Device.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	cpy.State = deepCopyMap(d.State)
	cpy.SensorValue = deepCopyValue(d.SensorValue)
	if d.SceneID != nil {
		scene := *d.SceneID
		cpy.SceneID = &scene
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case State:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// DevicesState is an immutable snapshot of every known device, by key.
type DevicesState map[Key]Device

// Keys returns the snapshot's keys in ascending order.
func (s DevicesState) Keys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// Get returns the device stored under key.
func (s DevicesState) Get(key Key) (Device, bool) {
	d, ok := s[key]
	return d, ok
}

// FindByName returns the first device (in key order) of the given
// integration whose name matches name case-insensitively.
func (s DevicesState) FindByName(integrationID, name string) (Device, bool) {
	for _, key := range s.Keys() {
		d := s[key]
		if d.IntegrationID == integrationID && strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Device{}, false
}

// Clone returns a deep copy of the snapshot.
func (s DevicesState) Clone() DevicesState {
	cpy := make(DevicesState, len(s))
	for k, d := range s {
		cpy[k] = *d.DeepCopy()
	}
	return cpy
}
