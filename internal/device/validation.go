package device

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Validation constants.
const (
	maxNameLength = 100
	maxIDLength   = 128

	// Size limits for sensor values to prevent DoS via memory exhaustion.
	maxSensorDepth    = 8
	maxStringValueLen = 1024
)

// State field names understood by managed devices.
const (
	fieldPower      = "power"
	fieldBrightness = "brightness"
	fieldColor      = "color" //nolint:misspell // integrations use American "color"
	fieldTransition = "transition"
)

// ValidateDevice performs validation on a device before it enters the registry.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := validateIdentifier("id", d.ID); err != nil {
		return err
	}
	if err := validateIdentifier("integration_id", d.IntegrationID); err != nil {
		return err
	}

	switch d.Kind {
	case KindManaged:
		if d.SensorValue != nil {
			return fmt.Errorf("%w: managed device cannot carry a sensor value", ErrInvalidDevice)
		}
		if d.State != nil {
			if _, err := ValidateState(map[string]any(d.State)); err != nil {
				return err
			}
		}
	case KindSensor:
		if d.State != nil || d.SceneID != nil {
			return fmt.Errorf("%w: sensor cannot carry state or scene", ErrInvalidDevice)
		}
		if err := validateValueSize(d.SensorValue, 0); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDevice, d.Kind)
	}

	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// validateIdentifier checks an ID component; "/" is reserved for Key encoding.
func validateIdentifier(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidDevice, field)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidDevice, field, maxIDLength)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: %s must not contain '/'", ErrInvalidDevice, field)
	}
	return nil
}

// ValidateState checks that value has the shape of a complete managed-device
// State and returns it as a fresh State.
//
// Accepted fields:
//   - power: bool (required)
//   - brightness: number in [0, 1]
//   - color: object with exactly one of {h, s}, {x, y} or {ct}
//   - transition: number of seconds, >= 0
func ValidateState(value any) (State, error) {
	obj, ok := asObject(value)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidState, value)
	}

	power, ok := obj[fieldPower].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: power must be a boolean", ErrInvalidState)
	}
	state := State{fieldPower: power}

	for key, raw := range obj {
		switch key {
		case fieldPower:
			// handled above
		case fieldBrightness:
			b, ok := toFloat(raw)
			if !ok || b < 0 || b > 1 {
				return nil, fmt.Errorf("%w: brightness must be a number between 0 and 1", ErrInvalidState)
			}
			state[fieldBrightness] = b
		case fieldTransition:
			t, ok := toFloat(raw)
			if !ok || t < 0 {
				return nil, fmt.Errorf("%w: transition must be a non-negative number", ErrInvalidState)
			}
			state[fieldTransition] = t
		case fieldColor:
			color, err := validateColor(raw)
			if err != nil {
				return nil, err
			}
			state[fieldColor] = color
		default:
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidState, key)
		}
	}

	return state, nil
}

// validateColor accepts hue/saturation, CIE xy, or colour temperature.
func validateColor(raw any) (map[string]any, error) {
	obj, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: color must be an object", ErrInvalidState)
	}

	ranges := map[string][2]float64{
		"h":  {0, 360},
		"s":  {0, 1},
		"x":  {0, 1},
		"y":  {0, 1},
		"ct": {1, math.MaxUint16},
	}

	color := make(map[string]any, len(obj))
	for key, v := range obj {
		bounds, known := ranges[key]
		if !known {
			return nil, fmt.Errorf("%w: unknown color field %q", ErrInvalidState, key)
		}
		f, ok := toFloat(v)
		if !ok || f < bounds[0] || f > bounds[1] {
			return nil, fmt.Errorf("%w: color.%s out of range", ErrInvalidState, key)
		}
		color[key] = f
	}

	_, hasH := color["h"]
	_, hasS := color["s"]
	_, hasX := color["x"]
	_, hasY := color["y"]
	_, hasCT := color["ct"]

	switch {
	case hasH && hasS && len(color) == 2:
	case hasX && hasY && len(color) == 2:
	case hasCT && len(color) == 1:
	default:
		return nil, fmt.Errorf("%w: color must be one of {h,s}, {x,y} or {ct}", ErrInvalidState)
	}

	return color, nil
}

// validateValueSize bounds the depth and string length of a sensor value.
func validateValueSize(v any, depth int) error {
	if depth > maxSensorDepth {
		return fmt.Errorf("%w: sensor value nested deeper than %d", ErrInvalidDevice, maxSensorDepth)
	}
	switch val := v.(type) {
	case string:
		if len(val) > maxStringValueLen {
			return fmt.Errorf("%w: sensor string exceeds %d bytes", ErrInvalidDevice, maxStringValueLen)
		}
	case map[string]any:
		for _, elem := range val {
			if err := validateValueSize(elem, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range val {
			if err := validateValueSize(elem, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// asObject accepts both plain maps and State.
func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case State:
		return obj, true
	default:
		return nil, false
	}
}

// toFloat converts the numeric shapes produced by encoding/json, gjson and yaml.v3.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
