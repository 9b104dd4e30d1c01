package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownAction is returned when decoding an action with an unrecognised tag.
var ErrUnknownAction = errors.New("action: unknown kind")

// Marshal encodes an action as a JSON object tagged with its kind.
func Marshal(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownAction)
	}

	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", a.Kind(), err)
	}

	tag, err := json.Marshal(string(a.Kind()))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 12)
	buf.WriteString(`{"action":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Unmarshal decodes a tagged JSON action produced by Marshal.
func Unmarshal(data []byte) (Action, error) {
	var envelope struct {
		Action Kind `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding action: %w", err)
	}

	var (
		a   Action
		err error
	)
	switch envelope.Action {
	case KindActivateScene:
		a, err = decode[ActivateScene](data)
	case KindCycleScenes:
		a, err = decode[CycleScenes](data)
	case KindCustom:
		a, err = decode[Custom](data)
	case KindDim:
		a, err = decode[Dim](data)
	case KindForceTriggerRoutine:
		a, err = decode[ForceTriggerRoutine](data)
	case KindSetDeviceState:
		a, err = decode[SetDeviceState](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, envelope.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", envelope.Action, err)
	}
	return a, nil
}

func decode[T Action](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
