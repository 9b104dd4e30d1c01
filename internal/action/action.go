// Package action defines the commands rule evaluation hands off for
// execution: scene activations, custom integration payloads, routine
// triggers and device state writes.
//
// Actions travel as JSON objects tagged by an "action" field:
//
//	{"action": "ActivateScene", "scene_id": "evening", "group_keys": ["kitchen"]}
package action

import (
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
	"github.com/nerrad567/gray-logic-rules/internal/routine"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// Kind is the value of an action's "action" tag.
type Kind string

const (
	KindActivateScene       Kind = "ActivateScene"
	KindCycleScenes         Kind = "CycleScenes"
	KindCustom              Kind = "Custom"
	KindDim                 Kind = "Dim"
	KindForceTriggerRoutine Kind = "ForceTriggerRoutine"
	KindSetDeviceState      Kind = "SetDeviceState"
)

// Action is one of the concrete action types in this package.
type Action interface {
	Kind() Kind
	isAction()
}

// ActivateScene requests activation of a scene.
//
// With neither DeviceKeys nor GroupKeys set the whole scene applies;
// otherwise only devices in the union of both scopes are touched.
type ActivateScene struct {
	SceneID    scene.ID     `json:"scene_id"`
	DeviceKeys []device.Key `json:"device_keys,omitempty"`
	GroupKeys  []group.ID   `json:"group_keys,omitempty"`
}

// CycleScenes activates the scene after the one currently active on the
// scoped devices, wrapping around unless NoWrap is set.
type CycleScenes struct {
	Scenes []ActivateScene `json:"scenes"`
	NoWrap bool            `json:"nowrap,omitempty"`
}

// Custom hands an opaque payload to an integration.
type Custom struct {
	IntegrationID string `json:"integration_id"`
	Payload       string `json:"payload"`
}

// Dim steps the brightness of the scoped devices by Step, in [-1, 1].
type Dim struct {
	DeviceKeys []device.Key `json:"device_keys,omitempty"`
	GroupKeys  []group.ID   `json:"group_keys,omitempty"`
	Step       float64      `json:"step"`
}

// ForceTriggerRoutine runs a routine's expression, ignoring its condition.
type ForceTriggerRoutine struct {
	RoutineID routine.ID `json:"routine_id"`
}

// SetDeviceState writes a validated state to a device.
type SetDeviceState struct {
	Device device.Device `json:"device"`
}

func (ActivateScene) Kind() Kind       { return KindActivateScene }
func (CycleScenes) Kind() Kind         { return KindCycleScenes }
func (Custom) Kind() Kind              { return KindCustom }
func (Dim) Kind() Kind                 { return KindDim }
func (ForceTriggerRoutine) Kind() Kind { return KindForceTriggerRoutine }
func (SetDeviceState) Kind() Kind      { return KindSetDeviceState }

func (ActivateScene) isAction()       {}
func (CycleScenes) isAction()         {}
func (Custom) isAction()              {}
func (Dim) isAction()                 {}
func (ForceTriggerRoutine) isAction() {}
func (SetDeviceState) isAction()      {}
