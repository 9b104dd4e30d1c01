package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/routine"
)

// commandSource identifies this controller in bridge command payloads.
const commandSource = "rules"

// Execute carries out one action against the current device snapshot.
func (e *Engine) Execute(ctx context.Context, a action.Action) error {
	switch a := a.(type) {
	case action.SetDeviceState:
		return e.setDeviceState(ctx, a)
	case action.ActivateScene:
		return e.activateScene(ctx, a, e.devices.Snapshot())
	case action.CycleScenes:
		return e.cycleScenes(ctx, a)
	case action.Dim:
		return e.dim(ctx, a)
	case action.Custom:
		return e.custom(a)
	case action.ForceTriggerRoutine:
		return e.forceTrigger(a.RoutineID)
	default:
		return fmt.Errorf("%w: %T", action.ErrUnknownAction, a)
	}
}

func (e *Engine) setDeviceState(ctx context.Context, a action.SetDeviceState) error {
	key := a.Device.Key()
	current, ok := e.devices.Snapshot()[key]
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, key)
	}

	updated, err := current.Apply(map[string]any(a.Device.State))
	if err != nil {
		return err
	}
	updated.SceneID = a.Device.SceneID
	return e.apply(ctx, updated)
}

func (e *Engine) activateScene(ctx context.Context, a action.ActivateScene, snapshot device.DevicesState) error {
	targets, err := e.sceneTargets(a, snapshot)
	if err != nil {
		return err
	}

	sceneID := string(a.SceneID)
	var firstErr error
	for _, t := range targets {
		current := snapshot[t.key]
		updated, err := current.Apply(map[string]any(t.state))
		if err != nil {
			e.logger.Warn("scene state rejected", "scene", a.SceneID, "key", t.key.String(), "error", err)
			firstErr = keepFirst(firstErr, err)
			continue
		}
		id := sceneID
		updated.SceneID = &id
		if err := e.apply(ctx, updated); err != nil {
			firstErr = keepFirst(firstErr, err)
		}
	}
	e.logger.Info("scene activated", "scene", a.SceneID, "devices", len(targets))
	return firstErr
}

type sceneTarget struct {
	key   device.Key
	state device.State
}

// sceneTargets returns the scoped devices of a scene with their override
// states, ordered by key.
func (e *Engine) sceneTargets(a action.ActivateScene, snapshot device.DevicesState) ([]sceneTarget, error) {
	flat, ok := e.catalog.Scenes.Resolve(snapshot)[a.SceneID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, a.SceneID)
	}

	scope := e.scope(a.DeviceKeys, a.GroupKeys, snapshot)
	targets := make([]sceneTarget, 0, len(flat.Devices))
	for key, state := range flat.Devices {
		if scope != nil && !slices.Contains(scope, key) {
			continue
		}
		if _, ok := snapshot[key]; !ok {
			continue
		}
		targets = append(targets, sceneTarget{key: key, state: state})
	}
	slices.SortFunc(targets, func(x, y sceneTarget) int { return compareKeys(x.key, y.key) })
	return targets, nil
}

// scope returns the union of the named devices and group members, or nil
// when neither is given.
func (e *Engine) scope(keys []device.Key, groups []group.ID, snapshot device.DevicesState) []device.Key {
	if len(keys) == 0 && len(groups) == 0 {
		return nil
	}
	union := make([]device.Key, 0, len(keys))
	union = append(union, keys...)
	if len(groups) > 0 {
		union = append(union, e.catalog.Groups.Resolve(snapshot).DeviceKeys(groups)...)
	}
	slices.SortFunc(union, compareKeys)
	return slices.Compact(union)
}

// cycleScenes activates the entry after the one currently active. An entry
// is active when all of its scoped devices carry its scene.
func (e *Engine) cycleScenes(ctx context.Context, a action.CycleScenes) error {
	if len(a.Scenes) == 0 {
		return nil
	}
	snapshot := e.devices.Snapshot()

	next := 0
	for i, entry := range a.Scenes {
		if e.isActive(entry, snapshot) {
			next = i + 1
			break
		}
	}
	if next == len(a.Scenes) {
		if a.NoWrap {
			next = len(a.Scenes) - 1
		} else {
			next = 0
		}
	}
	return e.activateScene(ctx, a.Scenes[next], snapshot)
}

func (e *Engine) isActive(entry action.ActivateScene, snapshot device.DevicesState) bool {
	targets, err := e.sceneTargets(entry, snapshot)
	if err != nil || len(targets) == 0 {
		return false
	}
	for _, t := range targets {
		d := snapshot[t.key]
		if d.SceneID == nil || *d.SceneID != string(entry.SceneID) {
			return false
		}
	}
	return true
}

// dim steps the brightness of every powered-on managed device in scope.
// A dimmed device no longer shows an active scene.
func (e *Engine) dim(ctx context.Context, a action.Dim) error {
	if math.IsNaN(a.Step) || math.Abs(a.Step) > 1 {
		return fmt.Errorf("%w: dim step %v outside [-1, 1]", ErrInvalidAction, a.Step)
	}

	snapshot := e.devices.Snapshot()
	keys := e.scope(a.DeviceKeys, a.GroupKeys, snapshot)
	if keys == nil {
		keys = snapshot.Keys()
	}

	var firstErr error
	for _, key := range keys {
		current, ok := snapshot[key]
		if !ok || !current.IsPoweredOn() {
			continue
		}

		brightness := 1.0
		if b, ok := current.State["brightness"].(float64); ok {
			brightness = b
		}
		state := current.State.Clone()
		state["brightness"] = math.Min(1, math.Max(0, brightness+a.Step))

		updated, err := current.Apply(map[string]any(state))
		if err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		updated.SceneID = nil
		if err := e.apply(ctx, updated); err != nil {
			firstErr = keepFirst(firstErr, err)
		}
	}
	return firstErr
}

func (e *Engine) custom(a action.Custom) error {
	if a.IntegrationID == "" {
		return fmt.Errorf("%w: custom action without integration", ErrInvalidAction)
	}
	payload, err := json.Marshal(map[string]any{
		"id":             uuid.NewString(),
		"integration_id": a.IntegrationID,
		"command":        "custom",
		"payload":        a.Payload,
		"source":         commandSource,
	})
	if err != nil {
		return fmt.Errorf("marshalling custom command: %w", err)
	}
	return e.publish(mqtt.Topics{}.BridgeCustom(a.IntegrationID), payload)
}

// forceTrigger runs a routine regardless of its condition or enabled flag.
func (e *Engine) forceTrigger(id routine.ID) error {
	if _, err := e.catalog.Routines.Get(id); err != nil {
		return err
	}
	return e.runRoutine(id, e.devices.Snapshot())
}

// apply sends the new state to the device's bridge, then records it.
func (e *Engine) apply(ctx context.Context, d device.Device) error {
	payload, err := commandPayload(d)
	if err != nil {
		return err
	}
	if err := e.publish(mqtt.Topics{}.BridgeCommand(d.IntegrationID, d.ID), payload); err != nil {
		return err
	}

	if err := e.devices.Upsert(ctx, &d); err != nil {
		return fmt.Errorf("storing %s: %w", d.Key(), err)
	}
	if e.telemetry != nil {
		e.telemetry.WriteDeviceState(d)
	}
	e.logger.Debug("device state applied", "key", d.Key().String())
	return nil
}

func (e *Engine) publish(topic string, payload []byte) error {
	if e.mqtt == nil {
		return nil
	}
	if err := e.mqtt.Publish(topic, payload, e.qos, false); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func commandPayload(d device.Device) ([]byte, error) {
	var sceneID any
	if d.SceneID != nil {
		sceneID = *d.SceneID
	}
	payload, err := json.Marshal(map[string]any{
		"id":         uuid.NewString(),
		"device_id":  d.ID,
		"command":    "set_state",
		"parameters": d.State,
		"scene_id":   sceneID,
		"source":     commandSource,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling command: %w", err)
	}
	return payload, nil
}

func compareKeys(a, b device.Key) int {
	return strings.Compare(a.String(), b.String())
}

func keepFirst(current, err error) error {
	if current != nil {
		return current
	}
	return err
}
