package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// VariableDiff holds the variables whose value changed during an evaluation.
type VariableDiff map[string]Value

// Diff returns every variable of final whose value differs from the same
// variable in original, including variables original does not have.
func Diff(original, final *Namespace) VariableDiff {
	diff := make(VariableDiff)
	for name, v := range final.vars {
		if old, ok := original.vars[name]; ok && old.Equal(v) {
			continue
		}
		diff[name] = v
	}
	return diff
}

// Paths returns the changed paths in ascending order.
func (d VariableDiff) Paths() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Tree encodes the diff as one nested JSON document: each dotted path
// becomes a chain of objects holding the new value.
//
// A diff holding both a path and a path below it (state = 5 next to
// state.power = true) has no single tree and fails with ErrDiffEncoding.
func (d VariableDiff) Tree() ([]byte, error) {
	paths := d.Paths()
	if err := d.checkOverlap(paths); err != nil {
		return nil, err
	}

	tree := []byte("{}")
	for _, path := range paths {
		raw, err := d[path].ToJSON()
		if err != nil {
			return nil, err
		}
		tree, err = Assign(tree, path, raw)
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func (d VariableDiff) checkOverlap(paths []string) error {
	for _, path := range paths {
		for i := strings.LastIndexByte(path, '.'); i > 0; i = strings.LastIndexByte(path[:i], '.') {
			if _, ok := d[path[:i]]; ok {
				return fmt.Errorf("%w: %s was assigned together with %s", ErrDiffEncoding, path[:i], path)
			}
		}
	}
	return nil
}

// match is one devices.<integration>.<name>.<field> hit in a diff tree.
type match struct {
	integrationID string
	name          string
	value         gjson.Result
}

// queryDevices returns every devices.*.*.<field> entry of tree, in
// document order.
func queryDevices(tree []byte, field string) []match {
	var matches []match

	root := gjson.GetBytes(tree, "devices")
	if !root.IsObject() {
		return nil
	}
	root.ForEach(func(integration, byName gjson.Result) bool {
		if !byName.IsObject() {
			return true
		}
		byName.ForEach(func(name, node gjson.Result) bool {
			if !node.IsObject() {
				return true
			}
			node.ForEach(func(key, value gjson.Result) bool {
				if key.String() == field {
					matches = append(matches, match{
						integrationID: integration.String(),
						name:          name.String(),
						value:         value,
					})
				}
				return true
			})
			return true
		})
		return true
	})
	return matches
}

// findDevice resolves the integration and normalised name read from a
// diff path. The first match in key order wins.
func findDevice(devices device.DevicesState, integrationID, name string) (device.Device, bool) {
	for _, key := range devices.Keys() {
		d := devices[key]
		if d.IntegrationID == integrationID && NormalizeName(d.Name) == name {
			return d, true
		}
	}
	return device.Device{}, false
}

// translateDiff derives actions from a diff tree: one ActivateScene per
// changed devices.*.*.scene string, then one SetDeviceState per changed
// devices.*.*.state that the device accepts. Unresolved devices and
// rejected states are skipped.
func translateDiff(tree []byte, devices device.DevicesState, logger Logger) []action.Action {
	var actions []action.Action

	for _, m := range queryDevices(tree, "scene") {
		d, ok := findDevice(devices, m.integrationID, m.name)
		if !ok {
			logger.Debug("diff references unknown device", "integration_id", m.integrationID, "name", m.name)
			continue
		}
		if m.value.Type != gjson.String {
			continue
		}
		actions = append(actions, action.ActivateScene{
			SceneID:    scene.ID(m.value.String()),
			DeviceKeys: []device.Key{d.Key()},
		})
	}

	for _, m := range queryDevices(tree, "state") {
		d, ok := findDevice(devices, m.integrationID, m.name)
		if !ok {
			logger.Debug("diff references unknown device", "integration_id", m.integrationID, "name", m.name)
			continue
		}
		updated, err := d.Apply(m.value.Value())
		if err != nil {
			logger.Debug("diff state rejected by device", "device", d.Key().String(), "error", err)
			continue
		}
		actions = append(actions, action.SetDeviceState{Device: updated})
	}

	return actions
}
