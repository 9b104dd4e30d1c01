package group

import (
	"slices"

	"github.com/nerrad567/gray-logic-rules/internal/device"
)

// EvalContextValues derives the rule-visible values of every group:
//
//	groups.<id>.name          display name
//	groups.<id>.power         true when every member is powered on
//	groups.<id>.scene         scene shared by every member, or null
//	groups.<id>.device_count  number of present members
//
// Output is ordered by group ID, then by field name.
func EvalContextValues(groups FlattenedGroupsConfig, devices device.DevicesState) []PathValue {
	ids := make([]ID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	values := make([]PathValue, 0, len(ids)*4)
	for _, id := range ids {
		g := groups[id]
		prefix := "groups." + string(id) + "."

		power, scene := aggregate(g.DeviceKeys, devices)
		values = append(values,
			PathValue{Path: prefix + "device_count", Value: len(g.DeviceKeys)},
			PathValue{Path: prefix + "name", Value: g.Name},
			PathValue{Path: prefix + "power", Value: power},
			PathValue{Path: prefix + "scene", Value: scene},
		)
	}
	return values
}

// aggregate reports whether all members are on and which scene they share.
// A group with no present members is off and has no scene.
func aggregate(keys []device.Key, devices device.DevicesState) (bool, any) {
	power := false
	var scene *string
	sceneShared := true
	seen := 0

	for _, key := range keys {
		d, ok := devices[key]
		if !ok {
			continue
		}
		if seen == 0 {
			power = true
			scene = d.SceneID
		}
		seen++

		if !d.IsPoweredOn() {
			power = false
		}
		if d.SceneID == nil || scene == nil || *d.SceneID != *scene {
			sceneShared = false
		}
	}

	if seen == 0 || !sceneShared || scene == nil {
		return power, nil
	}
	return power, *scene
}
