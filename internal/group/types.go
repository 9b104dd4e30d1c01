package group

import (
	"github.com/nerrad567/gray-logic-rules/internal/device"
)

// ID identifies a group. IDs appear verbatim in rule paths
// (groups.<id>.power), so they are restricted to lowercase identifiers.
type ID string

// DeviceRef addresses a device from configuration by integration and either
// its device ID or its display name.
type DeviceRef struct {
	IntegrationID string `json:"integration_id" yaml:"integration_id"`
	DeviceID      string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Config is a group as written in the automation definitions file.
//
// Members are the union of the explicit devices and the members of every
// nested group.
type Config struct {
	ID      ID          `json:"id" yaml:"id"`
	Name    string      `json:"name" yaml:"name"`
	Hidden  bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Devices []DeviceRef `json:"devices,omitempty" yaml:"devices,omitempty"`
	Groups  []ID        `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// FlattenedGroup is a group resolved against a DevicesState snapshot.
type FlattenedGroup struct {
	Name       string       `json:"name"`
	Hidden     bool         `json:"hidden,omitempty"`
	DeviceKeys []device.Key `json:"device_keys"`
}

// FlattenedGroupsConfig maps every group ID to its resolved members.
type FlattenedGroupsConfig map[ID]FlattenedGroup

// PathValue is one dotted namespace path and its JSON-shaped scalar value.
type PathValue struct {
	Path  string
	Value any
}
