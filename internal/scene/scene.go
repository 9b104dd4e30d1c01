package scene

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
)

// ID identifies a scene.
type ID string

// Config is a scene as written in the automation definitions file.
//
// Devices maps integration ID to device name (or device ID) to the state the
// device takes when the scene activates. Groups applies one state to every
// member of a group; a device-level entry overrides its group's.
type Config struct {
	ID      ID                                 `json:"id" yaml:"id"`
	Name    string                             `json:"name" yaml:"name"`
	Devices map[string]map[string]device.State `json:"devices,omitempty" yaml:"devices,omitempty"`
	Groups  map[group.ID]device.State          `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// FlattenedScene is a scene resolved against a DevicesState snapshot.
type FlattenedScene struct {
	Name    string                      `json:"name"`
	Devices map[device.Key]device.State `json:"devices"`
}

// FlattenedScenesConfig maps every scene ID to its resolved overrides.
type FlattenedScenesConfig map[ID]FlattenedScene

// GroupResolver resolves group definitions against a device snapshot.
type GroupResolver interface {
	Resolve(devices device.DevicesState) group.FlattenedGroupsConfig
}

// Scenes holds validated scene definitions.
//
// Scenes is immutable after New and safe for concurrent use.
type Scenes struct {
	configs map[ID]Config
	order   []ID
	groups  GroupResolver
}

// New validates the scene definitions. Every override must be a complete
// device state; groups may be nil when no scene uses group overrides.
func New(configs []Config, groups GroupResolver) (*Scenes, error) {
	s := &Scenes{configs: make(map[ID]Config, len(configs)), groups: groups}

	for i := range configs {
		cfg := configs[i]
		if err := validateConfig(cfg, groups); err != nil {
			return nil, err
		}
		if _, dup := s.configs[cfg.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrSceneExists, cfg.ID)
		}
		s.configs[cfg.ID] = cfg
		s.order = append(s.order, cfg.ID)
	}

	slices.Sort(s.order)
	return s, nil
}

func validateConfig(cfg Config, groups GroupResolver) error {
	if strings.TrimSpace(string(cfg.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidScene)
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: scene %s: name is required", ErrInvalidScene, cfg.ID)
	}
	if len(cfg.Groups) > 0 && groups == nil {
		return fmt.Errorf("%w: scene %s: group overrides need group definitions", ErrInvalidScene, cfg.ID)
	}

	for integrationID, byName := range cfg.Devices {
		for name, state := range byName {
			if _, err := device.ValidateState(state); err != nil {
				return fmt.Errorf("%w: scene %s: %s/%s: %w", ErrInvalidScene, cfg.ID, integrationID, name, err)
			}
		}
	}
	for groupID, state := range cfg.Groups {
		if _, err := device.ValidateState(state); err != nil {
			return fmt.Errorf("%w: scene %s: group %s: %w", ErrInvalidScene, cfg.ID, groupID, err)
		}
	}
	return nil
}

// Get returns the definition of a scene.
func (s *Scenes) Get(id ID) (Config, bool) {
	cfg, ok := s.configs[id]
	return cfg, ok
}

// IDs returns every scene ID in ascending order.
func (s *Scenes) IDs() []ID {
	return slices.Clone(s.order)
}

// Resolve returns every scene's overrides keyed by device.
// Overrides naming devices absent from the snapshot are dropped.
func (s *Scenes) Resolve(devices device.DevicesState) FlattenedScenesConfig {
	var groups group.FlattenedGroupsConfig
	if s.groups != nil {
		groups = s.groups.Resolve(devices)
	}

	flattened := make(FlattenedScenesConfig, len(s.configs))
	for _, id := range s.order {
		flattened[id] = resolveScene(s.configs[id], devices, groups)
	}
	return flattened
}

func resolveScene(cfg Config, devices device.DevicesState, groups group.FlattenedGroupsConfig) FlattenedScene {
	overrides := make(map[device.Key]device.State)

	groupIDs := make([]group.ID, 0, len(cfg.Groups))
	for id := range cfg.Groups {
		groupIDs = append(groupIDs, id)
	}
	slices.Sort(groupIDs)

	for _, id := range groupIDs {
		for _, key := range groups[id].DeviceKeys {
			overrides[key] = cfg.Groups[id]
		}
	}

	for integrationID, byName := range cfg.Devices {
		for ref, state := range byName {
			key, ok := resolveDevice(integrationID, ref, devices)
			if !ok {
				continue
			}
			overrides[key] = state
		}
	}

	resolved := make(map[device.Key]device.State, len(overrides))
	for key, state := range overrides {
		resolved[key] = state.Clone()
	}
	return FlattenedScene{Name: cfg.Name, Devices: resolved}
}

// resolveDevice matches ref against device names first, then device IDs.
func resolveDevice(integrationID, ref string, devices device.DevicesState) (device.Key, bool) {
	if d, ok := devices.FindByName(integrationID, ref); ok {
		return d.Key(), true
	}
	return group.ResolveRef(group.DeviceRef{IntegrationID: integrationID, DeviceID: ref}, devices)
}
