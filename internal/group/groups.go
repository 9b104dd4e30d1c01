package group

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-rules/internal/device"
)

// idPattern restricts group IDs to characters that survive dotted paths.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Groups holds validated group definitions and resolves them against
// device snapshots.
//
// Groups is immutable after New and safe for concurrent use.
type Groups struct {
	configs map[ID]Config
	order   []ID
}

// New validates the group definitions and returns a Groups.
//
// Every nested group reference must name a defined group. Reference cycles
// are permitted; resolution visits each group once.
func New(configs []Config) (*Groups, error) {
	g := &Groups{configs: make(map[ID]Config, len(configs))}

	for i := range configs {
		cfg := configs[i]
		if err := validateConfig(cfg); err != nil {
			return nil, err
		}
		if _, dup := g.configs[cfg.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrGroupExists, cfg.ID)
		}
		g.configs[cfg.ID] = cfg
		g.order = append(g.order, cfg.ID)
	}

	for _, id := range g.order {
		for _, nested := range g.configs[id].Groups {
			if _, ok := g.configs[nested]; !ok {
				return nil, fmt.Errorf("%w: group %s references unknown group %s", ErrInvalidGroup, id, nested)
			}
		}
	}

	slices.Sort(g.order)
	return g, nil
}

func validateConfig(cfg Config) error {
	if !idPattern.MatchString(string(cfg.ID)) {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalidGroup, cfg.ID, idPattern)
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: group %s: name is required", ErrInvalidGroup, cfg.ID)
	}
	for _, ref := range cfg.Devices {
		if ref.IntegrationID == "" {
			return fmt.Errorf("%w: group %s: device integration_id is required", ErrInvalidGroup, cfg.ID)
		}
		if ref.DeviceID == "" && ref.Name == "" {
			return fmt.Errorf("%w: group %s: device needs device_id or name", ErrInvalidGroup, cfg.ID)
		}
	}
	return nil
}

// Get returns the definition of a group.
func (g *Groups) Get(id ID) (Config, bool) {
	cfg, ok := g.configs[id]
	return cfg, ok
}

// IDs returns every group ID in ascending order.
func (g *Groups) IDs() []ID {
	return slices.Clone(g.order)
}

// Resolve expands every group into the keys of its present member devices.
// Members missing from devices are dropped. Keys are deduplicated and sorted.
func (g *Groups) Resolve(devices device.DevicesState) FlattenedGroupsConfig {
	flattened := make(FlattenedGroupsConfig, len(g.configs))
	for _, id := range g.order {
		cfg := g.configs[id]
		keys := make(map[device.Key]struct{})
		g.collect(id, devices, keys, make(map[ID]bool))

		flattened[id] = FlattenedGroup{
			Name:       cfg.Name,
			Hidden:     cfg.Hidden,
			DeviceKeys: sortedKeys(keys),
		}
	}
	return flattened
}

// collect adds the members of id, and of its nested groups, to keys.
func (g *Groups) collect(id ID, devices device.DevicesState, keys map[device.Key]struct{}, visited map[ID]bool) {
	if visited[id] {
		return
	}
	visited[id] = true

	cfg := g.configs[id]
	for _, ref := range cfg.Devices {
		if key, ok := ResolveRef(ref, devices); ok {
			keys[key] = struct{}{}
		}
	}
	for _, nested := range cfg.Groups {
		g.collect(nested, devices, keys, visited)
	}
}

// ResolveRef finds the device a configuration reference points at.
// A device ID takes precedence over a name.
func ResolveRef(ref DeviceRef, devices device.DevicesState) (device.Key, bool) {
	if ref.DeviceID != "" {
		key := device.NewKey(ref.IntegrationID, ref.DeviceID)
		_, ok := devices[key]
		return key, ok
	}
	d, ok := devices.FindByName(ref.IntegrationID, ref.Name)
	if !ok {
		return device.Key{}, false
	}
	return d.Key(), true
}

// DeviceKeys returns the union of the members of the given groups.
// Unknown group IDs contribute nothing.
func (f FlattenedGroupsConfig) DeviceKeys(ids []ID) []device.Key {
	keys := make(map[device.Key]struct{})
	for _, id := range ids {
		for _, key := range f[id].DeviceKeys {
			keys[key] = struct{}{}
		}
	}
	return sortedKeys(keys)
}

func sortedKeys(set map[device.Key]struct{}) []device.Key {
	keys := make([]device.Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b device.Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}
