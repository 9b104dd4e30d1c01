package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// Logger defines the logging interface used by the rules engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Builder projects device, scene and group state into a Namespace.
//
// The most recent result is memoised: a Build call whose inputs encode to
// the same canonical JSON as the previous call returns a copy of the cached
// namespace without rebuilding it.
//
// Builder is safe for concurrent use.
type Builder struct {
	logger Logger

	mu       sync.Mutex
	cacheKey []byte
	cached   *Namespace
}

// NewBuilder creates a Builder. A nil logger discards output.
func NewBuilder(logger Logger) *Builder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Builder{logger: logger}
}

// Build returns the namespace for the given snapshots.
//
// Paths:
//
//	devices.<integration>.<name>.<leaf...>           device value
//	scenes.<scene>.<integration>.<name>.<leaf...>    scene override
//	groups.<group>.<field>                           group aggregate
//
// Names and scene IDs are normalised with NormalizeName. The namespace
// also carries the dbg function.
func (b *Builder) Build(devices device.DevicesState, scenes scene.FlattenedScenesConfig, groups group.FlattenedGroupsConfig) (*Namespace, error) {
	key, keyErr := cacheKey(devices, scenes, groups)
	if keyErr == nil {
		b.mu.Lock()
		if b.cached != nil && bytes.Equal(b.cacheKey, key) {
			ns := b.cached.Clone()
			b.mu.Unlock()
			return ns, nil
		}
		b.mu.Unlock()
	}

	ns, err := b.build(devices, scenes, groups)
	if err != nil {
		return nil, err
	}

	if keyErr == nil {
		b.mu.Lock()
		b.cacheKey = key
		b.cached = ns.Clone()
		b.mu.Unlock()
	}
	return ns, nil
}

// cacheKey encodes the three inputs canonically. encoding/json sorts map
// keys, so structurally equal inputs produce identical bytes.
func cacheKey(devices device.DevicesState, scenes scene.FlattenedScenesConfig, groups group.FlattenedGroupsConfig) ([]byte, error) {
	return json.Marshal(struct {
		Devices device.DevicesState         `json:"d"`
		Scenes  scene.FlattenedScenesConfig `json:"s"`
		Groups  group.FlattenedGroupsConfig `json:"g"`
	}{devices, scenes, groups})
}

func (b *Builder) build(devices device.DevicesState, scenes scene.FlattenedScenesConfig, groups group.FlattenedGroupsConfig) (*Namespace, error) {
	w := &nsWriter{ns: NewNamespace(), owners: make(map[string]string), leaves: make(map[string][]string), logger: b.logger}

	for _, key := range devices.Keys() {
		d := devices[key]
		prefix := "devices." + d.IntegrationID + "." + NormalizeName(d.Name)
		if err := w.writeTree(prefix, key.String(), d.Value()); err != nil {
			return nil, err
		}
	}

	for _, id := range sortedSceneIDs(scenes) {
		sc := scenes[id]
		for _, key := range sortedDeviceKeys(sc.Devices) {
			d, ok := devices[key]
			if !ok {
				continue
			}
			prefix := "scenes." + NormalizeName(string(id)) + "." + d.IntegrationID + "." + NormalizeName(d.Name)
			state := map[string]any(sc.Devices[key])
			if err := w.writeTree(prefix, string(id)+":"+key.String(), state); err != nil {
				return nil, err
			}
		}
	}

	for _, pv := range group.EvalContextValues(groups, devices) {
		if err := w.writeLeaf(pv.Path, pv.Value); err != nil {
			return nil, err
		}
	}

	if err := w.ns.SetFunction(FuncDebug, debugFunction(b.logger)); err != nil {
		return nil, err
	}
	return w.ns, nil
}

// nsWriter fills a namespace while tracking which owner claimed each
// subtree prefix.
type nsWriter struct {
	ns     *Namespace
	owners map[string]string   // prefix -> owner
	leaves map[string][]string // prefix -> paths written under it
	logger Logger
}

// writeTree flattens tree under prefix on behalf of owner. If a different
// owner already claimed the same prefix, its leaves are removed first; the
// two trees are never merged.
func (w *nsWriter) writeTree(prefix, owner string, tree any) error {
	if prev, ok := w.owners[prefix]; ok && prev != owner {
		w.logger.Warn("name collision in evaluation context, replacing",
			"prefix", prefix, "previous", prev, "replacement", owner)
		for _, path := range w.leaves[prefix] {
			w.ns.Delete(path)
		}
		delete(w.leaves, prefix)
	}
	w.owners[prefix] = owner

	for _, leaf := range Flatten(prefix, tree) {
		if err := w.writeLeaf(leaf.Path, leaf.Value); err != nil {
			return err
		}
		w.leaves[prefix] = append(w.leaves[prefix], leaf.Path)
	}
	return nil
}

func (w *nsWriter) writeLeaf(path string, raw any) error {
	v, err := FromJSON(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, exists := w.ns.Get(path); exists {
		return fmt.Errorf("%w: duplicate path %s", ErrContext, path)
	}
	return w.ns.Set(path, v)
}

// debugFunction implements dbg(): with no argument it logs every variable
// as "name = value" sorted by name; with one it logs that value. It always
// evaluates to Empty.
func debugFunction(logger Logger) Function {
	return func(ns *Namespace, arg Value) (Value, error) {
		if arg.IsEmpty() {
			vars := ns.Variables()
			lines := make([]string, len(vars))
			for i, v := range vars {
				lines[i] = v.Name + " = " + v.Value.String()
			}
			logger.Info("dbg: evaluation context", "variables", strings.Join(lines, "\n"))
			return EmptyValue(), nil
		}
		logger.Info("dbg", "value", arg.String())
		return EmptyValue(), nil
	}
}

func sortedSceneIDs(scenes scene.FlattenedScenesConfig) []scene.ID {
	ids := make([]scene.ID, 0, len(scenes))
	for id := range scenes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedDeviceKeys(m map[device.Key]device.State) []device.Key {
	keys := make([]device.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b device.Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}
