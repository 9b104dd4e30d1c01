package rules

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *recordingLogger) find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// ─── Fixtures ──────────────────────────────────────────────────────

func strPtr(s string) *string { return &s }

func managed(integrationID, id, name string, state device.State) device.Device {
	return device.Device{ID: id, Name: name, IntegrationID: integrationID, Kind: device.KindManaged, State: state}
}

func testDevices() device.DevicesState {
	lamp := managed("hue", "1", "Living Room Lamp", device.State{"power": false, "brightness": 0.5})
	lamp.SceneID = strPtr("day")
	strip := managed("hue", "2", "lamp1", device.State{"power": true})
	sensor := device.Device{ID: "t1", Name: "Hall Temp", IntegrationID: "zb", Kind: device.KindSensor, SensorValue: 21.5}

	return device.DevicesState{
		lamp.Key():   lamp,
		strip.Key():  strip,
		sensor.Key(): sensor,
	}
}

func testScenes() scene.FlattenedScenesConfig {
	return scene.FlattenedScenesConfig{
		"Evening Mood": {
			Name: "Evening Mood",
			Devices: map[device.Key]device.State{
				device.NewKey("hue", "1"):       {"power": true, "brightness": 0.3},
				device.NewKey("hue", "missing"): {"power": true},
			},
		},
	}
}

func testGroups() group.FlattenedGroupsConfig {
	return group.FlattenedGroupsConfig{
		"living": {Name: "Living", DeviceKeys: []device.Key{device.NewKey("hue", "1"), device.NewKey("hue", "2")}},
	}
}

func mustBuild(t *testing.T, b *Builder, devices device.DevicesState, scenes scene.FlattenedScenesConfig, groups group.FlattenedGroupsConfig) *Namespace {
	t.Helper()
	ns, err := b.Build(devices, scenes, groups)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return ns
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestBuilder_Paths(t *testing.T) {
	ns := mustBuild(t, NewBuilder(nil), testDevices(), testScenes(), testGroups())

	tests := []struct {
		path string
		want Value
	}{
		{"devices.hue.living_room_lamp.state.power", BoolValue(false)},
		{"devices.hue.living_room_lamp.state.brightness", NumberValue(0.5)},
		{"devices.hue.living_room_lamp.scene", StringValue("day")},
		{"devices.hue.lamp1.state.power", BoolValue(true)},
		{"devices.hue.lamp1.scene", EmptyValue()},
		{"devices.zb.hall_temp.value", NumberValue(21.5)},
		{"scenes.evening_mood.hue.living_room_lamp.power", BoolValue(true)},
		{"scenes.evening_mood.hue.living_room_lamp.brightness", NumberValue(0.3)},
		{"groups.living.name", StringValue("Living")},
		{"groups.living.power", BoolValue(false)},
		{"groups.living.device_count", NumberValue(2)},
		{"groups.living.scene", EmptyValue()},
	}

	for _, tt := range tests {
		got, ok := ns.Get(tt.path)
		if !ok {
			t.Errorf("%s missing from namespace", tt.path)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.path, got, tt.want)
		}
	}

	if ns.HasPrefix("scenes.evening_mood.hue.missing") {
		t.Error("scene override for an absent device should be skipped")
	}
	if _, ok := ns.Function(FuncDebug); !ok {
		t.Error("dbg function not registered")
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	a := mustBuild(t, NewBuilder(nil), testDevices(), testScenes(), testGroups())
	b := mustBuild(t, NewBuilder(nil), testDevices(), testScenes(), testGroups())

	av, bv := a.Variables(), b.Variables()
	if len(av) != len(bv) {
		t.Fatalf("variable counts differ: %d vs %d", len(av), len(bv))
	}
	for i := range av {
		if av[i].Name != bv[i].Name || !av[i].Value.Equal(bv[i].Value) {
			t.Errorf("entry %d differs: %s=%v vs %s=%v", i, av[i].Name, av[i].Value, bv[i].Name, bv[i].Value)
		}
	}
}

func TestBuilder_CacheReturnsIndependentCopies(t *testing.T) {
	b := NewBuilder(nil)
	first := mustBuild(t, b, testDevices(), testScenes(), testGroups())
	_ = first.Set("devices.hue.lamp1.state.power", BoolValue(false)) //nolint:errcheck // valid name

	second := mustBuild(t, b, testDevices(), testScenes(), testGroups())
	if v, _ := second.Get("devices.hue.lamp1.state.power"); !v.Equal(BoolValue(true)) {
		t.Errorf("cached namespace was mutated through an earlier result: power = %v", v)
	}
}

func TestBuilder_CacheKeyedOnInputs(t *testing.T) {
	b := NewBuilder(nil)
	devices := testDevices()
	mustBuild(t, b, devices, nil, nil)

	changed := devices.Clone()
	lamp := changed[device.NewKey("hue", "2")]
	lamp.State = device.State{"power": false}
	changed[lamp.Key()] = lamp

	ns := mustBuild(t, b, changed, nil, nil)
	if v, _ := ns.Get("devices.hue.lamp1.state.power"); !v.Equal(BoolValue(false)) {
		t.Errorf("power = %v, want false from the new input", v)
	}
}

func TestBuilder_NameCollisionReplaces(t *testing.T) {
	logger := &recordingLogger{}
	a := managed("hue", "a", "Lamp", device.State{"power": true, "brightness": 1.0})
	b := managed("hue", "b", "lamp", device.State{"power": false})
	devices := device.DevicesState{a.Key(): a, b.Key(): b}

	ns := mustBuild(t, NewBuilder(logger), devices, nil, nil)

	if v, _ := ns.Get("devices.hue.lamp.state.power"); !v.Equal(BoolValue(false)) {
		t.Errorf("power = %v, want the later device's false", v)
	}
	if _, ok := ns.Get("devices.hue.lamp.state.brightness"); ok {
		t.Error("earlier device's leaves were merged into the later one")
	}
	if _, ok := logger.find("warn", "name collision in evaluation context, replacing"); !ok {
		t.Error("expected a collision warning")
	}
}

func TestBuilder_ConversionError(t *testing.T) {
	bad := device.Device{ID: "x", Name: "broken", IntegrationID: "zb", Kind: device.KindSensor, SensorValue: math.NaN()}
	_, err := NewBuilder(nil).Build(device.DevicesState{bad.Key(): bad}, nil, nil)
	if !errors.Is(err, ErrConversion) {
		t.Errorf("Build() error = %v, want ErrConversion", err)
	}
}

func TestBuilder_DuplicateGroupPath(t *testing.T) {
	// Only the groups collaborator can emit the same path twice.
	w := &nsWriter{ns: NewNamespace(), owners: map[string]string{}, leaves: map[string][]string{}, logger: noopLogger{}}
	if err := w.writeLeaf("groups.a.power", true); err != nil {
		t.Fatalf("writeLeaf() error = %v", err)
	}
	if err := w.writeLeaf("groups.a.power", false); !errors.Is(err, ErrContext) {
		t.Errorf("duplicate writeLeaf() error = %v, want ErrContext", err)
	}
}

func TestDebugFunction(t *testing.T) {
	logger := &recordingLogger{}
	ns := mustBuild(t, NewBuilder(logger), testDevices(), nil, nil)

	got, err := ns.Call(FuncDebug, EmptyValue())
	if err != nil || !got.IsEmpty() {
		t.Fatalf("dbg() = %v, %v; want Empty, nil", got, err)
	}
	entry, ok := logger.find("info", "dbg: evaluation context")
	if !ok {
		t.Fatal("dbg() did not log the context")
	}
	dump, _ := entry.args[1].(string) //nolint:errcheck // asserted below
	if !strings.Contains(dump, "devices.hue.lamp1.state.power = true") {
		t.Errorf("dump missing lamp1 power: %q", dump)
	}
	if strings.Index(dump, "devices.hue.lamp1") > strings.Index(dump, "devices.zb.hall_temp") {
		t.Error("dump not sorted by name")
	}

	got, err = ns.Call(FuncDebug, StringValue("hello"))
	if err != nil || !got.IsEmpty() {
		t.Fatalf("dbg(x) = %v, %v; want Empty, nil", got, err)
	}
	if _, ok := logger.find("info", "dbg"); !ok {
		t.Error("dbg(x) did not log its argument")
	}
}
