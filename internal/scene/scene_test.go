package scene

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
)

func testDevices() device.DevicesState {
	return device.DevicesState{
		device.NewKey("hue", "1"): {ID: "1", Name: "Sofa Lamp", IntegrationID: "hue", Kind: device.KindManaged},
		device.NewKey("hue", "2"): {ID: "2", Name: "Reading Lamp", IntegrationID: "hue", Kind: device.KindManaged},
		device.NewKey("ikea", "b7"): {ID: "b7", Name: "Shelf", IntegrationID: "ikea", Kind: device.KindManaged},
	}
}

func testGroups(t *testing.T) *group.Groups {
	t.Helper()
	g, err := group.New([]group.Config{{
		ID: "living", Name: "Living Room",
		Devices: []group.DeviceRef{
			{IntegrationID: "hue", DeviceID: "1"},
			{IntegrationID: "hue", DeviceID: "2"},
		},
	}})
	if err != nil {
		t.Fatalf("group.New() error = %v", err)
	}
	return g
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		configs []Config
		groups  GroupResolver
		wantErr error
	}{
		{
			name: "valid",
			configs: []Config{{ID: "relax", Name: "Relax", Devices: map[string]map[string]device.State{
				"hue": {"Sofa Lamp": {"power": true, "brightness": 0.3}},
			}}},
		},
		{
			name:    "missing id",
			configs: []Config{{Name: "Relax"}},
			wantErr: ErrInvalidScene,
		},
		{
			name:    "missing name",
			configs: []Config{{ID: "relax"}},
			wantErr: ErrInvalidScene,
		},
		{
			name:    "duplicate",
			configs: []Config{{ID: "relax", Name: "A"}, {ID: "relax", Name: "B"}},
			wantErr: ErrSceneExists,
		},
		{
			name: "partial state",
			configs: []Config{{ID: "relax", Name: "Relax", Devices: map[string]map[string]device.State{
				"hue": {"Sofa Lamp": {"brightness": 0.3}},
			}}},
			wantErr: device.ErrInvalidState,
		},
		{
			name: "group override without groups",
			configs: []Config{{ID: "relax", Name: "Relax", Groups: map[group.ID]device.State{
				"living": {"power": true},
			}}},
			wantErr: ErrInvalidScene,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.configs, tt.groups)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScenes_Resolve(t *testing.T) {
	scenes, err := New([]Config{
		{
			ID:   "evening",
			Name: "Evening",
			Groups: map[group.ID]device.State{
				"living": {"power": true, "brightness": 0.5},
			},
			Devices: map[string]map[string]device.State{
				"hue":  {"reading lamp": {"power": false}},
				"ikea": {"b7": {"power": true}, "Ghost": {"power": true}},
			},
		},
		{ID: "off", Name: "Off"},
	}, testGroups(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	flattened := scenes.Resolve(testDevices())

	evening, ok := flattened["evening"]
	if !ok {
		t.Fatal("evening scene missing from resolution")
	}
	if len(evening.Devices) != 3 {
		t.Fatalf("evening devices = %v, want 3 (ghost dropped)", evening.Devices)
	}

	if got := evening.Devices[device.NewKey("hue", "1")]["brightness"]; got != 0.5 {
		t.Errorf("sofa lamp brightness = %v, want group override 0.5", got)
	}
	if got := evening.Devices[device.NewKey("hue", "2")]["power"]; got != false {
		t.Errorf("reading lamp power = %v, want device override false", got)
	}
	if _, ok := evening.Devices[device.NewKey("ikea", "b7")]; !ok {
		t.Error("override by device id did not resolve")
	}

	if len(flattened["off"].Devices) != 0 {
		t.Errorf("off scene devices = %v, want none", flattened["off"].Devices)
	}

	// Resolution must not alias the configured state.
	evening.Devices[device.NewKey("hue", "1")]["power"] = false
	again := scenes.Resolve(testDevices())
	if again["evening"].Devices[device.NewKey("hue", "1")]["power"] != true {
		t.Error("mutating a resolved scene changed its definition")
	}
}

func TestScenes_GetAndIDs(t *testing.T) {
	scenes, err := New([]Config{{ID: "b", Name: "B"}, {ID: "a", Name: "A"}}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ids := scenes.IDs()
	if len(ids) != 2 || ids[0] != "a" {
		t.Errorf("IDs() = %v, want sorted", ids)
	}
	if _, ok := scenes.Get("b"); !ok {
		t.Error("Get(b) not found")
	}
	if _, ok := scenes.Get("c"); ok {
		t.Error("Get(c) found")
	}
}
