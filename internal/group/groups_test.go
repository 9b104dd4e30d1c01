package group

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-rules/internal/device"
)

func strPtr(s string) *string { return &s }

// testDevices returns two kitchen lights and a hall light.
func testDevices() device.DevicesState {
	return device.DevicesState{
		device.NewKey("hue", "1"): {
			ID: "1", Name: "Kitchen Ceiling", IntegrationID: "hue", Kind: device.KindManaged,
			State: device.State{"power": true}, SceneID: strPtr("cooking"),
		},
		device.NewKey("hue", "2"): {
			ID: "2", Name: "Kitchen Counter", IntegrationID: "hue", Kind: device.KindManaged,
			State: device.State{"power": true}, SceneID: strPtr("cooking"),
		},
		device.NewKey("ikea", "9"): {
			ID: "9", Name: "Hall", IntegrationID: "ikea", Kind: device.KindManaged,
			State: device.State{"power": false},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		configs []Config
		wantErr error
	}{
		{
			name:    "valid",
			configs: []Config{{ID: "kitchen", Name: "Kitchen"}},
		},
		{
			name:    "bad id",
			configs: []Config{{ID: "Kitchen Lights", Name: "Kitchen"}},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "missing name",
			configs: []Config{{ID: "kitchen"}},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "duplicate",
			configs: []Config{{ID: "kitchen", Name: "A"}, {ID: "kitchen", Name: "B"}},
			wantErr: ErrGroupExists,
		},
		{
			name:    "unknown nested group",
			configs: []Config{{ID: "house", Name: "House", Groups: []ID{"attic"}}},
			wantErr: ErrInvalidGroup,
		},
		{
			name: "ref without device",
			configs: []Config{{ID: "kitchen", Name: "Kitchen", Devices: []DeviceRef{
				{IntegrationID: "hue"},
			}}},
			wantErr: ErrInvalidGroup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.configs)
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

func TestGroups_Resolve(t *testing.T) {
	groups, err := New([]Config{
		{ID: "kitchen", Name: "Kitchen", Devices: []DeviceRef{
			{IntegrationID: "hue", Name: "kitchen counter"},
			{IntegrationID: "hue", DeviceID: "1"},
			{IntegrationID: "hue", DeviceID: "1"},
			{IntegrationID: "hue", DeviceID: "missing"},
		}},
		{ID: "hall", Name: "Hall", Devices: []DeviceRef{{IntegrationID: "ikea", DeviceID: "9"}}},
		{ID: "house", Name: "House", Groups: []ID{"kitchen", "hall", "house"}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	flattened := groups.Resolve(testDevices())

	kitchen := flattened["kitchen"].DeviceKeys
	if len(kitchen) != 2 {
		t.Fatalf("kitchen members = %v, want 2 deduplicated present devices", kitchen)
	}
	if kitchen[0].String() != "hue/1" || kitchen[1].String() != "hue/2" {
		t.Errorf("kitchen members = %v, want sorted [hue/1 hue/2]", kitchen)
	}

	if got := len(flattened["house"].DeviceKeys); got != 3 {
		t.Errorf("house members = %d, want 3 (nested, cycle-safe)", got)
	}

	union := flattened.DeviceKeys([]ID{"hall", "kitchen", "nope"})
	if len(union) != 3 {
		t.Errorf("DeviceKeys() = %v, want 3", union)
	}
}

func TestEvalContextValues(t *testing.T) {
	groups, err := New([]Config{
		{ID: "kitchen", Name: "Kitchen", Devices: []DeviceRef{
			{IntegrationID: "hue", DeviceID: "1"},
			{IntegrationID: "hue", DeviceID: "2"},
		}},
		{ID: "all", Name: "Everything", Groups: []ID{"kitchen"}, Devices: []DeviceRef{
			{IntegrationID: "ikea", DeviceID: "9"},
		}},
		{ID: "empty", Name: "Nothing"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	devices := testDevices()
	values := EvalContextValues(groups.Resolve(devices), devices)

	got := make(map[string]any, len(values))
	for _, v := range values {
		got[v.Path] = v.Value
	}

	tests := []struct {
		path string
		want any
	}{
		{"groups.kitchen.name", "Kitchen"},
		{"groups.kitchen.power", true},
		{"groups.kitchen.scene", "cooking"},
		{"groups.kitchen.device_count", 2},
		{"groups.all.power", false},
		{"groups.all.scene", nil},
		{"groups.all.device_count", 3},
		{"groups.empty.power", false},
		{"groups.empty.scene", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := got[tt.path]
			if !ok {
				t.Fatalf("path %s missing", tt.path)
			}
			if v != tt.want {
				t.Errorf("%s = %v, want %v", tt.path, v, tt.want)
			}
		})
	}

	if values[0].Path != "groups.all.device_count" {
		t.Errorf("first path = %s, want output ordered by group then field", values[0].Path)
	}
}
