package rules

import (
	"testing"

	"github.com/nerrad567/gray-logic-rules/internal/device"
)

func TestFlatten(t *testing.T) {
	tree := map[string]any{
		"state": device.State{
			"power": true,
			"color": map[string]any{"h": 35.0, "s": 0.6},
		},
		"scene":  nil,
		"levels": []any{1.0, []any{"a"}},
		"empty":  map[string]any{},
		"none":   []any{},
	}

	got := Flatten("devices.hue.lamp", tree)
	want := []Leaf{
		{Path: "devices.hue.lamp.levels.0", Value: 1.0},
		{Path: "devices.hue.lamp.levels.1.0", Value: "a"},
		{Path: "devices.hue.lamp.scene", Value: nil},
		{Path: "devices.hue.lamp.state.color.h", Value: 35.0},
		{Path: "devices.hue.lamp.state.color.s", Value: 0.6},
		{Path: "devices.hue.lamp.state.power", Value: true},
	}

	if len(got) != len(want) {
		t.Fatalf("Flatten() returned %d leaves, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("leaf %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFlatten_Scalar(t *testing.T) {
	got := Flatten("devices.zb.sensor.value", 21.5)
	if len(got) != 1 || got[0].Path != "devices.zb.sensor.value" || got[0].Value != 21.5 {
		t.Errorf("Flatten(scalar) = %v", got)
	}
}

func TestFlatten_EmptyPrefix(t *testing.T) {
	got := Flatten("", map[string]any{"a": map[string]any{"b": 1}})
	if len(got) != 1 || got[0].Path != "a.b" {
		t.Errorf("Flatten() = %v, want single leaf a.b", got)
	}
}
