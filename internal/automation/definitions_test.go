package automation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleDefinitions = `
groups:
  - id: living
    name: Living Room
    devices:
      - {integration_id: hue, name: Living Room Lamp}
      - {integration_id: hue, device_id: l2}
scenes:
  - id: evening
    name: Evening
    groups:
      living: {power: true, brightness: 0.4}
  - id: off
    name: Off
    groups:
      living: {power: false}
routines:
  - id: dusk
    name: Lights on at dusk
    when: devices.zb.outdoor_lux.value < 50
    expr: activate_scene("evening")
  - id: all_off
    name: All off
    expr: activate_scene("off")
`

func TestParseDefinitions(t *testing.T) {
	c, err := ParseDefinitions([]byte(sampleDefinitions))
	if err != nil {
		t.Fatalf("ParseDefinitions() error = %v", err)
	}

	if got := len(c.Groups.IDs()); got != 1 {
		t.Errorf("groups = %d, want 1", got)
	}
	if got := len(c.Scenes.IDs()); got != 2 {
		t.Errorf("scenes = %d, want 2", got)
	}
	if got := c.Routines.Len(); got != 2 {
		t.Errorf("routines = %d, want 2", got)
	}

	if _, ok := c.Program("dusk"); !ok {
		t.Error("Program(dusk) missing")
	}
	if _, ok := c.Condition("dusk"); !ok {
		t.Error("Condition(dusk) missing")
	}
	if _, ok := c.Condition("all_off"); ok {
		t.Error("Condition(all_off) present for a routine without when")
	}
}

func TestParseDefinitions_Empty(t *testing.T) {
	c, err := ParseDefinitions(nil)
	if err != nil {
		t.Fatalf("ParseDefinitions() error = %v", err)
	}
	if c.Routines.Len() != 0 || len(c.Scenes.IDs()) != 0 || len(c.Groups.IDs()) != 0 {
		t.Error("empty document produced definitions")
	}
}

func TestParseDefinitions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "groups: [unclosed"},
		{"bad group id", "groups:\n  - {id: Living Room, name: x}"},
		{"unknown nested group", "groups:\n  - {id: a, name: A, groups: [b]}"},
		{"scene without name", "scenes:\n  - {id: evening}"},
		{"scene with invalid state", "scenes:\n  - id: s\n    name: S\n    devices: {hue: {lamp: {brightness: 0.5}}}"},
		{"duplicate scene", "scenes:\n  - {id: s, name: S}\n  - {id: s, name: T}"},
		{"routine without expr", "routines:\n  - {id: r, name: R}"},
		{"routine syntax error", "routines:\n  - {id: r, name: R, expr: 'if then'}"},
		{"condition syntax error", "routines:\n  - {id: r, name: R, expr: 'return true', when: 'x =='}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinitions([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidDefinitions) {
				t.Errorf("ParseDefinitions() error = %v, want ErrInvalidDefinitions", err)
			}
		})
	}
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.yaml")
	if err := os.WriteFile(path, []byte(sampleDefinitions), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	if c.Routines.Len() != 2 {
		t.Errorf("routines = %d, want 2", c.Routines.Len())
	}

	if _, err := LoadDefinitions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadDefinitions() on a missing file returned nil error")
	}
}
