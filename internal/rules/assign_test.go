package rules

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"
)

func TestAssign(t *testing.T) {
	tree, err := Assign(nil, "devices.hue.lamp1.state.power", true)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	want := `{"devices":{"hue":{"lamp1":{"state":{"power":true}}}}}`
	if string(tree) != want {
		t.Errorf("Assign() = %s, want %s", tree, want)
	}

	tree, err = Assign(tree, "devices.hue.lamp1.scene", "evening")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if got := gjson.GetBytes(tree, "devices.hue.lamp1.scene").String(); got != "evening" {
		t.Errorf("scene = %q, want evening", got)
	}
	if !gjson.GetBytes(tree, "devices.hue.lamp1.state.power").Bool() {
		t.Error("earlier assignment lost")
	}
}

func TestAssign_NumericSegmentIsObjectKey(t *testing.T) {
	tree, err := Assign([]byte(`{}`), "devices.zb.sensor.value.0", 1.5)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	value := gjson.GetBytes(tree, "devices.zb.sensor.value")
	if !value.IsObject() {
		t.Fatalf("value = %s, want an object", value.Raw)
	}
	if got := value.Get("0").Float(); got != 1.5 {
		t.Errorf("value.0 = %v, want 1.5", got)
	}
}

func TestAssign_MetacharactersAreLiteral(t *testing.T) {
	tree, err := Assign(nil, "devices.hue.lamp*1?.scene", "x")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	hue := gjson.GetBytes(tree, "devices.hue")
	var keys []string
	hue.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	if len(keys) != 1 || keys[0] != "lamp*1?" {
		t.Errorf("keys = %v, want [lamp*1?]", keys)
	}
}

func TestAssign_MalformedPath(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"empty segment", "devices..lamp"},
		{"trailing dot", "devices.hue."},
		{"control character", "devices.hue.la\nmp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Assign(nil, tt.path, true); !errors.Is(err, ErrDiffEncoding) {
				t.Errorf("Assign(%q) error = %v, want ErrDiffEncoding", tt.path, err)
			}
		})
	}
}
