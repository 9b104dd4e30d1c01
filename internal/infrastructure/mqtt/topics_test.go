package mqtt

import (
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BridgeCommand", topics.BridgeCommand("hue", "l1"), "graylogic/command/hue/l1"},
		{"BridgeCustom", topics.BridgeCustom("ikea"), "graylogic/command/ikea/custom"},
		{"BridgeState", topics.BridgeState("zb", "t1"), "graylogic/state/zb/t1"},
		{"AllBridgeStates", topics.AllBridgeStates(), "graylogic/state/+/+"},
		{"CoreAction", topics.CoreAction("ActivateScene"), "graylogic/core/action/ActivateScene"},
		{"AllCoreActions", topics.AllCoreActions(), "graylogic/core/action/+"},
		{"ActionRequest", topics.ActionRequest(), "graylogic/request/action"},
		{"SystemStatus", topics.SystemStatus(), "graylogic/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseBridgeState(t *testing.T) {
	tests := []struct {
		topic      string
		wantInteg  string
		wantDevice string
		wantOK     bool
	}{
		{"graylogic/state/hue/l1", "hue", "l1", true},
		{"graylogic/command/hue/l1", "", "", false},
		{"graylogic/state/hue", "", "", false},
		{"graylogic/state/hue/l1/extra", "", "", false},
		{"other/state/hue/l1", "", "", false},
		{"graylogic/state//l1", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			integ, dev, ok := ParseBridgeState(tt.topic)
			if integ != tt.wantInteg || dev != tt.wantDevice || ok != tt.wantOK {
				t.Errorf("ParseBridgeState(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, integ, dev, ok, tt.wantInteg, tt.wantDevice, tt.wantOK)
			}
		})
	}
}

func TestStatusPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := statusPayload("offline", "rules-1", "graceful_shutdown", now)
	want := map[string]string{
		"status":    "offline",
		"client_id": "rules-1",
		"reason":    "graceful_shutdown",
		"timestamp": "2026-03-01T12:00:00Z",
	}
	for path, v := range want {
		if g := gjson.GetBytes(got, path).String(); g != v {
			t.Errorf("%s = %q, want %q", path, g, v)
		}
	}

	if gjson.GetBytes(statusPayload("online", "rules-1", "", now), "reason").Exists() {
		t.Error("empty reason should be omitted")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "rules"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != cfg.Broker.ClientID || opts.Username != "rules" {
		t.Errorf("ClientID = %q, Username = %q", opts.ClientID, opts.Username)
	}
	if !opts.WillEnabled || opts.WillTopic != (Topics{}).SystemStatus() || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config not set")
	}
}
