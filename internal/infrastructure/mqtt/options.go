package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tidwall/sjson"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/config"
)

const (
	connectTimeout    = 10 * time.Second
	operationTimeout  = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second

	maxQoS = 2
)

// buildClientOptions maps the mqtt config section onto paho options.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(Topics{}.SystemStatus(), string(statusPayload("offline", cfg.Broker.ClientID, "unexpected_disconnect", time.Now())), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// statusPayload renders the retained system status message.
// reason is omitted when empty.
func statusPayload(status, clientID, reason string, now time.Time) []byte {
	fields := []struct {
		path  string
		value string
	}{
		{"status", status},
		{"client_id", clientID},
		{"reason", reason},
		{"timestamp", now.UTC().Format(time.RFC3339)},
	}

	payload := []byte(`{}`)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if out, err := sjson.SetBytes(payload, f.path, f.value); err == nil {
			payload = out
		}
	}
	return payload
}
