package event

import (
	"github.com/nerrad567/gray-logic-rules/internal/action"
)

// Publisher is the interface for publishing to the MQTT broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Forwarder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Forwarder passes every message to the next channel and additionally
// publishes actions to MQTT so observers can follow what rules decide.
//
// Publish failures are logged and never affect delivery to next.
type Forwarder struct {
	next   TxChannel
	pub    Publisher
	topic  func(action.Kind) string
	qos    byte
	logger Logger
}

// NewForwarder creates a Forwarder. topic maps an action kind to its MQTT topic.
func NewForwarder(next TxChannel, pub Publisher, topic func(action.Kind) string, qos byte, logger Logger) *Forwarder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Forwarder{next: next, pub: pub, topic: topic, qos: qos, logger: logger}
}

// Send implements TxChannel.
func (f *Forwarder) Send(msg Message) {
	f.next.Send(msg)

	am, ok := msg.(ActionMessage)
	if !ok || f.pub == nil {
		return
	}

	payload, err := action.Marshal(am.Action)
	if err != nil {
		f.logger.Warn("encoding action for mqtt failed", "kind", am.Action.Kind(), "error", err)
		return
	}

	topic := f.topic(am.Action.Kind())
	if err := f.pub.Publish(topic, payload, f.qos, false); err != nil {
		f.logger.Warn("publishing action failed", "topic", topic, "error", err)
		return
	}
	f.logger.Debug("action published", "topic", topic)
}
