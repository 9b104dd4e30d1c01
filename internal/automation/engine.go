package automation

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/event"
	"github.com/nerrad567/gray-logic-rules/internal/routine"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// Logger is the logging interface used by the engine.
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

// DeviceStore is the part of device.Registry the engine needs.
type DeviceStore interface {
	Snapshot() device.DevicesState
	Upsert(ctx context.Context, d *device.Device) error
}

// MQTTClient publishes bridge commands.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TelemetryWriter records applied device states.
type TelemetryWriter interface {
	WriteDeviceState(d device.Device)
}

// RuleEvaluator runs routine expressions and conditions.
type RuleEvaluator interface {
	Evaluate(expr rules.Expression, devices device.DevicesState, scenes rules.ScenesSource, groups rules.GroupsSource, ch rules.Channel) error
	Holds(cond rules.Expression, devices device.DevicesState, scenes rules.ScenesSource, groups rules.GroupsSource) (bool, error)
}

// Receiver is the consuming half of an event channel.
type Receiver interface {
	Receive(ctx context.Context) (event.Message, error)
}

// Engine consumes the event bus. It executes actions, keeps the device
// registry current and runs routines when bridges report new state.
//
// Actions produced by routines are sent to out rather than executed inline,
// so they reach observers and are executed in bus order.
//
// Engine handles one message at a time; Run must have a single caller.
type Engine struct {
	catalog   *Catalog
	devices   DeviceStore
	evaluator RuleEvaluator
	mqtt      MQTTClient
	out       event.TxChannel
	telemetry TelemetryWriter
	qos       byte
	logger    Logger
}

// NewEngine creates an engine. mqtt may be nil, in which case no bridge
// commands are published.
func NewEngine(catalog *Catalog, devices DeviceStore, evaluator RuleEvaluator, mqtt MQTTClient, out event.TxChannel, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		catalog:   catalog,
		devices:   devices,
		evaluator: evaluator,
		mqtt:      mqtt,
		out:       out,
		qos:       1,
		logger:    logger,
	}
}

// SetTelemetry enables telemetry for applied device states.
func (e *Engine) SetTelemetry(t TelemetryWriter) {
	e.telemetry = t
}

// SetQoS sets the QoS of published bridge commands.
func (e *Engine) SetQoS(qos byte) {
	e.qos = qos
}

// Run handles messages until ctx is cancelled or the bus is closed and
// drained. Failures of individual messages are logged, never returned.
func (e *Engine) Run(ctx context.Context, bus Receiver) error {
	for {
		msg, err := bus.Receive(ctx)
		switch {
		case errors.Is(err, event.ErrBusClosed), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return fmt.Errorf("receiving event: %w", err)
		}
		e.HandleMessage(ctx, msg)
	}
}

// HandleMessage processes one bus message.
func (e *Engine) HandleMessage(ctx context.Context, msg event.Message) {
	switch m := msg.(type) {
	case event.ActionMessage:
		if err := e.Execute(ctx, m.Action); err != nil {
			e.logger.Warn("action failed", "kind", m.Action.Kind(), "error", err)
		}
	case event.DeviceUpdated:
		if err := e.DeviceUpdated(ctx, m.Device); err != nil {
			e.logger.Warn("device update failed", "key", m.Device.Key().String(), "error", err)
		}
	default:
		e.logger.Warn("unknown message", "type", fmt.Sprintf("%T", msg))
	}
}

// DeviceUpdated stores a device reported by its integration and runs every
// enabled routine whose condition holds against the new state.
//
// A report identical to the stored device changes nothing and triggers no
// routines; this is how a bridge echoing a command is absorbed.
func (e *Engine) DeviceUpdated(ctx context.Context, d device.Device) error {
	snapshot := e.devices.Snapshot()
	if current, ok := snapshot[d.Key()]; ok {
		if d.Kind == device.KindManaged && d.SceneID == nil {
			d.SceneID = current.SceneID
		}
		if sameDevice(current, d) {
			e.logger.Debug("device unchanged", "key", d.Key().String())
			return nil
		}
	}

	if err := e.devices.Upsert(ctx, &d); err != nil {
		return fmt.Errorf("storing %s: %w", d.Key(), err)
	}
	e.runTriggeredRoutines(e.devices.Snapshot())
	return nil
}

func (e *Engine) runTriggeredRoutines(snapshot device.DevicesState) {
	for _, r := range e.catalog.Routines.All() {
		if !r.IsEnabled() {
			continue
		}
		cond, ok := e.catalog.Condition(r.ID)
		if !ok {
			continue
		}

		holds, err := e.evaluator.Holds(cond, snapshot, e.catalog.Scenes, e.catalog.Groups)
		if err != nil {
			e.logger.Warn("routine condition failed", "routine", r.ID, "error", err)
			continue
		}
		if !holds {
			continue
		}
		if err := e.runRoutine(r.ID, snapshot); err != nil {
			e.logger.Warn("routine failed", "routine", r.ID, "error", err)
		}
	}
}

// runRoutine evaluates a routine's expression and sends the resulting
// actions to the output channel.
func (e *Engine) runRoutine(id routine.ID, snapshot device.DevicesState) error {
	prog, ok := e.catalog.Program(id)
	if !ok {
		return fmt.Errorf("%w: %s", routine.ErrRoutineNotFound, id)
	}

	sent := 0
	ch := rules.ChannelFunc(func(a action.Action) {
		sent++
		e.out.Send(event.ActionMessage{Action: a})
	})
	if err := e.evaluator.Evaluate(prog, snapshot, e.catalog.Scenes, e.catalog.Groups, ch); err != nil {
		return err
	}
	e.logger.Info("routine ran", "routine", id, "actions", sent)
	return nil
}

// sameDevice reports whether two reports of a device carry the same data.
func sameDevice(a, b device.Device) bool {
	return a.Name == b.Name && a.Kind == b.Kind && reflect.DeepEqual(a.Value(), b.Value())
}
