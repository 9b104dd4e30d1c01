package rules

import "github.com/nerrad567/gray-logic-rules/internal/action"

// Dispatch publishes actions on ch in order. It holds no locks and does
// not wait for delivery.
func Dispatch(ch Channel, actions []action.Action) {
	for _, a := range actions {
		ch.Publish(a)
	}
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(a action.Action)

// Publish calls f(a).
func (f ChannelFunc) Publish(a action.Action) { f(a) }
