// Package rules evaluates user-authored rule expressions against live
// device, scene and group state.
//
// One evaluation is a single synchronous pass:
//
//	Builder ──▶ Evaluator ──▶ Diff ──▶ Dispatch
//	(Namespace)   (built-ins)   (sjson/gjson)  (Channel)
//
// The Builder flattens every device value into dotted paths such as
// devices.hue.living_room_lamp.state.power. The expression may read those
// variables, assign to them, and call the built-ins activate_scene,
// custom_action, trigger_routine and dbg. Assignments are diffed against
// the namespace as it was before evaluation; a changed
// devices.<integration>.<name>.scene becomes an ActivateScene action and a
// changed devices.<integration>.<name>.state becomes a SetDeviceState
// action. An expression whose result is false produces nothing.
//
// Usage:
//
//	eval := rules.NewEvaluator(rules.NewBuilder(logger), logger)
//	err := eval.Evaluate(expr, registry.Snapshot(), scenes, groups, channel)
//
// Expressions come from a front-end such as package luaexpr.
package rules
