package rules

import (
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/group"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// GroupKeysVariable is the namespace variable that scopes explicit
// activate_scene calls to a set of groups.
const GroupKeysVariable = "group_keys"

// Expression is a parsed rule that can be evaluated against a namespace.
// Evaluation may read and assign variables and call namespace functions.
type Expression interface {
	Eval(ns *Namespace) (Value, error)
}

// ScenesSource resolves scene definitions against current device state.
type ScenesSource interface {
	Resolve(devices device.DevicesState) scene.FlattenedScenesConfig
}

// GroupsSource resolves group definitions against current device state.
type GroupsSource interface {
	Resolve(devices device.DevicesState) group.FlattenedGroupsConfig
}

// Channel receives the actions produced by an evaluation.
type Channel interface {
	Publish(a action.Action)
}

// Evaluator runs rule expressions and turns their effects into actions.
//
// Evaluator is safe for concurrent use; the only state shared between
// calls is the Builder's cache.
type Evaluator struct {
	builder *Builder
	logger  Logger
}

// NewEvaluator creates an Evaluator. A nil builder gets a fresh one; a nil
// logger discards output.
func NewEvaluator(builder *Builder, logger Logger) *Evaluator {
	if logger == nil {
		logger = noopLogger{}
	}
	if builder == nil {
		builder = NewBuilder(logger)
	}
	return &Evaluator{builder: builder, logger: logger}
}

// Evaluate runs expr against the given state and publishes the resulting
// actions on ch. Nothing is published unless every step succeeds.
func (e *Evaluator) Evaluate(expr Expression, devices device.DevicesState, scenes ScenesSource, groups GroupsSource, ch Channel) error {
	actions, err := e.Plan(expr, devices, scenes, groups)
	if err != nil {
		return err
	}
	Dispatch(ch, actions)
	return nil
}

// Plan runs expr and returns the actions it produces, in dispatch order:
// explicit built-in calls, then scene activations read from the diff, then
// state writes read from the diff. A false result yields no actions.
func (e *Evaluator) Plan(expr Expression, devices device.DevicesState, scenes ScenesSource, groups GroupsSource) ([]action.Action, error) {
	ns, err := e.builder.Build(devices, scenes.Resolve(devices), groups.Resolve(devices))
	if err != nil {
		return nil, err
	}
	ns.SetTypeSafetyChecks(false)
	original := ns.Clone()

	queue := &commandQueue{}
	if err := registerBuiltins(ns, queue); err != nil {
		return nil, err
	}

	result, err := expr.Eval(ns)
	if err != nil {
		return nil, wrapEvaluation(err)
	}
	if result.Kind() == KindBoolean {
		if b, _ := result.AsBool(); !b { //nolint:errcheck // kind checked above
			e.logger.Debug("rule evaluated to false, discarding side effects")
			return nil, nil
		}
	}

	actions, err := e.explicitActions(ns, queue.drain())
	if err != nil {
		return nil, err
	}

	diff := Diff(original, ns)
	e.logger.Debug("evaluation diff", "paths", diff.Paths())
	if len(diff) == 0 {
		return actions, nil
	}
	tree, err := diff.Tree()
	if err != nil {
		return nil, err
	}
	return append(actions, translateDiff(tree, devices, e.logger)...), nil
}

// Holds evaluates cond against the given state and reports whether it
// produced Boolean true. Built-ins are not registered and assignments are
// discarded, so a condition can never cause actions.
func (e *Evaluator) Holds(cond Expression, devices device.DevicesState, scenes ScenesSource, groups GroupsSource) (bool, error) {
	ns, err := e.builder.Build(devices, scenes.Resolve(devices), groups.Resolve(devices))
	if err != nil {
		return false, err
	}
	ns.SetTypeSafetyChecks(false)

	result, err := cond.Eval(ns)
	if err != nil {
		return false, wrapEvaluation(err)
	}
	b, err := result.AsBool()
	return err == nil && b, nil
}

// explicitActions converts drained built-in commands into actions.
func (e *Evaluator) explicitActions(ns *Namespace, cmds []pendingCommand) ([]action.Action, error) {
	actions := make([]action.Action, 0, len(cmds))
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case activateSceneCommand:
			groupKeys, err := scopedGroupKeys(ns)
			if err != nil {
				return nil, err
			}
			actions = append(actions, action.ActivateScene{SceneID: c.sceneID, GroupKeys: groupKeys})
		case customCommand:
			actions = append(actions, action.Custom{IntegrationID: c.integrationID, Payload: c.payload})
		case triggerRoutineCommand:
			actions = append(actions, action.ForceTriggerRoutine{RoutineID: c.routineID})
		default:
			return nil, fmt.Errorf("%w: unknown command %T", ErrEvaluation, cmd)
		}
	}
	return actions, nil
}

// scopedGroupKeys reads group_keys as a sorted set of group ids. An absent
// or empty variable means no group scope.
func scopedGroupKeys(ns *Namespace) ([]group.ID, error) {
	v, ok := ns.Get(GroupKeysVariable)
	if !ok || v.IsEmpty() {
		return nil, nil
	}
	names, err := v.AsStrings()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", GroupKeysVariable, err)
	}

	ids := make([]group.ID, len(names))
	for i, name := range names {
		ids[i] = group.ID(name)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// wrapEvaluation classifies an expression failure as ErrEvaluation unless
// it already carries one of the core error kinds.
func wrapEvaluation(err error) error {
	if isKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEvaluation, err)
}
