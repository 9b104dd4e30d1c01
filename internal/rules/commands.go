package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-rules/internal/routine"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// pendingCommand is a side effect requested by a built-in during
// evaluation. It becomes an Action only if the evaluation succeeds and its
// result is not false.
type pendingCommand interface {
	isPendingCommand()
}

type activateSceneCommand struct {
	sceneID scene.ID
}

type customCommand struct {
	integrationID string
	payload       string
}

type triggerRoutineCommand struct {
	routineID routine.ID
}

func (activateSceneCommand) isPendingCommand()  {}
func (customCommand) isPendingCommand()         {}
func (triggerRoutineCommand) isPendingCommand() {}

// commandQueue is the append-only list shared by the built-ins of one
// evaluation. Built-ins may be invoked re-entrantly, so access is locked.
type commandQueue struct {
	mu       sync.Mutex
	commands []pendingCommand
}

func (q *commandQueue) push(cmd pendingCommand) {
	q.mu.Lock()
	q.commands = append(q.commands, cmd)
	q.mu.Unlock()
}

// drain returns every queued command in enqueue order and empties the queue.
func (q *commandQueue) drain() []pendingCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := q.commands
	q.commands = nil
	return cmds
}

// Built-in function names.
const (
	FuncActivateScene  = "activate_scene"
	FuncCustomAction   = "custom_action"
	FuncTriggerRoutine = "trigger_routine"
	FuncDebug          = "dbg"
)

// registerBuiltins installs the side-effecting built-ins on ns, each
// appending to q.
func registerBuiltins(ns *Namespace, q *commandQueue) error {
	builtins := map[string]Function{
		FuncActivateScene: func(_ *Namespace, arg Value) (Value, error) {
			id, err := arg.AsString()
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", FuncActivateScene, err)
			}
			q.push(activateSceneCommand{sceneID: scene.ID(id)})
			return EmptyValue(), nil
		},

		FuncCustomAction: func(_ *Namespace, arg Value) (Value, error) {
			args, err := arg.AsTuple()
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", FuncCustomAction, err)
			}
			if len(args) != 2 {
				return Value{}, fmt.Errorf("%w: %s expects 2 arguments, got %d",
					ErrEvaluation, FuncCustomAction, len(args))
			}
			integrationID, err := args[0].AsString()
			if err != nil {
				return Value{}, fmt.Errorf("%s: integration id: %w", FuncCustomAction, err)
			}
			parts, err := args[1].AsStrings()
			if err != nil {
				return Value{}, fmt.Errorf("%s: payload: %w", FuncCustomAction, err)
			}
			q.push(customCommand{integrationID: integrationID, payload: strings.Join(parts, "")})
			return EmptyValue(), nil
		},

		FuncTriggerRoutine: func(_ *Namespace, arg Value) (Value, error) {
			id, err := arg.AsString()
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", FuncTriggerRoutine, err)
			}
			q.push(triggerRoutineCommand{routineID: routine.ID(id)})
			return EmptyValue(), nil
		},
	}

	for name, fn := range builtins {
		if err := ns.SetFunction(name, fn); err != nil {
			return err
		}
	}
	return nil
}
