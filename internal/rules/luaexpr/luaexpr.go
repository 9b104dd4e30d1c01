// Package luaexpr compiles rule source written in Lua into expressions the
// rules evaluator can run.
//
// Globals resolve against the evaluation namespace. A dotted variable is
// reached through nested tables:
//
//	if devices.zb.hall_temp.value > 24 then
//	    devices.hue.living_room_lamp.state = { power = false }
//	end
//
// Reading a global returns the variable stored under that name, a proxy
// table when variables live below it, or a callable for namespace
// functions. Assigning to a global or a proxy field writes the dotted
// path. Sequences become tuples; other tables are flattened into one
// variable per leaf.
//
// Missing paths down to device depth (devices.<integration>.<name> and its
// state, scenes.<scene>.<integration>.<name>) read as empty proxy tables so
// that assignments below them succeed; the diff then skips devices that do
// not exist. Test for a device with a leaf instead:
//
//	if devices.hue.lamp1.state.power == nil then
//
// Global functions (function helper() ... end) live only in the Lua state
// and never reach the namespace. Functions assigned into namespace tables
// are rejected.
//
// A bare expression such as `devices.hue.lamp1.state.power` is accepted
// and its value is the rule result; otherwise the chunk's first return
// value is.
package luaexpr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// proxyPathField marks proxy metatables with the dotted prefix they stand for.
const proxyPathField = "__path"

// Program is a compiled rule. It is safe for concurrent use; every Eval
// runs in its own Lua state.
type Program struct {
	name  string
	chunk string
}

// Compile checks source and returns a Program for it. source may be an
// expression or a chunk of statements. Syntax errors wrap
// rules.ErrEvaluation.
func Compile(name, source string) (*Program, error) {
	l := lua.NewState()

	asExpr := "return " + source
	if err := lua.LoadBuffer(l, asExpr, name, ""); err == nil {
		return &Program{name: name, chunk: asExpr}, nil
	}

	l.SetTop(0)
	if err := lua.LoadBuffer(l, source, name, ""); err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", rules.ErrEvaluation, name, err)
	}
	return &Program{name: name, chunk: source}, nil
}

// Name returns the name the program was compiled under.
func (p *Program) Name() string { return p.name }

// Eval runs the program against ns and returns its result.
//
// An error raised by a namespace function or by a rejected assignment
// fails the evaluation even when the script traps it with pcall.
func (p *Program) Eval(ns *rules.Namespace) (rules.Value, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)

	ev := &evaluation{ns: ns}
	ev.installGlobals(l)

	if err := lua.LoadBuffer(l, p.chunk, p.name, ""); err != nil {
		return rules.Value{}, fmt.Errorf("%w: load %s: %v", rules.ErrEvaluation, p.name, err)
	}
	callErr := l.ProtectedCall(0, 1, 0)
	if ev.err != nil {
		return rules.Value{}, ev.err
	}
	if callErr != nil {
		return rules.Value{}, fmt.Errorf("%w: %s: %v", rules.ErrEvaluation, p.name, callErr)
	}

	result, err := toValue(l, -1)
	l.Pop(1)
	if err != nil {
		return rules.Value{}, fmt.Errorf("%w: %s result: %w", rules.ErrEvaluation, p.name, err)
	}
	return result, nil
}

// evaluation binds one Lua state to one namespace.
type evaluation struct {
	ns  *rules.Namespace
	err error // first Go-side failure
}

func (ev *evaluation) fail(l *lua.State, err error) {
	if ev.err == nil {
		ev.err = err
	}
	lua.Errorf(l, "%s", err.Error())
}

// installGlobals routes missing globals of l to the namespace.
func (ev *evaluation) installGlobals(l *lua.State) {
	l.PushGlobalTable()
	ev.pushProxyMetaTable(l, "")
	l.SetMetaTable(-2)
	l.Pop(1)
}

func (ev *evaluation) pushProxyMetaTable(l *lua.State, prefix string) {
	l.NewTable()
	l.PushString(prefix)
	l.SetField(-2, proxyPathField)
	l.PushGoFunction(ev.index(prefix))
	l.SetField(-2, "__index")
	l.PushGoFunction(ev.newIndex(prefix))
	l.SetField(-2, "__newindex")
}

func (ev *evaluation) pushProxy(l *lua.State, prefix string) {
	l.NewTable()
	ev.pushProxyMetaTable(l, prefix)
	l.SetMetaTable(-2)
}

// index implements __index(t, key) below prefix.
func (ev *evaluation) index(prefix string) lua.Function {
	return func(l *lua.State) int {
		key, ok := keyString(l, 2)
		if !ok {
			l.PushNil()
			return 1
		}
		path := join(prefix, key)

		if v, ok := ev.ns.Get(path); ok {
			pushValue(l, v)
			return 1
		}
		if prefix == "" {
			if _, ok := ev.ns.Function(path); ok {
				l.PushGoFunction(ev.call(path))
				return 1
			}
		}
		if ev.ns.HasPrefix(path) || writeThrough(path) {
			ev.pushProxy(l, path)
			return 1
		}
		l.PushNil()
		return 1
	}
}

// writeThrough reports whether a missing path still reads as a proxy, so
// devices.hue.ghost.scene = "x" is recorded (and skipped by the diff)
// instead of failing on a nil index. It covers devices.<integration>.<name>,
// its state table and scenes.<scene>.<integration>.<name>.
func writeThrough(path string) bool {
	segs := strings.Split(path, ".")
	switch segs[0] {
	case "devices":
		return len(segs) <= 3 || (len(segs) == 4 && segs[3] == "state")
	case "scenes":
		return len(segs) <= 4
	}
	return false
}

// newIndex implements __newindex(t, key, value) below prefix.
func (ev *evaluation) newIndex(prefix string) lua.Function {
	return func(l *lua.State) int {
		key, ok := keyString(l, 2)
		if !ok {
			ev.fail(l, fmt.Errorf("%w: cannot assign to key of type %s", rules.ErrEvaluation, lua.TypeNameOf(l, 2)))
			return 0
		}
		if prefix == "" && l.IsFunction(3) {
			// Global helper functions stay in the Lua state.
			l.SetTop(3)
			l.RawSet(1)
			return 0
		}
		if err := ev.assign(l, join(prefix, key), 3); err != nil {
			ev.fail(l, err)
		}
		return 0
	}
}

// assign stores the Lua value at index under path.
func (ev *evaluation) assign(l *lua.State, path string, index int) error {
	if from, ok := proxyPath(l, index); ok {
		return ev.copySubtree(from, path)
	}

	if l.TypeOf(index) == lua.TypeTable && !isSequence(l, index) {
		tree, err := toTree(l, index)
		if err != nil {
			return err
		}
		for _, leaf := range rules.Flatten(path, tree) {
			v, err := rules.FromJSON(leaf.Value)
			if err != nil {
				return err
			}
			if err := ev.ns.Set(leaf.Path, v); err != nil {
				return err
			}
		}
		return nil
	}

	v, err := toValue(l, index)
	if err != nil {
		return fmt.Errorf("%w: assign %s: %w", rules.ErrEvaluation, path, err)
	}
	return ev.ns.Set(path, v)
}

// copySubtree copies every variable below from to the same suffix below to.
func (ev *evaluation) copySubtree(from, to string) error {
	p := from + "."
	for _, v := range ev.ns.Variables() {
		if len(v.Name) > len(p) && v.Name[:len(p)] == p {
			if err := ev.ns.Set(join(to, v.Name[len(p):]), v.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// call wraps the namespace function name as a Lua function.
func (ev *evaluation) call(name string) lua.Function {
	return func(l *lua.State) int {
		n := l.Top()
		args := make([]rules.Value, n)
		for i := 1; i <= n; i++ {
			v, err := toValue(l, i)
			if err != nil {
				ev.fail(l, fmt.Errorf("%w: %s argument %d: %w", rules.ErrEvaluation, name, i, err))
				return 0
			}
			args[i-1] = v
		}

		var arg rules.Value
		switch n {
		case 0:
			arg = rules.EmptyValue()
		case 1:
			arg = args[0]
		default:
			arg = rules.TupleValue(args...)
		}

		result, err := ev.ns.Call(name, arg)
		if err != nil {
			ev.fail(l, err)
			return 0
		}
		pushValue(l, result)
		return 1
	}
}

// ─── Conversions ───────────────────────────────────────────────────

func pushValue(l *lua.State, v rules.Value) {
	switch v.Kind() {
	case rules.KindBoolean:
		b, _ := v.AsBool() //nolint:errcheck // kind checked
		l.PushBoolean(b)
	case rules.KindNumber:
		n, _ := v.AsNumber() //nolint:errcheck // kind checked
		l.PushNumber(n)
	case rules.KindString:
		s, _ := v.AsString() //nolint:errcheck // kind checked
		l.PushString(s)
	case rules.KindTuple:
		elems, _ := v.AsTuple() //nolint:errcheck // kind checked
		l.CreateTable(len(elems), 0)
		for i, elem := range elems {
			pushValue(l, elem)
			l.RawSetInt(-2, i+1)
		}
	default:
		l.PushNil()
	}
}

// toValue converts the Lua value at index to a namespace value. Tables
// must be sequences.
func toValue(l *lua.State, index int) (rules.Value, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return rules.EmptyValue(), nil
	case lua.TypeBoolean:
		return rules.BoolValue(l.ToBoolean(index)), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return rules.Value{}, fmt.Errorf("%w: number %v is not finite", rules.ErrConversion, n)
		}
		return rules.NumberValue(n), nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return rules.StringValue(s), nil
	case lua.TypeTable:
		if !isSequence(l, index) {
			return rules.Value{}, fmt.Errorf("table is not a sequence")
		}
		index = l.AbsIndex(index)
		elems := make([]rules.Value, 0)
		for i := 1; ; i++ {
			l.RawGetInt(index, i)
			if l.IsNil(-1) {
				l.Pop(1)
				break
			}
			v, err := toValue(l, -1)
			l.Pop(1)
			if err != nil {
				return rules.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, v)
		}
		return rules.TupleValue(elems...), nil
	default:
		return rules.Value{}, fmt.Errorf("unsupported %s value", lua.TypeNameOf(l, index))
	}
}

// isSequence reports whether the table at index has only keys 1..n.
// The empty table counts as a sequence.
func isSequence(l *lua.State, index int) bool {
	if _, ok := proxyPath(l, index); ok {
		return false
	}
	index = l.AbsIndex(index)
	count, maxIndex := 0, 0
	l.PushNil()
	for l.Next(index) {
		l.Pop(1)
		if l.TypeOf(-1) != lua.TypeNumber {
			l.Pop(1)
			return false
		}
		n, _ := l.ToNumber(-1)
		if n < 1 || n != math.Trunc(n) {
			l.Pop(1)
			return false
		}
		count++
		maxIndex = max(maxIndex, int(n))
	}
	return count == maxIndex
}

// toTree converts the table at index into a JSON-shaped tree. Keys are
// stringified; nested sequences become arrays.
func toTree(l *lua.State, index int) (any, error) {
	switch l.TypeOf(index) {
	case lua.TypeTable:
	case lua.TypeNil:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return n, nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported %s value", rules.ErrEvaluation, lua.TypeNameOf(l, index))
	}

	index = l.AbsIndex(index)
	if isSequence(l, index) {
		var arr []any
		for i := 1; ; i++ {
			l.RawGetInt(index, i)
			if l.IsNil(-1) {
				l.Pop(1)
				break
			}
			elem, err := toTree(l, -1)
			l.Pop(1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	}

	obj := make(map[string]any)
	l.PushNil()
	for l.Next(index) {
		key, ok := keyString(l, -2)
		if !ok {
			l.Pop(2)
			return nil, fmt.Errorf("%w: unsupported table key of type %s", rules.ErrEvaluation, lua.TypeNameOf(l, -2))
		}
		elem, err := toTree(l, -1)
		l.Pop(1)
		if err != nil {
			l.Pop(1)
			return nil, err
		}
		obj[key] = elem
	}
	return obj, nil
}

// keyString reads a table key without converting it in place. Integral
// numbers are formatted without a fraction so t[0] and t["0"] agree.
func keyString(l *lua.State, index int) (string, bool) {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, true
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return strconv.FormatInt(int64(n), 10), true
		}
		return strconv.FormatFloat(n, 'g', -1, 64), true
	default:
		return "", false
	}
}

// proxyPath returns the prefix a proxy table at index stands for.
func proxyPath(l *lua.State, index int) (string, bool) {
	if l.TypeOf(index) != lua.TypeTable {
		return "", false
	}
	if !l.MetaTable(index) {
		return "", false
	}
	l.Field(-1, proxyPathField)
	path, ok := "", l.TypeOf(-1) == lua.TypeString
	if ok {
		path, _ = l.ToString(-1)
	}
	l.Pop(2)
	return path, ok
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
