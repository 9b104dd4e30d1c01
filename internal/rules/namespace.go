package rules

import (
	"fmt"
	"slices"
	"strings"
)

// Function is a callable exposed to expressions.
//
// ns is the namespace the expression is running against. arg follows a
// fixed convention: Empty for no arguments, the value itself for one, and
// a Tuple for several.
type Function func(ns *Namespace, arg Value) (Value, error)

// Variable is one namespace entry.
type Variable struct {
	Name  string
	Value Value
}

// Namespace is the flat evaluation context: dotted path → Value, plus the
// functions an expression may call.
//
// A Namespace is not safe for concurrent mutation. Each evaluation works
// on its own copy.
type Namespace struct {
	vars       map[string]Value
	funcs      map[string]Function
	typeChecks bool
}

// NewNamespace returns an empty namespace with type safety checks enabled.
func NewNamespace() *Namespace {
	return &Namespace{
		vars:       make(map[string]Value),
		funcs:      make(map[string]Function),
		typeChecks: true,
	}
}

// SetTypeSafetyChecks toggles whether Set may change a variable's kind.
func (ns *Namespace) SetTypeSafetyChecks(enabled bool) {
	ns.typeChecks = enabled
}

// Get returns the variable stored at name.
func (ns *Namespace) Get(name string) (Value, bool) {
	v, ok := ns.vars[name]
	return v, ok
}

// Set stores v at name.
//
// With type safety checks enabled, replacing a non-empty variable with a
// value of a different kind fails with ErrTypeMismatch.
func (ns *Namespace) Set(name string, v Value) error {
	if name == "" {
		return fmt.Errorf("%w: empty variable name", ErrContext)
	}
	if ns.typeChecks {
		if old, ok := ns.vars[name]; ok && !old.IsEmpty() && !v.IsEmpty() && old.Kind() != v.Kind() {
			return fmt.Errorf("%w: %w: %s is %s, cannot assign %s",
				ErrEvaluation, ErrTypeMismatch, name, old.Kind(), v.Kind())
		}
	}
	ns.vars[name] = v
	return nil
}

// Delete removes the variable at name, if any.
func (ns *Namespace) Delete(name string) {
	delete(ns.vars, name)
}

// HasPrefix reports whether any variable lives below prefix, that is,
// has a name starting with prefix + ".".
func (ns *Namespace) HasPrefix(prefix string) bool {
	p := prefix + "."
	for name := range ns.vars {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// SetFunction registers fn under name, replacing any previous function.
func (ns *Namespace) SetFunction(name string, fn Function) error {
	if name == "" {
		return fmt.Errorf("%w: empty function name", ErrContext)
	}
	if fn == nil {
		return fmt.Errorf("%w: nil function %s", ErrContext, name)
	}
	ns.funcs[name] = fn
	return nil
}

// Function returns the function registered under name.
func (ns *Namespace) Function(name string) (Function, bool) {
	fn, ok := ns.funcs[name]
	return fn, ok
}

// Call invokes the function registered under name.
func (ns *Namespace) Call(name string, arg Value) (Value, error) {
	fn, ok := ns.funcs[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: unknown function %s", ErrEvaluation, name)
	}
	return fn(ns, arg)
}

// Variables returns every variable sorted by name.
func (ns *Namespace) Variables() []Variable {
	vars := make([]Variable, 0, len(ns.vars))
	for name, v := range ns.vars {
		vars = append(vars, Variable{Name: name, Value: v})
	}
	slices.SortFunc(vars, func(a, b Variable) int {
		return strings.Compare(a.Name, b.Name)
	})
	return vars
}

// Functions returns the names of every registered function, sorted.
func (ns *Namespace) Functions() []string {
	names := make([]string, 0, len(ns.funcs))
	for name := range ns.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of variables.
func (ns *Namespace) Len() int {
	return len(ns.vars)
}

// Clone returns an independent copy. Functions are shared.
func (ns *Namespace) Clone() *Namespace {
	cpy := &Namespace{
		vars:       make(map[string]Value, len(ns.vars)),
		funcs:      make(map[string]Function, len(ns.funcs)),
		typeChecks: ns.typeChecks,
	}
	for k, v := range ns.vars {
		cpy.vars[k] = v
	}
	for k, fn := range ns.funcs {
		cpy.funcs[k] = fn
	}
	return cpy
}

// NormalizeName turns a display name into a path segment: lowercase, with
// spaces and dots replaced by underscores, so "Lamp 2.0" is lamp_2_0.
func NormalizeName(name string) string {
	return nameReplacer.Replace(strings.ToLower(name))
}

var nameReplacer = strings.NewReplacer(" ", "_", ".", "_")
