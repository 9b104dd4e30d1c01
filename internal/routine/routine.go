// Package routine defines rule routines: a rule expression plus an optional
// condition deciding when a device update should run it.
package routine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ID identifies a routine.
type ID string

// Domain errors for the routine package.
var (
	// ErrRoutineNotFound is returned when a routine ID does not exist.
	ErrRoutineNotFound = errors.New("routine: not found")

	// ErrRoutineExists is returned when two routines share an ID.
	ErrRoutineExists = errors.New("routine: already exists")

	// ErrInvalidRoutine is returned when routine validation fails.
	ErrInvalidRoutine = errors.New("routine: invalid")
)

// Routine is a rule as written in the automation definitions file.
//
// When is evaluated after every device update; Expr runs when it holds.
// An empty When never fires on updates, so the routine only runs through
// trigger_routine. A disabled routine never runs on updates either.
type Routine struct {
	ID      ID     `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	When    string `json:"when,omitempty" yaml:"when,omitempty"`
	Expr    string `json:"expr" yaml:"expr"`
}

// IsEnabled reports whether the routine reacts to device updates.
// Routines are enabled unless explicitly disabled.
func (r Routine) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Validate checks the routine's identity and that it has an expression.
func (r Routine) Validate() error {
	if strings.TrimSpace(string(r.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRoutine)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: routine %s: name is required", ErrInvalidRoutine, r.ID)
	}
	if strings.TrimSpace(r.Expr) == "" {
		return fmt.Errorf("%w: routine %s: expr is required", ErrInvalidRoutine, r.ID)
	}
	return nil
}

// Set is an immutable, validated collection of routines.
type Set struct {
	routines map[ID]Routine
	order    []ID
}

// NewSet validates the routines and rejects duplicate IDs.
func NewSet(routines []Routine) (*Set, error) {
	s := &Set{routines: make(map[ID]Routine, len(routines))}
	for _, r := range routines {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.routines[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrRoutineExists, r.ID)
		}
		s.routines[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	slices.Sort(s.order)
	return s, nil
}

// Get returns a routine by ID.
func (s *Set) Get(id ID) (Routine, error) {
	r, ok := s.routines[id]
	if !ok {
		return Routine{}, fmt.Errorf("%w: %s", ErrRoutineNotFound, id)
	}
	return r, nil
}

// All returns every routine ordered by ID.
func (s *Set) All() []Routine {
	out := make([]Routine, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.routines[id])
	}
	return out
}

// Len returns the number of routines.
func (s *Set) Len() int {
	return len(s.order)
}
