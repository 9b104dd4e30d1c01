package automation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-rules/internal/group"
	"github.com/nerrad567/gray-logic-rules/internal/routine"
	"github.com/nerrad567/gray-logic-rules/internal/rules/luaexpr"
	"github.com/nerrad567/gray-logic-rules/internal/scene"
)

// Definitions is the automation file as written on disk.
//
//	groups:
//	  - id: living
//	    name: Living Room
//	    devices:
//	      - {integration_id: hue, name: Living Room Lamp}
//	scenes:
//	  - id: evening
//	    name: Evening
//	    groups:
//	      living: {power: true, brightness: 0.4}
//	routines:
//	  - id: dusk
//	    name: Lights on at dusk
//	    when: devices.zb.outdoor_lux.value < 50
//	    expr: activate_scene("evening")
type Definitions struct {
	Groups   []group.Config    `yaml:"groups"`
	Scenes   []scene.Config    `yaml:"scenes"`
	Routines []routine.Routine `yaml:"routines"`
}

// Catalog is the validated, compiled form of Definitions.
// It is immutable and safe for concurrent use.
type Catalog struct {
	Groups   *group.Groups
	Scenes   *scene.Scenes
	Routines *routine.Set

	programs   map[routine.ID]*luaexpr.Program
	conditions map[routine.ID]*luaexpr.Program
}

// LoadDefinitions reads and compiles the automation file at path.
func LoadDefinitions(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading automation file: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions validates the definitions and compiles every routine.
// An empty document yields an empty catalog.
func ParseDefinitions(data []byte) (*Catalog, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinitions, err)
	}
	return NewCatalog(defs)
}

// NewCatalog builds a Catalog from already decoded definitions.
func NewCatalog(defs Definitions) (*Catalog, error) {
	groups, err := group.New(defs.Groups)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinitions, err)
	}
	scenes, err := scene.New(defs.Scenes, groups)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinitions, err)
	}
	routines, err := routine.NewSet(defs.Routines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinitions, err)
	}

	c := &Catalog{
		Groups:     groups,
		Scenes:     scenes,
		Routines:   routines,
		programs:   make(map[routine.ID]*luaexpr.Program, routines.Len()),
		conditions: make(map[routine.ID]*luaexpr.Program),
	}
	for _, r := range routines.All() {
		prog, err := luaexpr.Compile("routine "+string(r.ID), r.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: routine %s: %w", ErrInvalidDefinitions, r.ID, err)
		}
		c.programs[r.ID] = prog

		if r.When == "" {
			continue
		}
		cond, err := luaexpr.Compile("routine "+string(r.ID)+" when", r.When)
		if err != nil {
			return nil, fmt.Errorf("%w: routine %s: when: %w", ErrInvalidDefinitions, r.ID, err)
		}
		c.conditions[r.ID] = cond
	}
	return c, nil
}

// Program returns the compiled expression of a routine.
func (c *Catalog) Program(id routine.ID) (*luaexpr.Program, bool) {
	p, ok := c.programs[id]
	return p, ok
}

// Condition returns the compiled when condition of a routine, if it has one.
func (c *Catalog) Condition(id routine.ID) (*luaexpr.Program, bool) {
	p, ok := c.conditions[id]
	return p, ok
}
