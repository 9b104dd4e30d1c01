package rules

import (
	"slices"
	"strconv"

	"github.com/nerrad567/gray-logic-rules/internal/device"
)

// Leaf is one scalar found while flattening a tree.
type Leaf struct {
	Path  string
	Value any
}

// Flatten walks a JSON-shaped tree and returns its scalar leaves, each keyed
// by its dotted path below prefix. Object keys are visited in sorted order;
// array elements use their index as the path segment. Empty objects and
// arrays produce no leaves.
func Flatten(prefix string, tree any) []Leaf {
	var leaves []Leaf
	flattenInto(&leaves, prefix, tree)
	return leaves
}

func flattenInto(leaves *[]Leaf, prefix string, node any) {
	switch val := node.(type) {
	case map[string]any:
		flattenObject(leaves, prefix, val)
	case device.State:
		flattenObject(leaves, prefix, val)
	case []any:
		for i, elem := range val {
			flattenInto(leaves, join(prefix, strconv.Itoa(i)), elem)
		}
	default:
		*leaves = append(*leaves, Leaf{Path: prefix, Value: node})
	}
}

func flattenObject(leaves *[]Leaf, prefix string, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		flattenInto(leaves, join(prefix, k), obj[k])
	}
}

func join(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
