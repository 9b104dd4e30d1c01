package rules

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/sjson"
)

// Assign sets value at the dotted path inside the JSON document tree and
// returns the updated document. Missing intermediate objects are created;
// every segment becomes an object key, numeric ones included.
//
// A path with an empty or control-character segment fails with
// ErrDiffEncoding.
func Assign(tree []byte, path string, value any) ([]byte, error) {
	pointer, err := pointerFor(path)
	if err != nil {
		return nil, err
	}
	if len(tree) == 0 {
		tree = []byte("{}")
	}

	out, err := sjson.SetBytes(tree, pointer, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDiffEncoding, path, err)
	}
	return out, nil
}

// pointerFor converts a dotted namespace path into an sjson path.
func pointerFor(path string) (string, error) {
	segments := strings.Split(path, ".")
	encoded := make([]string, len(segments))
	for i, seg := range segments {
		enc, err := encodeSegment(seg)
		if err != nil {
			return "", fmt.Errorf("%w: path %q segment %d: %w", ErrDiffEncoding, path, i, err)
		}
		encoded[i] = enc
	}
	return strings.Join(encoded, "."), nil
}

// sjson path metacharacters that must be escaped to be taken literally.
const pathMeta = `\*?|#@!:`

func encodeSegment(seg string) (string, error) {
	if seg == "" {
		return "", fmt.Errorf("empty segment")
	}

	numeric := true
	var b strings.Builder
	b.Grow(len(seg) + 2)
	for _, r := range seg {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("control character %q", r)
		}
		if r < '0' || r > '9' {
			numeric = false
		}
	}

	// A leading colon forces sjson to treat a numeric key as an object key
	// instead of an array index.
	if numeric {
		return ":" + seg, nil
	}

	for _, r := range seg {
		if strings.ContainsRune(pathMeta, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
