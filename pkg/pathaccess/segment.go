// Package pathaccess implements the Path Accessor (spec §4.1): parsing a
// property-access path such as `foo.bar[0]["baz"].qux[i]` into a sequence
// of segments, and reading a value out of a root object by walking those
// segments. It is the lowest-level leaf in the engine's dependency order
// (spec §1) — the reference resolver and reference collector build on
// this grammar rather than reinventing it.
package pathaccess

// SegmentType distinguishes the three ways a path can step into a value.
type SegmentType int

const (
	// Property steps into an object by a literal string key, written as
	// `.name` or `["name"]`/['name'].
	Property SegmentType = iota
	// Index steps into an array by a non-negative integer literal,
	// written as `[0]`.
	Index
	// Expression steps into an object or array using a computed key,
	// written as `[<expr>]` where <expr> is neither a bare integer nor a
	// quoted string. The engine evaluates <expr> and uses the result as
	// a string (property) or number (index) key.
	Expression
)

func (t SegmentType) String() string {
	switch t {
	case Property:
		return "property"
	case Index:
		return "index"
	case Expression:
		return "expression"
	default:
		return "unknown"
	}
}

// Segment is one step of a parsed path.
type Segment struct {
	Type SegmentType

	Name  string // Property
	Idx   int    // Index
	Expr  string // Expression: the raw inner text, e.g. "i + 1"

	// Raw is the source slice this segment was parsed from, including
	// its separator (so segments[0].Raw has no leading dot, but every
	// later segment's Raw starts with "." or "[").
	Raw string
}

// Format reconstructs the path string a slice of segments was parsed
// from, by concatenating each segment's Raw. Round-tripping
// Format(Parse(p)) == p is one of the engine's testable properties
// (spec §8).
func Format(segments []Segment) string {
	out := make([]byte, 0, 32)
	for _, seg := range segments {
		out = append(out, seg.Raw...)
	}
	return string(out)
}
