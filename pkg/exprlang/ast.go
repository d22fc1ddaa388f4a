package exprlang

import "github.com/flowlayer/engine/pkg/flowtypes"

// NodeKind identifies one of the six AST node shapes of spec §3.
type NodeKind int

const (
	NodeLiteral NodeKind = iota
	NodeReference
	NodeOperation
	NodeObject
	NodeArray
	NodeTemplate
)

// ObjectEntry is one entry of an object-literal AST node. A spread entry
// (`...expr`) has Spread set and only Value populated; a keyed entry has
// either Key (a dynamic, reference-valued key) or KeyLiteral (a static
// string key) populated, never both.
type ObjectEntry struct {
	Spread     bool
	Key        *Node
	KeyLiteral string
	Value      *Node
}

// ArrayElement is one element of an array-literal AST node.
type ArrayElement struct {
	Spread bool
	Value  *Node
}

// Node is the tagged AST union the parser produces and the evaluator
// walks (spec §3).
type Node struct {
	Kind NodeKind

	// NodeLiteral
	Literal flowtypes.Value

	// NodeReference: the raw path text found inside `${ ... }`, fed to
	// the Reference Resolver/Path Accessor unmodified.
	Path string

	// NodeOperation: Op is the operator symbol. Right is nil for unary
	// operators.
	Op    string
	Left  *Node
	Right *Node

	// NodeObject
	Entries []ObjectEntry

	// NodeArray
	Elements []ArrayElement

	// NodeTemplate: interleaved literal-string and reference nodes, in
	// source order.
	Parts []*Node
}
