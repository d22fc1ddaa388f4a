package refresolver

import (
	"strings"

	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/pathaccess"
)

// CollectStepNames statically scans an expression string for the step
// names it references, without evaluating anything (spec §4.5). locals
// names loop/transform-bound variables currently in scope (e.g. a
// loop's `as` identifier) to ignore alongside the fixed reserved roots.
// Used by the Dependency Resolver to build the step graph.
func CollectStepNames(expr string, locals map[string]bool) (map[string]bool, error) {
	toks, err := exprlang.Tokenize(expr)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	collectFromTokens(toks, locals, out)
	return out, nil
}

func collectFromTokens(toks []exprlang.Token, locals map[string]bool, out map[string]bool) {
	for _, tok := range toks {
		switch tok.Type {
		case exprlang.TokReference:
			rootName := referenceRootName(tok)
			if rootName != "" && !reservedRoots[rootName] && !locals[rootName] {
				out[rootName] = true
			}
			collectFromTokens(tok.Children, locals, out)
		case exprlang.TokArrayLiteral, exprlang.TokObjectLiteral, exprlang.TokTemplateLiteral:
			collectFromTokens(tok.Children, locals, out)
		}
	}
}

// referenceRootName extracts a reference token's root path segment
// without fully parsing the path (a malformed path is not the
// collector's concern; the evaluator will reject it at run time).
func referenceRootName(tok exprlang.Token) string {
	raw := strings.TrimSuffix(strings.TrimPrefix(tok.Raw, "${"), "}")
	segs, err := pathaccess.Parse(raw)
	if err != nil || len(segs) == 0 {
		return ""
	}
	return segs[0].Name
}
