package stepexec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// resolveValue walks a decoded request-params/transform-input value
// (string/map/slice/scalar, as produced by the flow document decoder)
// and evaluates every `${...}` expression it finds. A string that is
// exactly one reference evaluates to that reference's native value
// (so `id: ${a.count}` yields a number, not "5"); a string mixing
// literal text with references concatenates like a template literal
// (spec §4.3's coercion rule: every interpolated part is coerced to a
// display string before joining).
func resolveValue(ctx context.Context, v interface{}, resolve exprlang.Resolve) (flowtypes.Value, error) {
	switch val := v.(type) {
	case string:
		return resolveString(ctx, val, resolve)
	case map[string]interface{}:
		obj := flowtypes.NewObject()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rv, err := resolveValue(ctx, val[k], resolve)
			if err != nil {
				return flowtypes.Null, err
			}
			obj.Set(k, rv)
		}
		return flowtypes.Map(obj), nil
	case []interface{}:
		items := make([]flowtypes.Value, len(val))
		for i, item := range val {
			rv, err := resolveValue(ctx, item, resolve)
			if err != nil {
				return flowtypes.Null, err
			}
			items[i] = rv
		}
		return flowtypes.List(items), nil
	default:
		return flowtypes.FromGo(val), nil
	}
}

func resolveString(ctx context.Context, s string, resolve exprlang.Resolve) (flowtypes.Value, error) {
	if !strings.Contains(s, "${") {
		return flowtypes.String(s), nil
	}
	parts, err := splitTemplate(s)
	if err != nil {
		return flowtypes.Null, err
	}
	if len(parts) == 1 && parts[0].isExpr {
		return exprlang.Evaluate(ctx, parts[0].text, resolve)
	}

	var sb strings.Builder
	for _, p := range parts {
		if !p.isExpr {
			sb.WriteString(p.text)
			continue
		}
		v, err := exprlang.Evaluate(ctx, p.text, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		sb.WriteString(v.ToDisplayString())
	}
	return flowtypes.String(sb.String()), nil
}

type templatePart struct {
	text   string
	isExpr bool
}

// splitTemplate splits s into literal and `${...}` expression parts by
// brace-depth counting, the same approach the path accessor and
// tokenizer use for their own bracket/brace scans.
func splitTemplate(s string) ([]templatePart, error) {
	var parts []templatePart
	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "${")
		if idx < 0 {
			parts = append(parts, templatePart{text: s[i:]})
			break
		}
		start := i + idx
		if start > i {
			parts = append(parts, templatePart{text: s[i:start]})
		}
		depth := 1
		j := start + 2
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			j++
		}
		if depth != 0 {
			return nil, ferrors.NewExpressionError(s, fmt.Errorf("unterminated reference"))
		}
		parts = append(parts, templatePart{text: s[start:j], isExpr: true})
		i = j
	}
	return parts, nil
}
