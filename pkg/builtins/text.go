package builtins

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerText() {
	r.Register("text.upper", textUnary(strings.ToUpper))
	r.Register("text.lower", textUnary(strings.ToLower))
	r.Register("text.trim", textUnary(strings.TrimSpace))

	r.Register("text.split", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.split: %w", err)
		}
		sep := optStringArg(params, "separator", ",")
		parts := strings.Split(s, sep)
		out := make([]flowtypes.Value, len(parts))
		for i, p := range parts {
			out[i] = flowtypes.String(p)
		}
		return flowtypes.List(out), nil
	})

	r.Register("text.join", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "values")
		if !ok || v.Kind() != flowtypes.KindList {
			return flowtypes.Null, fmt.Errorf("text.join: 'values' must be an array")
		}
		sep := optStringArg(params, "separator", ",")
		parts := make([]string, len(v.AsList()))
		for i, item := range v.AsList() {
			parts[i] = item.ToDisplayString()
		}
		return flowtypes.String(strings.Join(parts, sep)), nil
	})

	r.Register("text.replace", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.replace: %w", err)
		}
		find, err := stringArg(params, "find")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.replace: %w", err)
		}
		replace := optStringArg(params, "replace", "")
		return flowtypes.String(strings.ReplaceAll(s, find, replace)), nil
	})

	r.Register("text.substring", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.substring: %w", err)
		}
		runes := []rune(s)
		start := intArg(params, "start", 0)
		end := intArg(params, "end", len(runes))
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start > end {
			start = end
		}
		return flowtypes.String(string(runes[start:end])), nil
	})

	r.Register("text.match_regex", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.match_regex: %w", err)
		}
		pattern, err := stringArg(params, "pattern")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.match_regex: %w", err)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return flowtypes.Null, fmt.Errorf("text.match_regex: %w", err)
		}
		return flowtypes.Bool(re.MatchString(s)), nil
	})
}

func textUnary(f func(string) string) Func {
	return func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, err
		}
		return flowtypes.String(f(s)), nil
	}
}

func intArg(params flowtypes.Value, name string, def int) int {
	v, ok := arg(params, name)
	if !ok || v.Kind() != flowtypes.KindNumber {
		return def
	}
	return int(v.AsNumber())
}
