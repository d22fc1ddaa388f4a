// Package flowtypes defines the runtime value representation and the
// declarative data model (flows, steps, policies) shared across the
// engine's packages.
package flowtypes

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns a debug-friendly type name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "array"
	case KindMap:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON-like values the expression
// language and step executors operate on. Numbers are always float64,
// matching the JavaScript-flavored coercion rules the expression
// subsystem implements (spec §4.3); there is no separate int/float
// distinction, and null and undefined collapse to the same Null value
// since nothing observable in this engine depends on telling them apart.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	list   []Value
	object *Object
}

// Null is the shared null/undefined value.
var Null = Value{kind: KindNull}

func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func Number(v float64) Value { return Value{kind: KindNumber, n: v} }
func String(v string) Value  { return Value{kind: KindString, s: v} }
func List(v []Value) Value   { return Value{kind: KindList, list: v} }
func Map(v *Object) Value    { return Value{kind: KindMap, object: v} }

// Kind reports the value's dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null/undefined value.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool        { return v.b }
func (v Value) AsNumber() float64   { return v.n }
func (v Value) AsString() string    { return v.s }
func (v Value) AsList() []Value     { return v.list }
func (v Value) AsObject() *Object   { return v.object }

// Truthy implements the engine's truthiness rule, matching JavaScript:
// false, null/undefined, 0, NaN and "" are falsy; every array and object
// is truthy regardless of length, since only scalars carry a zero value
// (spec §4.3's logical-operator rules).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	default:
		return true
	}
}

// ToNumber applies JavaScript-style coercion to a number. ok is false
// when the value cannot be coerced (object, array).
func (v Value) ToNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindNull:
		return 0, true
	case KindString:
		trimmed := strings.TrimSpace(v.s)
		if trimmed == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	default:
		return 0, false
	}
}

// ToDisplayString renders a value the way template literals and string
// concatenation do.
func (v Value) ToDisplayString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.ToDisplayString()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		parts := make([]string, 0, v.object.Len())
		for _, k := range v.object.Keys() {
			val, _ := v.object.Get(k)
			parts = append(parts, fmt.Sprintf("%s:%s", k, val.ToDisplayString()))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// LooseEqual implements coercive equality (the `==`/`!=` operators).
func (v Value) LooseEqual(o Value) bool {
	if v.kind == o.kind {
		return v.StrictEqual(o)
	}
	// null/undefined only loosely equal each other.
	if v.kind == KindNull || o.kind == KindNull {
		return v.kind == o.kind
	}
	an, aok := v.ToNumber()
	bn, bok := o.ToNumber()
	if aok && bok {
		return an == bn
	}
	return false
}

// StrictEqual implements `===`/`!==`: type and value must match exactly.
func (v Value) StrictEqual(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].StrictEqual(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.object.Len() != o.object.Len() {
			return false
		}
		for _, k := range v.object.Keys() {
			ov, ok := o.object.Get(k)
			if !ok {
				return false
			}
			mv, _ := v.object.Get(k)
			if !mv.StrictEqual(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone performs a deep copy, used when a loop/transform must not let
// mutations of an intermediate value leak into shared state.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items)
	case KindMap:
		return Map(v.object.Clone())
	default:
		return v
	}
}

// Object is an insertion-ordered string-keyed map, matching the
// object-literal and JSON-object semantics required by spec §3/§4.3.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Get retrieves a value by key.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set inserts or overwrites a key, preserving original insertion order on
// overwrite (matching the "duplicate keys overwrite" rule of §4.3 for
// object literals — last writer wins on value, first writer wins on
// position).
func (o *Object) Set(key string, val Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = val
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *Object) Len() int { return len(o.keys) }

// Clone performs a deep copy of the object.
func (o *Object) Clone() *Object {
	c := NewObject()
	for _, k := range o.keys {
		c.Set(k, o.values[k].Clone())
	}
	return c
}

// FromGo converts a plain Go value (as produced by encoding/json or
// yaml.v3 unmarshaling into interface{}) into a Value.
func FromGo(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool(val)
	case int:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case float64:
		return Number(val)
	case json.Number:
		f, _ := val.Float64()
		return Number(f)
	case string:
		return String(val)
	case []interface{}:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromGo(item)
		}
		return List(items)
	case []Value:
		return List(val)
	case map[string]interface{}:
		obj := NewObject()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj.Set(k, FromGo(val[k]))
		}
		return Map(obj)
	// yaml.v3 decodes mappings into map[string]interface{} when a
	// concrete type is requested, but falls back to
	// map[interface{}]interface{} for untyped decode targets.
	case map[interface{}]interface{}:
		obj := NewObject()
		keys := make([]string, 0, len(val))
		keyOf := make(map[string]interface{}, len(val))
		for k := range val {
			ks := fmt.Sprintf("%v", k)
			keys = append(keys, ks)
			keyOf[ks] = k
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj.Set(k, FromGo(val[keyOf[k]]))
		}
		return Map(obj)
	case Value:
		return val
	default:
		return String(fmt.Sprintf("%v", val))
	}
}

// ToGo converts a Value back into a plain Go interface{}, e.g. for
// JSON-encoding an event payload or a final flow result.
func (v Value) ToGo() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, v.object.Len())
		for _, k := range v.object.Keys() {
			val, _ := v.object.Get(k)
			out[k] = val.ToGo()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler, preserving object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool, KindNumber, KindString:
		return json.Marshal(v.ToGo())
	case KindList:
		items := make([]json.RawMessage, len(v.list))
		for i, item := range v.list {
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			items[i] = b
		}
		return json.Marshal(items)
	case KindMap:
		var buf strings.Builder
		buf.WriteByte('{')
		for i, k := range v.object.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			val, _ := v.object.Get(k)
			vb, err := val.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return []byte(buf.String()), nil
	default:
		return nil, fmt.Errorf("flowtypes: cannot marshal value of kind %v", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler via the generic decode path.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromGo(raw)
	return nil
}
