package builtins

import (
	"context"
	"testing"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func mapParams(kv map[string]flowtypes.Value) flowtypes.Value {
	obj := flowtypes.NewObject()
	for k, v := range kv {
		obj.Set(k, v)
	}
	return flowtypes.Map(obj)
}

func TestDispatchUnknownMethod(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Dispatch(context.Background(), "nope.nope", flowtypes.Null); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	r := NewRegistry()
	obj := flowtypes.NewObject()
	obj.Set("a", flowtypes.Number(1))
	encoded, err := r.Dispatch(context.Background(), "json.encode", mapParams(map[string]flowtypes.Value{
		"value": flowtypes.Map(obj),
	}))
	if err != nil {
		t.Fatalf("json.encode error: %v", err)
	}
	decoded, err := r.Dispatch(context.Background(), "json.decode", mapParams(map[string]flowtypes.Value{
		"data": encoded,
	}))
	if err != nil {
		t.Fatalf("json.decode error: %v", err)
	}
	v, ok := decoded.AsObject().Get("a")
	if !ok || v.AsNumber() != 1 {
		t.Errorf("round trip mismatch: got %v", decoded.ToGo())
	}
}

func TestBase64RoundTrip(t *testing.T) {
	r := NewRegistry()
	encoded, err := r.Dispatch(context.Background(), "base64.encode", mapParams(map[string]flowtypes.Value{
		"data": flowtypes.String("hello"),
	}))
	if err != nil {
		t.Fatalf("base64.encode error: %v", err)
	}
	decoded, err := r.Dispatch(context.Background(), "base64.decode", mapParams(map[string]flowtypes.Value{
		"data": encoded,
	}))
	if err != nil {
		t.Fatalf("base64.decode error: %v", err)
	}
	if decoded.AsString() != "hello" {
		t.Errorf("got %q, want %q", decoded.AsString(), "hello")
	}
}

func TestHashSHA256(t *testing.T) {
	r := NewRegistry()
	got, err := r.Dispatch(context.Background(), "hash.sha256", mapParams(map[string]flowtypes.Value{
		"data": flowtypes.String("abc"),
	}))
	if err != nil {
		t.Fatalf("hash.sha256 error: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got.AsString() != want {
		t.Errorf("hash.sha256(abc) = %s, want %s", got.AsString(), want)
	}
}

func TestTextSplitJoin(t *testing.T) {
	r := NewRegistry()
	split, err := r.Dispatch(context.Background(), "text.split", mapParams(map[string]flowtypes.Value{
		"data":      flowtypes.String("a,b,c"),
		"separator": flowtypes.String(","),
	}))
	if err != nil {
		t.Fatalf("text.split error: %v", err)
	}
	if len(split.AsList()) != 3 {
		t.Fatalf("text.split returned %d parts, want 3", len(split.AsList()))
	}
	joined, err := r.Dispatch(context.Background(), "text.join", mapParams(map[string]flowtypes.Value{
		"values":    split,
		"separator": flowtypes.String("-"),
	}))
	if err != nil {
		t.Fatalf("text.join error: %v", err)
	}
	if joined.AsString() != "a-b-c" {
		t.Errorf("text.join = %q, want %q", joined.AsString(), "a-b-c")
	}
}

func TestMapGetDefault(t *testing.T) {
	r := NewRegistry()
	obj := flowtypes.NewObject()
	obj.Set("x", flowtypes.Number(1))
	got, err := r.Dispatch(context.Background(), "map.get", mapParams(map[string]flowtypes.Value{
		"map":     flowtypes.Map(obj),
		"key":     flowtypes.String("y"),
		"default": flowtypes.Number(42),
	}))
	if err != nil {
		t.Fatalf("map.get error: %v", err)
	}
	if got.AsNumber() != 42 {
		t.Errorf("map.get fallback = %v, want 42", got.AsNumber())
	}
}

func TestUtilLen(t *testing.T) {
	r := NewRegistry()
	got, err := r.Dispatch(context.Background(), "util.len", mapParams(map[string]flowtypes.Value{
		"value": flowtypes.String("hello"),
	}))
	if err != nil {
		t.Fatalf("util.len error: %v", err)
	}
	if got.AsNumber() != 5 {
		t.Errorf("util.len(hello) = %v, want 5", got.AsNumber())
	}
}

func TestUUIDGenerateIsUnique(t *testing.T) {
	r := NewRegistry()
	a, err := r.Dispatch(context.Background(), "uuid.generate", flowtypes.Null)
	if err != nil {
		t.Fatalf("uuid.generate error: %v", err)
	}
	b, err := r.Dispatch(context.Background(), "uuid.generate", flowtypes.Null)
	if err != nil {
		t.Fatalf("uuid.generate error: %v", err)
	}
	if a.AsString() == b.AsString() {
		t.Errorf("uuid.generate returned the same value twice: %s", a.AsString())
	}
}
