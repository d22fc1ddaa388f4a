package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

// MaxHTTPResponseBytes caps how much of a response body is read back
// into a flowtypes.Value, the same 2MB ceiling the teacher's http.go
// enforces against runaway downloads.
const MaxHTTPResponseBytes = 2 * 1024 * 1024

// DefaultHTTPClientTimeout bounds a request method's own http.Client
// when the request step's timeout ladder doesn't already cancel ctx
// first; 30s matches the engine's default request-step timeout
// (pkg/timeouts.DefaultRequestMS).
const DefaultHTTPClientTimeout = 30 * time.Second

func (r *Registry) registerHTTP() {
	client := &http.Client{Timeout: DefaultHTTPClientTimeout}
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		method := m
		r.Register("http."+strings.ToLower(method), func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
			return doHTTP(ctx, client, method, params)
		})
	}
	r.Register("http.request", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		method := strings.ToUpper(optStringArg(params, "method", "GET"))
		return doHTTP(ctx, client, method, params)
	})
}

func doHTTP(ctx context.Context, client *http.Client, method string, params flowtypes.Value) (flowtypes.Value, error) {
	requestURL, err := stringArg(params, "url")
	if err != nil {
		return flowtypes.Null, fmt.Errorf("http.%s: %w", strings.ToLower(method), err)
	}

	if q, ok := arg(params, "query"); ok && q.Kind() == flowtypes.KindMap {
		u, err := url.Parse(requestURL)
		if err != nil {
			return flowtypes.Null, fmt.Errorf("http.%s: invalid url: %w", strings.ToLower(method), err)
		}
		vals := u.Query()
		for _, k := range q.AsObject().Keys() {
			v, _ := q.AsObject().Get(k)
			vals.Set(k, v.ToDisplayString())
		}
		u.RawQuery = vals.Encode()
		requestURL = u.String()
	}

	var body io.Reader
	contentType := "application/json"
	if b, ok := arg(params, "body"); ok && !b.IsNull() {
		switch b.Kind() {
		case flowtypes.KindString:
			body = strings.NewReader(b.AsString())
			contentType = "text/plain"
		default:
			encoded, err := json.Marshal(b.ToGo())
			if err != nil {
				return flowtypes.Null, fmt.Errorf("http.%s: encoding body: %w", strings.ToLower(method), err)
			}
			body = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return flowtypes.Null, fmt.Errorf("http.%s: %w", strings.ToLower(method), err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if h, ok := arg(params, "headers"); ok && h.Kind() == flowtypes.KindMap {
		for _, k := range h.AsObject().Keys() {
			v, _ := h.AsObject().Get(k)
			req.Header.Set(k, v.ToDisplayString())
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return flowtypes.Null, fmt.Errorf("http.%s: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxHTTPResponseBytes))
	if err != nil {
		return flowtypes.Null, fmt.Errorf("http.%s: reading response: %w", strings.ToLower(method), err)
	}

	result := flowtypes.NewObject()
	result.Set("code", flowtypes.Number(float64(resp.StatusCode)))
	headers := flowtypes.NewObject()
	for k := range resp.Header {
		headers.Set(k, flowtypes.String(resp.Header.Get(k)))
	}
	result.Set("headers", flowtypes.Map(headers))

	var decoded interface{}
	if json.Valid(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err == nil {
			result.Set("body", flowtypes.FromGo(decoded))
		} else {
			result.Set("body", flowtypes.String(string(raw)))
		}
	} else {
		result.Set("body", flowtypes.String(string(raw)))
	}

	return flowtypes.Map(result), nil
}
