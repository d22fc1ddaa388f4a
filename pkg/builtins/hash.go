package builtins

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerHash() {
	digest := func(newHash func() hash.Hash) Func {
		return func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
			s, err := stringArg(params, "data")
			if err != nil {
				return flowtypes.Null, err
			}
			h := newHash()
			h.Write([]byte(s))
			return flowtypes.String(hex.EncodeToString(h.Sum(nil))), nil
		}
	}
	r.Register("hash.md5", digest(md5.New))
	r.Register("hash.sha1", digest(sha1.New))
	r.Register("hash.sha256", digest(sha256.New))
	r.Register("hash.sha512", digest(sha512.New))

	r.Register("hash.hmac_sha256", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		data, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("hash.hmac_sha256: %w", err)
		}
		key, err := stringArg(params, "key")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("hash.hmac_sha256: %w", err)
		}
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(data))
		return flowtypes.String(hex.EncodeToString(mac.Sum(nil))), nil
	})
}
