package tokenstore

import (
	"time"

	"DirectChat/pkg/cache"
)

// Revoked jtis live until the token itself would have expired; after that
// the signature check rejects the token anyway.
var revoked = cache.New(0)

// RevokeToken marks jti as logged out until exp.
func RevokeToken(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return
	}
	revoked.Set(jti, struct{}{}, ttl)
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	_, ok := revoked.Get(jti)
	return ok
}
