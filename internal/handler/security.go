package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/domain/auth"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "api_key"

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys and
// resolves the portal user the key acts for.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, as stored in the
// api_keys table.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate rejects requests without a valid API key and stores the
// resolved actor in the request context.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			key, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if key == "" {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		hash := HashKey(s.pepper, key)
		info, err := s.apikeys.FindByHash(ctx, hash)
		if err != nil {
			zctx.From(ctx).Debug("API key rejected", zap.Error(err))
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		// The stored hash is compared again in constant time in case the
		// lookup matched on anything but the exact digest.
		computed, _ := hex.DecodeString(hash)
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		actor := info.Actor()
		if actor.UserID == "" {
			writeMessage(w, http.StatusForbidden, "api key is not bound to a user")
			return
		}
		ctx = auth.WithActor(ctx, actor)
		ctx = zctx.With(ctx, zap.String("user_id", actor.UserID), zap.Bool("admin", actor.Admin))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
