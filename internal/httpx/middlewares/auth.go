// Package middlewares holds the HTTP middleware of the request gateway.
package middlewares

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// A custom type prevents collisions with keys from other packages.
type contextKey string

const contextKeyUserID contextKey = "user_id"

// BearerAuth validates "Authorization: Bearer <userID>:<hex hmac>" tokens
// and places the resolved user id on the request context. The coordinator
// and ledger never see the token, only the user id.
func BearerAuth(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				unauthorized(w)
				return
			}
			userID, ok := verifyToken(signingKey, strings.TrimPrefix(header, prefix))
			if !ok {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id, or "" outside an authenticated
// request.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}

// MintToken issues a bearer token for userID. Used by tests, local tooling
// and the smoke checks; production tokens come from whatever identity
// provider shares the signing key.
func MintToken(signingKey []byte, userID string) string {
	return userID + ":" + signature(signingKey, userID)
}

func verifyToken(signingKey []byte, token string) (string, bool) {
	userID, sig, ok := strings.Cut(token, ":")
	if !ok || userID == "" {
		return "", false
	}
	if !hmac.Equal([]byte(signature(signingKey, userID)), []byte(sig)) {
		return "", false
	}
	return userID, true
}

func signature(signingKey []byte, userID string) string {
	mac := hmac.New(sha256.New, signingKey)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
