// Package middleware provides HTTP middleware for authenticating webhook deliveries.
package middleware

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// deliveryIDKey is the context key for the GitHub delivery GUID.
const deliveryIDKey ContextKey = "deliveryID"

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Hub-Signature-256"

// DeliveryHeader carries the unique id GitHub assigns to each delivery.
const DeliveryHeader = "X-GitHub-Delivery"

// MaxPayloadBytes matches the largest payload GitHub will deliver.
const MaxPayloadBytes = 25 << 20

// Sign returns the X-Hub-Signature-256 value for payload.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the valid HMAC of payload.
func VerifySignature(secret, payload []byte, signature string) bool {
	digest, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignatureMiddleware rejects requests whose body is not signed with secret.
// An empty secret disables verification. The body is restored for the next
// handler and the delivery id is stored in the request context.
func SignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), deliveryIDKey, r.Header.Get(DeliveryHeader))

			if secret == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			payload, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
			if err != nil {
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
			_ = r.Body.Close()

			signature := r.Header.Get(SignatureHeader)
			if signature == "" || !VerifySignature([]byte(secret), payload, signature) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			r = r.WithContext(ctx)
			r.Body = io.NopCloser(bytes.NewReader(payload))
			next.ServeHTTP(w, r)
		})
	}
}

// GetDeliveryID extracts the delivery id from the request context.
func GetDeliveryID(r *http.Request) (string, error) {
	id, ok := r.Context().Value(deliveryIDKey).(string)
	if !ok {
		return "", fmt.Errorf("delivery ID not found in request context")
	}
	return id, nil
}
