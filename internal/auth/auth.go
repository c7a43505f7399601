// Package auth validates record-API keys against configured SHA-256 hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/tjfontaine/interview-conductor/internal/config"
)

// Key is one authorized API key as configured.
type Key struct {
	KeyHash     string
	Description string
}

// Authenticator validates API keys against the configured key hashes.
// Safe for concurrent use; Reload swaps the key set on config changes.
type Authenticator struct {
	mu   sync.RWMutex
	keys map[string]Key // keyhash -> key
}

// NewAuthenticator builds an authenticator from configured keys.
func NewAuthenticator(configured []config.APIKeyConfig) *Authenticator {
	a := &Authenticator{}
	a.Reload(configured)
	return a
}

// Reload replaces the authorized key set.
func (a *Authenticator) Reload(configured []config.APIKeyConfig) {
	keys := make(map[string]Key, len(configured))
	for _, kc := range configured {
		keys[kc.KeyHash] = Key{KeyHash: kc.KeyHash, Description: kc.Description}
	}

	a.mu.Lock()
	a.keys = keys
	a.mu.Unlock()
}

// ValidateAPIKey validates an API key and returns its configured entry.
func (a *Authenticator) ValidateAPIKey(apiKey string) (Key, error) {
	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	a.mu.RLock()
	key, ok := a.keys[keyHash]
	a.mu.RUnlock()
	if !ok {
		return Key{}, fmt.Errorf("invalid API key")
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(key.KeyHash)) != 1 {
		return Key{}, fmt.Errorf("invalid API key")
	}
	return key, nil
}

// ExtractAPIKey extracts the API key from the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
