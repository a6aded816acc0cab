package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const (
	// SecretLength is the number of characters in a generated signing secret.
	SecretLength = 32

	// 62 symbols, ~5.95 bits per character.
	alphaNumChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SecretProvider hands out the signing secret shared by every token operation.
type SecretProvider interface {
	SigningSecret() (string, error)
}

// SecretManager lazily generates one signing secret and memoizes it for the
// lifetime of the value. It is constructed once at startup and shared by
// reference. A failed generation is not memoized, so a later call may succeed.
type SecretManager struct {
	entropy io.Reader
	secret  atomic.Pointer[string]
	mu      sync.Mutex
}

// SecretOption customizes a SecretManager.
type SecretOption func(*SecretManager)

// WithEntropy overrides the secure random source (useful for tests).
func WithEntropy(r io.Reader) SecretOption {
	return func(sm *SecretManager) {
		if r != nil {
			sm.entropy = r
		}
	}
}

// WithStaticSecret pins the secret so tokens survive process restarts.
// An empty value keeps lazy generation.
func WithStaticSecret(secret string) SecretOption {
	return func(sm *SecretManager) {
		if secret != "" {
			sm.secret.Store(&secret)
		}
	}
}

// NewSecretManager returns a manager reading from crypto/rand by default.
func NewSecretManager(opts ...SecretOption) *SecretManager {
	sm := &SecretManager{
		entropy: rand.Reader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// SigningSecret returns the process signing secret, generating it on first use.
func (sm *SecretManager) SigningSecret() (string, error) {
	if s := sm.secret.Load(); s != nil {
		return *s, nil
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s := sm.secret.Load(); s != nil {
		return *s, nil
	}

	secret, err := randomAlphaNum(sm.entropy, SecretLength)
	if err != nil {
		return "", err
	}
	sm.secret.Store(&secret)
	return secret, nil
}

// randomAlphaNum draws n characters from alphaNumChars using rejection
// sampling so every symbol is equally likely.
func randomAlphaNum(r io.Reader, n int) (string, error) {
	const maxUnbiased = 256 - (256 % len(alphaNumChars))

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("%w: %w", ErrEntropy, err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphaNumChars[int(b)%len(alphaNumChars)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
