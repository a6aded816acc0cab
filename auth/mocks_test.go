package auth_test

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/reddyt/reddyt-admin/auth"
	"github.com/stretchr/testify/mock"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "secret"
	testSecret    = "0123456789abcdefghijABCDEFGHIJkl"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type testConfig struct {
	email    string
	password string
	secure   bool
}

func (c testConfig) GetAdminEmail() string       { return c.email }
func (c testConfig) GetAdminPassword() string    { return c.password }
func (c testConfig) GetCookieName() string       { return "" }
func (c testConfig) GetTokenTTL() time.Duration  { return auth.DefaultTokenTTL }
func (c testConfig) GetSecureCookies() bool      { return c.secure }
func (c testConfig) GetSigningSecret() string    { return testSecret }

func defaultConfig() testConfig {
	return testConfig{email: adminEmail, password: adminPassword}
}

type failingSecrets struct {
	err error
}

func (f failingSecrets) SigningSecret() (string, error) {
	return "", f.err
}

var errReaderBroken = errors.New("reader broken")

// flakyReader fails the first `failures` reads, then serves deterministic bytes.
type flakyReader struct {
	mu       sync.Mutex
	failures int
	reads    int
	next     byte
}

func (r *flakyReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++
	if r.failures > 0 {
		r.failures--
		return 0, errReaderBroken
	}
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

var _ io.Reader = (*flakyReader)(nil)

func newTokens() *auth.TokenService {
	return auth.NewTokenService(auth.NewSecretManager(auth.WithStaticSecret(testSecret)), nopLogger{})
}

// MockTokenCodec implements auth.TokenCodec
type MockTokenCodec struct {
	mock.Mock
}

func (m *MockTokenCodec) Issue(email string, now time.Time, ttl time.Duration) (string, error) {
	args := m.Called(email, now, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTokenCodec) Verify(raw string, now time.Time) (*auth.SessionClaims, error) {
	args := m.Called(raw, now)
	claims, _ := args.Get(0).(*auth.SessionClaims)
	return claims, args.Error(1)
}
