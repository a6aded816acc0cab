package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	basicPrefix  = "Basic "
	bearerPrefix = "Bearer "
)

// TokenCodec issues and verifies session tokens.
type TokenCodec interface {
	Issue(email string, now time.Time, ttl time.Duration) (string, error)
	Verify(raw string, now time.Time) (*SessionClaims, error)
}

// Credentials is the raw credential material of one request.
type Credentials struct {
	// Authorization is the Authorization header value, empty when absent.
	Authorization string
	// Cookie is the session cookie value, empty when absent.
	Cookie string
}

type scheme int

const (
	schemeNone scheme = iota
	schemeBasic
	schemeBearer
)

// Gateway authenticates requests against the admin identity. It holds no
// per-request state and is safe for concurrent use.
type Gateway struct {
	identity AdminIdentity
	tokens   TokenCodec
	ttl      time.Duration
	now      func() time.Time
	logger   Logger
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayClock injects a custom clock (useful for tests).
func WithGatewayClock(clock func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithGatewayLogger overrides the logger.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTokenTTL overrides the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) GatewayOption {
	return func(g *Gateway) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// NewGateway returns a gateway verifying credentials against identity.
func NewGateway(identity AdminIdentity, tokens TokenCodec, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		identity: identity,
		tokens:   tokens,
		ttl:      DefaultTokenTTL,
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// TTL returns the lifetime of issued tokens.
func (g *Gateway) TTL() time.Duration {
	return g.ttl
}

// Authenticate resolves the credentials of one request. Missing, malformed,
// mismatched, expired and tampered credentials all yield Unauthenticated with
// a nil error. A non-nil error is always a *GatewayError.
func (g *Gateway) Authenticate(creds Credentials) (AuthResult, error) {
	kind, material := extract(creds)

	switch kind {
	case schemeBasic:
		return g.basic(material)
	case schemeBearer:
		return g.bearer(material)
	default:
		return Unauthenticated(), nil
	}
}

// Claims decodes the claims of a token previously accepted by Authenticate.
func (g *Gateway) Claims(token string) (*SessionClaims, error) {
	claims, err := g.tokens.Verify(token, g.now())
	if err != nil {
		if IsTokenInvalid(err) {
			return nil, ErrUnauthenticated
		}
		return nil, &GatewayError{Op: "verify", Err: err}
	}
	return claims, nil
}

func (g *Gateway) basic(encoded string) (AuthResult, error) {
	email, password, ok := decodeBasic(encoded)
	if !ok {
		g.logger.Debug("basic credentials ignored", "reason", "malformed")
		return Unauthenticated(), nil
	}

	if !VerifyBasic(email, password, g.identity) {
		g.logger.Debug("basic credentials rejected")
		return Unauthenticated(), nil
	}

	token, err := g.tokens.Issue(email, g.now(), g.ttl)
	if err != nil {
		g.logger.Error("session token issue failed", "error", err)
		return Unauthenticated(), &GatewayError{Op: "issue", Err: err}
	}

	return Authenticated(token), nil
}

func (g *Gateway) bearer(token string) (AuthResult, error) {
	claims, err := g.tokens.Verify(token, g.now())
	if err != nil {
		if IsTokenInvalid(err) {
			return Unauthenticated(), nil
		}
		g.logger.Error("session token verify failed", "error", err)
		return Unauthenticated(), &GatewayError{Op: "verify", Err: err}
	}

	// tokens minted for a previous admin identity stop working immediately
	if subtle.ConstantTimeCompare([]byte(claims.Email), []byte(g.identity.Email)) != 1 {
		g.logger.Debug("bearer token rejected", "reason", "identity mismatch")
		return Unauthenticated(), nil
	}

	return Authenticated(token), nil
}

// extract picks the credential material: the Authorization header wins, the
// cookie is only consulted when the header is absent.
func extract(creds Credentials) (scheme, string) {
	if creds.Authorization != "" {
		switch {
		case strings.HasPrefix(creds.Authorization, basicPrefix):
			return schemeBasic, creds.Authorization[len(basicPrefix):]
		case strings.HasPrefix(creds.Authorization, bearerPrefix):
			return schemeBearer, creds.Authorization[len(bearerPrefix):]
		default:
			return schemeNone, ""
		}
	}

	if creds.Cookie != "" {
		return schemeBearer, creds.Cookie
	}

	return schemeNone, ""
}

func decodeBasic(encoded string) (email, password string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}
