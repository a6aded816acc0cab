package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// MaxTimestamp is the largest expiry a token may carry (9999-12-31T23:59:59Z).
const MaxTimestamp int64 = 253402300799

// DefaultIssuer is stamped into every session token.
const DefaultIssuer = "reddyt-admin"

// TokenService encodes and decodes signed session tokens.
type TokenService struct {
	secrets SecretProvider
	issuer  string
	logger  Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(secrets SecretProvider, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		secrets: secrets,
		issuer:  DefaultIssuer,
		logger:  logger,
	}
}

// Issue signs claims for email that expire at now+ttl. Timestamps have
// second precision, so ttl must be at least one second.
func (ts *TokenService) Issue(email string, now time.Time, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	issuedAt := now.Unix()
	seconds := int64(ttl / time.Second)
	if issuedAt > MaxTimestamp-seconds {
		return "", ErrClock
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(time.Unix(issuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(issuedAt+seconds, 0)),
		},
		Email: email,
	}

	secret, err := ts.secrets.SigningSecret()
	if err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Verify decodes raw and checks its signature and expiry against now.
// Every credential-shaped failure returns ErrTokenInvalid; any other error
// comes from the secret provider.
func (ts *TokenService) Verify(raw string, now time.Time) (*SessionClaims, error) {
	secret, err := ts.secrets.SigningSecret()
	if err != nil {
		return nil, err
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(ts.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	if err != nil {
		ts.logger.Debug("session token rejected", "expired", goerrors.Is(err, jwt.ErrTokenExpired))
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.Email == "" || !claims.Expires().After(now) {
		ts.logger.Debug("session token rejected", "expired", !claims.Expires().After(now))
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
