package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUnauthenticated = "UNAUTHENTICATED"
	textCodeTokenInvalid    = "SESSION_TOKEN_INVALID"
	textCodeClock           = "CLOCK_OVERFLOW"
	textCodeEntropy         = "ENTROPY_UNAVAILABLE"
	textCodeTTL             = "TOKEN_TTL_INVALID"
)

// ErrUnauthenticated is the single error surfaced for every credential-shaped failure.
var ErrUnauthenticated = goerrors.New("Invalid or not provided credentials.", goerrors.CategoryAuth).
	WithTextCode(textCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned by the token codec for malformed, tampered,
// expired or foreign-signed tokens.
var ErrTokenInvalid = goerrors.New("session token is invalid", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrClock is returned when an expiry cannot be represented as a timestamp.
var ErrClock = goerrors.New("token expiry overflows the timestamp range", goerrors.CategoryInternal).
	WithTextCode(textCodeClock).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTTL is returned when a token lifetime is under one second.
var ErrInvalidTTL = goerrors.New("token lifetime must be at least one second", goerrors.CategoryInternal).
	WithTextCode(textCodeTTL).
	WithCode(goerrors.CodeInternal)

// ErrEntropy is returned when the secure random source fails.
var ErrEntropy = goerrors.New("secure random source unavailable", goerrors.CategoryInternal).
	WithTextCode(textCodeEntropy).
	WithCode(goerrors.CodeInternal)

// GatewayError wraps infrastructure failures raised while authenticating a
// request. Callers map it to a 5xx response.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return "auth gateway: " + e.Op
	}
	return "auth gateway: " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err carries an infrastructure failure from the gateway.
func IsGatewayError(err error) bool {
	var gerr *GatewayError
	return errors.As(err, &gerr)
}

// IsTokenInvalid reports whether err is a credential-shaped token failure.
func IsTokenInvalid(err error) bool {
	return errors.Is(err, ErrTokenInvalid)
}
