package auth

import (
	"fmt"
	"strings"
	"time"
)

// Logger is the logging contract used across the admin backend.
// Arguments after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetAdminEmail() string
	GetAdminPassword() string
	GetCookieName() string
	GetTokenTTL() time.Duration
	GetSecureCookies() bool
	GetSigningSecret() string
}

// AdminIdentity is the single administrator allowed to use the backend.
type AdminIdentity struct {
	Email    string
	Password string
}

// IdentityFromConfig builds the admin identity from configuration.
func IdentityFromConfig(cfg Config) AdminIdentity {
	return AdminIdentity{
		Email:    cfg.GetAdminEmail(),
		Password: cfg.GetAdminPassword(),
	}
}

// String never prints the password.
func (a AdminIdentity) String() string {
	return fmt.Sprintf("AdminIdentity{email=%s}", a.Email)
}

const (
	// DefaultCookieName is the cookie holding the bearer token.
	DefaultCookieName = "authentication"
	// DefaultTokenTTL is the lifetime of issued session tokens.
	DefaultTokenTTL = 3 * time.Hour
)

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, args))
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	b.WriteByte('\n')
	return b.String()
}
