package auth

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key holding the session token.
const DefaultContextKey = "session_token"

// RouteRegistrar captures the router methods used to mount the auth routes.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPAuthenticator binds a Gateway to router requests. It reads credentials
// from the Authorization header and the session cookie, and refreshes the
// cookie on every authenticated response.
type HTTPAuthenticator struct {
	gateway      *Gateway
	cookieName   string
	secure       bool
	contextKey   string
	now          func() time.Time
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewHTTPAuthenticator returns an authenticator using cfg for cookie settings.
func NewHTTPAuthenticator(gateway *Gateway, cfg Config) *HTTPAuthenticator {
	cookieName := cfg.GetCookieName()
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	a := &HTTPAuthenticator{
		gateway:    gateway,
		cookieName: cookieName,
		secure:     cfg.GetSecureCookies(),
		contextKey: DefaultContextKey,
		now:        time.Now,
		Logger:     defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// RegisterRoutes mounts the login, logout and session endpoints on r.
func (a *HTTPAuthenticator) RegisterRoutes(r RouteRegistrar) {
	r.Post("/login", a.Login)
	r.Post("/logout", a.Logout, a.ProtectedRoute())
	r.Get("/session", a.Session, a.ProtectedRoute())
}

// Authenticate runs the gateway over the credentials carried by c.
func (a *HTTPAuthenticator) Authenticate(c router.Context) (AuthResult, error) {
	return a.gateway.Authenticate(Credentials{
		Authorization: c.GetString(router.HeaderAuthorization, ""),
		Cookie:        c.Cookies(a.cookieName),
	})
}

// ProtectedRoute rejects unauthenticated requests with 401. Authenticated
// requests get a refreshed session cookie and the token stored in locals.
func (a *HTTPAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token, err := a.authorize(c)
			if err != nil {
				return a.ErrorHandler(c, err)
			}
			c.Locals(a.contextKey, token)
			return next(c)
		}
	}
}

// Login exchanges Basic credentials for a session cookie.
func (a *HTTPAuthenticator) Login(c router.Context) error {
	if _, err := a.authorize(c); err != nil {
		return a.ErrorHandler(c, err)
	}
	return c.Status(http.StatusNoContent).SendString("")
}

// Logout replaces the session cookie with an expired one. Tokens stay
// valid until they expire.
func (a *HTTPAuthenticator) Logout(c router.Context) error {
	a.cookieDel(c, a.cookieName)
	return c.Status(http.StatusNoContent).SendString("")
}

// Session describes the current session.
func (a *HTTPAuthenticator) Session(c router.Context) error {
	token, ok := TokenFromContext(c, a.contextKey)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	claims, err := a.gateway.Claims(token)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, map[string]any{
		"email":      claims.Email,
		"issued_at":  claims.IssuedAt().UTC(),
		"expires_at": claims.Expires().UTC(),
	})
}

func (a *HTTPAuthenticator) authorize(c router.Context) (string, error) {
	result, err := a.Authenticate(c)
	if err != nil {
		return "", err
	}

	token, ok := result.Token()
	if !ok {
		return "", ErrUnauthenticated
	}

	a.setCookieToken(c, token)
	return token, nil
}

func (a *HTTPAuthenticator) setCookieToken(c router.Context, token string) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.gateway.TTL() / time.Second),
		Expires:  a.now().Add(a.gateway.TTL()),
		Secure:   a.secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (a *HTTPAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		Secure:   a.secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (a *HTTPAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Code == 0 {
		a.Logger.Error("authentication failed", "error", err)
		return c.JSON(router.StatusInternalServerError, map[string]any{
			"error": "An unexpected server error occurred",
		})
	}

	if richErr.Code >= router.StatusInternalServerError {
		a.Logger.Error("authentication failed", "error", err)
	}

	return c.JSON(richErr.Code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

// TokenFromContext returns the session token stored by ProtectedRoute.
func TokenFromContext(c router.Context, key string) (string, bool) {
	token, ok := c.Locals(key).(string)
	return token, ok && token != ""
}
