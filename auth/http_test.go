package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/reddyt/reddyt-admin/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPApp(t *testing.T, cfg testConfig) (*fiber.App, *auth.TokenService) {
	t.Helper()

	tokens := newTokens()
	gw := auth.NewGateway(auth.IdentityFromConfig(cfg), tokens, auth.WithGatewayLogger(nopLogger{}))
	httpAuth := auth.NewHTTPAuthenticator(gw, cfg)
	httpAuth.Logger = nopLogger{}

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{DisableStartupMessage: true})
	})
	httpAuth.RegisterRoutes(srv.Router().Group("/authentication"))
	srv.Router().Get("/protected", func(c router.Context) error {
		token, ok := auth.TokenFromContext(c, auth.DefaultContextKey)
		if !ok {
			return c.Status(http.StatusTeapot).SendString("")
		}
		return c.SendString(token)
	}, httpAuth.ProtectedRoute())

	return srv.WrappedRouter(), tokens
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestHTTPAuthenticator_Login(t *testing.T) {
	app, tokens := newHTTPApp(t, defaultConfig())

	req := httptest.NewRequest(fiber.MethodPost, "/authentication/login", nil)
	req.Header.Set(fiber.HeaderAuthorization, basicHeader(adminEmail, adminPassword))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, "/", cookie.Path)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), cookie.Expires, 5*time.Second)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)

	claims, err := tokens.Verify(cookie.Value, time.Now())
	require.NoError(t, err)
	assert.Equal(t, adminEmail, claims.Email)
}

func TestHTTPAuthenticator_LoginSecureCookie(t *testing.T) {
	cfg := defaultConfig()
	cfg.secure = true
	app, _ := newHTTPApp(t, cfg)

	req := httptest.NewRequest(fiber.MethodPost, "/authentication/login", nil)
	req.Header.Set(fiber.HeaderAuthorization, basicHeader(adminEmail, adminPassword))

	resp, err := app.Test(req)
	require.NoError(t, err)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
}

func TestHTTPAuthenticator_LoginRejected(t *testing.T) {
	app, _ := newHTTPApp(t, defaultConfig())

	req := httptest.NewRequest(fiber.MethodPost, "/authentication/login", nil)
	req.Header.Set(fiber.HeaderAuthorization, basicHeader(adminEmail, "wrong"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Invalid or not provided credentials.", body["error"])
}

func TestHTTPAuthenticator_ProtectedRoute(t *testing.T) {
	app, tokens := newHTTPApp(t, defaultConfig())

	token, err := tokens.Issue(adminEmail, time.Now(), auth.DefaultTokenTTL)
	require.NoError(t, err)

	t.Run("rejects missing credentials", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("accepts the session cookie and refreshes it", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		cookie := sessionCookie(resp)
		require.NotNil(t, cookie)
		assert.Equal(t, token, cookie.Value)
	})

	t.Run("basic credentials mint a fresh token", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, basicHeader(adminEmail, adminPassword))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotNil(t, sessionCookie(resp))
	})
}

func TestHTTPAuthenticator_Session(t *testing.T) {
	app, tokens := newHTTPApp(t, defaultConfig())

	issued := time.Now().Truncate(time.Second)
	token, err := tokens.Issue(adminEmail, issued, auth.DefaultTokenTTL)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/authentication/session", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Email     string    `json:"email"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, adminEmail, body.Email)
	assert.True(t, body.ExpiresAt.Equal(issued.Add(auth.DefaultTokenTTL)))
}

func TestHTTPAuthenticator_Logout(t *testing.T) {
	app, tokens := newHTTPApp(t, defaultConfig())

	t.Run("requires a session", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/authentication/logout", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expires the cookie", func(t *testing.T) {
		token, err := tokens.Issue(adminEmail, time.Now(), auth.DefaultTokenTTL)
		require.NoError(t, err)

		req := httptest.NewRequest(fiber.MethodPost, "/authentication/logout", nil)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

		cookie := sessionCookie(resp)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.Expires.Before(time.Now()))
	})
}
