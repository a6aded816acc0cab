package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/reddyt/reddyt-admin/auth"
	"github.com/reddyt/reddyt-admin/config"
	"github.com/reddyt/reddyt-admin/runs"
	"github.com/reddyt/reddyt-admin/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "secret"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type testServer struct {
	app   *fiber.App
	repo  runs.RepositoryManager
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Admin = config.Admin{Email: adminEmail, Password: adminPassword}
	cfg.Auth.SigningSecret = "0123456789abcdefghijABCDEFGHIJkl"
	require.NoError(t, cfg.Validate())

	db, err := runs.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	source, err := runs.MigrationsSource("")
	require.NoError(t, err)
	migrator, err := runs.NewMigrator(db, source, nopLogger{})
	require.NoError(t, err)
	_, err = migrator.Up(context.Background())
	require.NoError(t, err)

	repo := runs.NewRepositoryManager(db)
	machine := runs.NewRunStateMachine(repo.Runs(), runs.WithStateMachineLogger(nopLogger{}))

	secrets := auth.NewSecretManager(auth.WithStaticSecret(cfg.GetSigningSecret()))
	tokens := auth.NewTokenService(secrets, nopLogger{})
	gateway := auth.NewGateway(auth.IdentityFromConfig(&cfg), tokens,
		auth.WithGatewayLogger(nopLogger{}),
		auth.WithTokenTTL(cfg.GetTokenTTL()),
	)
	httpAuth := auth.NewHTTPAuthenticator(gateway, &cfg)
	httpAuth.Logger = nopLogger{}

	srv := server.New(server.Deps{
		Auth:    httpAuth,
		Repo:    repo,
		Machine: machine,
		Logger:  nopLogger{},
	})

	ts := &testServer{app: srv.WrappedRouter(), repo: repo}
	ts.token = ts.login(t)
	return ts
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, "/authentication/login", nil)
	creds := base64.StdEncoding.EncodeToString([]byte(adminEmail + ":" + adminPassword))
	req.Header.Set(fiber.HeaderAuthorization, "Basic "+creds)

	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c.Value
		}
	}
	t.Fatal("login did not set a session cookie")
	return ""
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if ts.token != "" {
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: ts.token})
	}

	resp, err := ts.app.Test(req)
	require.NoError(t, err)

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (ts *testServer) createProfile(t *testing.T, name string) string {
	t.Helper()
	resp, body := ts.do(t, fiber.MethodPost, "/profiles", map[string]any{
		"name":            name,
		"upload_schedule": "0 9 * * *",
		"question_prompt": "Ask something people argue about",
		"voice_name":      "en-US-Neural2-J",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	return body["id"].(string)
}

func TestServer_RequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)
	ts.token = ""

	for _, path := range []string{"/profiles", "/runs"} {
		resp, body := ts.do(t, fiber.MethodGet, path, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, "Invalid or not provided credentials.", body["error"])
	}

	resp, _ := ts.do(t, fiber.MethodGet, "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestServer_ProtectedRouteRefreshesCookie(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, fiber.MethodGet, "/profiles", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			found = true
			assert.WithinDuration(t, time.Now().Add(3*time.Hour), c.Expires, 5*time.Second)
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found)
}

func TestServer_Profiles(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProfile(t, "ask-reddit")

	resp, body := ts.do(t, fiber.MethodGet, "/profiles/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ask-reddit", body["name"])
	assert.Equal(t, false, body["paused"])

	resp, body = ts.do(t, fiber.MethodPut, "/profiles/"+id, map[string]any{
		"name":            "ask-reddit-nsfw",
		"upload_schedule": "30 18 * * 1-5",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "ask-reddit-nsfw", body["name"])
	assert.Equal(t, "30 18 * * 1-5", body["upload_schedule"])

	resp, body = ts.do(t, fiber.MethodPost, "/profiles/"+id+"/pause", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["paused"])

	resp, body = ts.do(t, fiber.MethodPost, "/profiles/"+id+"/resume", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["paused"])

	resp, body = ts.do(t, fiber.MethodGet, "/profiles", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
}

func TestServer_ProfileErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		status   int
		textCode string
	}{
		{
			name:     "missing name",
			method:   fiber.MethodPost,
			path:     "/profiles",
			body:     map[string]any{"upload_schedule": "0 9 * * *"},
			status:   fiber.StatusBadRequest,
			textCode: "INVALID_PAYLOAD",
		},
		{
			name:     "bad cron",
			method:   fiber.MethodPost,
			path:     "/profiles",
			body:     map[string]any{"name": "ask-reddit", "upload_schedule": "every day"},
			status:   fiber.StatusBadRequest,
			textCode: "PROFILE_INVALID",
		},
		{
			name:     "bad id",
			method:   fiber.MethodGet,
			path:     "/profiles/not-a-uuid",
			status:   fiber.StatusBadRequest,
			textCode: "INVALID_ID",
		},
		{
			name:     "unknown profile",
			method:   fiber.MethodGet,
			path:     "/profiles/6f1c2a52-4f0e-4a5e-9b7a-8f0e1d2c3b4a",
			status:   fiber.StatusNotFound,
			textCode: "PROFILE_NOT_FOUND",
		},
		{
			name:     "manual run for unknown profile",
			method:   fiber.MethodPost,
			path:     "/profiles/6f1c2a52-4f0e-4a5e-9b7a-8f0e1d2c3b4a/runs",
			status:   fiber.StatusNotFound,
			textCode: "PROFILE_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.textCode, body["text_code"])
		})
	}

	resp, body := ts.do(t, fiber.MethodPost, "/profiles", map[string]any{"upload_schedule": "0 9 * * *"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok, body)
	assert.Contains(t, details, "name")
}

func TestServer_DuplicateProfileName(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "daily")
	otherID := ts.createProfile(t, "weekly")

	resp, body := ts.do(t, fiber.MethodPost, "/profiles", map[string]any{
		"name":            "daily",
		"upload_schedule": "0 12 * * *",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode, body)
	assert.Equal(t, "PROFILE_NAME_TAKEN", body["text_code"])

	resp, body = ts.do(t, fiber.MethodPut, "/profiles/"+otherID, map[string]any{
		"name":            "daily",
		"upload_schedule": "0 12 * * *",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode, body)
	assert.Equal(t, "PROFILE_NAME_TAKEN", body["text_code"])
}

func TestServer_Connections(t *testing.T) {
	ts := newTestServer(t)
	profileID := ts.createProfile(t, "ask-reddit")
	base := "/profiles/" + profileID + "/oauth"

	resp, body := ts.do(t, fiber.MethodPost, base, map[string]any{
		"oauth_type":    "youtube",
		"refresh_token": "1//refresh",
		"auth_token":    "ya29.token",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "YOUTUBE", body["oauth_type"])
	assert.Equal(t, true, body["has_refresh_token"])
	assert.NotContains(t, body, "refresh_token")
	assert.NotContains(t, body, "auth_token")

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		status   int
		textCode string
	}{
		{"duplicate", fiber.MethodPost, base, map[string]any{"oauth_type": "YOUTUBE"}, fiber.StatusConflict, "OAUTH_CONNECTION_EXISTS"},
		{"unknown type", fiber.MethodPost, base, map[string]any{"oauth_type": "tiktok"}, fiber.StatusBadRequest, "OAUTH_TYPE_UNKNOWN"},
		{"missing type", fiber.MethodPost, base, map[string]any{}, fiber.StatusBadRequest, "INVALID_PAYLOAD"},
		{"unknown profile", fiber.MethodGet, "/profiles/6f1c2a52-4f0e-4a5e-9b7a-8f0e1d2c3b4a/oauth", nil, fiber.StatusNotFound, "PROFILE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			assert.Equal(t, tt.textCode, body["text_code"])
		})
	}

	resp, body = ts.do(t, fiber.MethodPut, base+"/youtube", map[string]any{"auth_token": "ya29.next"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["has_refresh_token"])
	assert.Equal(t, true, body["has_auth_token"])

	resp, body = ts.do(t, fiber.MethodGet, base, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	resp, _ = ts.do(t, fiber.MethodDelete, base+"/youtube", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = ts.do(t, fiber.MethodDelete, base+"/youtube", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "OAUTH_CONNECTION_NOT_FOUND", body["text_code"])
}

func TestServer_Uploads(t *testing.T) {
	ts := newTestServer(t)
	profileID := ts.createProfile(t, "ask-reddit")

	resp, run := ts.do(t, fiber.MethodPost, "/profiles/"+profileID+"/runs", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, run)
	base := "/runs/" + run["id"].(string) + "/uploads"

	resp, body := ts.do(t, fiber.MethodPost, base, map[string]any{
		"platform":      "youtube",
		"generated_url": "https://youtu.be/dQw4w9WgXcQ",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "YOUTUBE", body["platform"])

	resp, body = ts.do(t, fiber.MethodPost, base, map[string]any{
		"platform":      "local",
		"generated_url": "videos/ask-reddit/2024-05-01.mp4",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)

	tests := []struct {
		name     string
		path     string
		body     any
		status   int
		textCode string
	}{
		{"same platform twice", base, map[string]any{"platform": "YOUTUBE", "generated_url": "https://youtu.be/x"}, fiber.StatusConflict, "UPLOAD_EXISTS"},
		{"not a url", base, map[string]any{"platform": "youtube", "generated_url": "not a url"}, fiber.StatusBadRequest, "INVALID_PAYLOAD"},
		{"unknown platform", base, map[string]any{"platform": "vimeo", "generated_url": "https://vimeo.com/1"}, fiber.StatusBadRequest, "UPLOAD_PLATFORM_UNKNOWN"},
		{"unknown run", "/runs/6f1c2a52-4f0e-4a5e-9b7a-8f0e1d2c3b4a/uploads", map[string]any{"platform": "local", "generated_url": "a.mp4"}, fiber.StatusNotFound, "RUN_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, fiber.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			assert.Equal(t, tt.textCode, body["text_code"])
		})
	}

	resp, body = ts.do(t, fiber.MethodGet, base, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 2)
}

func TestServer_RunLifecycle(t *testing.T) {
	ts := newTestServer(t)
	profileID := ts.createProfile(t, "ask-reddit")

	resp, run := ts.do(t, fiber.MethodPost, "/profiles/"+profileID+"/runs", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, run)
	assert.Equal(t, string(runs.StateIdling), run["current_state"])
	assert.Equal(t, string(runs.SourceManual), run["source"])
	runID := run["id"].(string)

	resp, run = ts.do(t, fiber.MethodPost, "/runs/"+runID+"/advance", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, run)
	assert.Equal(t, string(runs.StateGeneratingQuestion), run["current_state"])

	resp, body := ts.do(t, fiber.MethodGet, "/runs?state=generating_question&profile_id="+profileID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	resp, body = ts.do(t, fiber.MethodGet, "/runs?source=manual", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	for _, query := range []string{"source=cron", "limit=-1", "active=maybe"} {
		resp, body = ts.do(t, fiber.MethodGet, "/runs?"+query, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, query)
		assert.Equal(t, "INVALID_QUERY", body["text_code"], query)
	}

	resp, body = ts.do(t, fiber.MethodGet, "/runs?state=rendering", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "RUN_STATE_UNKNOWN", body["text_code"])

	resp, body = ts.do(t, fiber.MethodPost, "/runs/"+runID+"/fail", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", body["text_code"])

	resp, run = ts.do(t, fiber.MethodPost, "/runs/"+runID+"/fail", map[string]any{"message": "tts quota exceeded"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, run)
	assert.Equal(t, string(runs.StateError), run["current_state"])
	assert.Equal(t, "tts quota exceeded", run["error"])

	for _, action := range []string{"advance", "fail"} {
		var payload any
		if action == "fail" {
			payload = map[string]any{"message": "again"}
		}
		resp, body = ts.do(t, fiber.MethodPost, "/runs/"+runID+"/"+action, payload)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode, action)
		assert.Equal(t, "RUN_STATE_FROZEN", body["text_code"], action)
	}

	resp, run = ts.do(t, fiber.MethodGet, "/runs/"+runID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "tts quota exceeded", run["error"])

	resp, body = ts.do(t, fiber.MethodGet, "/runs/6f1c2a52-4f0e-4a5e-9b7a-8f0e1d2c3b4a", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "RUN_NOT_FOUND", body["text_code"])

	resp, body = ts.do(t, fiber.MethodGet, "/profiles/"+profileID+"/runs", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
}

func TestServer_Overrides(t *testing.T) {
	ts := newTestServer(t)
	profileID := ts.createProfile(t, "ask-reddit")

	runsAt := time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)
	resp, body := ts.do(t, fiber.MethodPost, "/profiles/"+profileID+"/overrides", map[string]any{
		"runs_at": runsAt.Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, false, body["claimed"])

	resp, body = ts.do(t, fiber.MethodPost, "/profiles/"+profileID+"/overrides", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", body["text_code"])

	resp, body = ts.do(t, fiber.MethodGet, "/profiles/"+profileID+"/overrides", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, body["data"], 1)

	override := body["data"].([]any)[0].(map[string]any)
	parsed, err := time.Parse(time.RFC3339, override["runs_at"].(string))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(runsAt))
}
