package server

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/reddyt/reddyt-admin/auth"
	"github.com/reddyt/reddyt-admin/runs"
)

// Logger is the logging contract used by the HTTP layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps are the collaborators the HTTP layer is built on.
type Deps struct {
	Auth    *auth.HTTPAuthenticator
	Repo    runs.RepositoryManager
	Machine *runs.RunStateMachine
	Logger  Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns the router server for the admin API, backed by fiber.
func New(deps Deps) router.Server[*fiber.App] {
	if deps.Logger == nil {
		deps.Logger = runs.DefaultLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "reddyt-admin",
			DisableStartupMessage: true,
			ErrorHandler:          ErrorHandler(deps.Logger),
		}))
	})

	// auth failures bubble up and render like every other API error
	deps.Auth.ErrorHandler = func(_ router.Context, err error) error {
		return err
	}

	h := &handlers{
		repo:    deps.Repo,
		machine: deps.Machine,
		logger:  deps.Logger,
		now:     deps.Now,
	}

	r := srv.Router()
	r.Get("/healthz", func(c router.Context) error {
		return c.JSON(router.StatusOK, map[string]string{"status": "ok"})
	})

	deps.Auth.RegisterRoutes(r.Group("/authentication"))

	protected := deps.Auth.ProtectedRoute()

	profiles := r.Group("/profiles")
	profiles.Get("/", h.listProfiles, protected)
	profiles.Post("/", h.createProfile, protected)
	profiles.Get("/:id", h.getProfile, protected)
	profiles.Put("/:id", h.updateProfile, protected)
	profiles.Post("/:id/pause", h.pauseProfile(true), protected)
	profiles.Post("/:id/resume", h.pauseProfile(false), protected)
	profiles.Get("/:id/runs", h.listProfileRuns, protected)
	profiles.Post("/:id/runs", h.createRun, protected)
	profiles.Get("/:id/overrides", h.listOverrides, protected)
	profiles.Post("/:id/overrides", h.createOverride, protected)
	profiles.Get("/:id/oauth", h.listConnections, protected)
	profiles.Post("/:id/oauth", h.addConnection, protected)
	profiles.Put("/:id/oauth/:type", h.updateConnection, protected)
	profiles.Delete("/:id/oauth/:type", h.removeConnection, protected)

	rs := r.Group("/runs")
	rs.Get("/", h.listRuns, protected)
	rs.Get("/:id", h.getRun, protected)
	rs.Post("/:id/advance", h.advanceRun, protected)
	rs.Post("/:id/fail", h.failRun, protected)
	rs.Get("/:id/uploads", h.listUploads, protected)
	rs.Post("/:id/uploads", h.recordUpload, protected)

	return srv
}

type handlers struct {
	repo    runs.RepositoryManager
	machine *runs.RunStateMachine
	logger  Logger
	now     func() time.Time
}

// created writes v with 201.
func created(c router.Context, v any) error {
	return c.JSON(http.StatusCreated, v)
}

func list(c router.Context, records any) error {
	return c.JSON(router.StatusOK, map[string]any{"data": records})
}
