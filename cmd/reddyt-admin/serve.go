package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reddyt/reddyt-admin/auth"
	"github.com/reddyt/reddyt-admin/logging"
	"github.com/reddyt/reddyt-admin/runs"
	"github.com/reddyt/reddyt-admin/server"
	"github.com/reddyt/reddyt-admin/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the run scheduler and the pipeline workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), ctx, !noWorkers)
		},
	}

	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "Serve the API without scheduling or processing runs")
	return cmd
}

func serve(parent context.Context, cmdCtx *commandContext, withWorkers bool) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := cmdCtx.logger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := cmdCtx.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrator, err := cmdCtx.migrator(db, logging.Component(logger, "migrate"))
		if err != nil {
			return err
		}
		if _, err := migrator.Up(ctx); err != nil {
			return err
		}
	}

	repo := runs.NewRepositoryManager(db)
	repo.MustValidate()

	machine := runs.NewRunStateMachine(repo.Runs(),
		runs.WithStateMachineLogger(logging.Component(logger, "runs")),
	)

	var secretOpts []auth.SecretOption
	if cfg.GetSigningSecret() != "" {
		secretOpts = append(secretOpts, auth.WithStaticSecret(cfg.GetSigningSecret()))
	}
	authLogger := logging.Component(logger, "auth")
	tokens := auth.NewTokenService(auth.NewSecretManager(secretOpts...), authLogger)
	gateway := auth.NewGateway(auth.IdentityFromConfig(cfg), tokens,
		auth.WithGatewayLogger(authLogger),
		auth.WithTokenTTL(cfg.GetTokenTTL()),
	)
	httpAuth := auth.NewHTTPAuthenticator(gateway, cfg)
	httpAuth.Logger = authLogger

	srv := server.New(server.Deps{
		Auth:    httpAuth,
		Repo:    repo,
		Machine: machine,
		Logger:  logging.Component(logger, "http"),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "bind", cfg.Bind, "env", cfg.Env)
		return srv.Serve(cfg.Bind)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withWorkers {
		workerLogger := logging.Component(logger, "worker")

		pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize,
			worker.WithPoolLogger(workerLogger),
		)
		pool.Start(gctx)

		manager := worker.NewManager(repo, machine, worker.NewRegistry(), pool,
			worker.WithManagerInterval(cfg.TickInterval()),
			worker.WithManagerLogger(workerLogger),
		)
		scheduler := worker.NewScheduler(repo,
			worker.WithSchedulerInterval(cfg.ScheduleInterval()),
			worker.WithSchedulerLogger(logging.Component(logger, "scheduler")),
		)

		g.Go(func() error {
			err := manager.Run(gctx)
			pool.Wait()
			return err
		})
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("reddyt-admin stopped")
	return err
}
