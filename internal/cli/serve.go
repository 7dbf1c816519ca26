package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jwttoken "registrar/internal/jwt_token"
	"registrar/internal/platform/httpserver"
	"registrar/internal/registration/handler"
	"registrar/pkg/platform/middleware/request"
)

// NewServeCommand runs the HTTP API and the periodic queue drain.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var noDrain bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registration API and background drainer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, !noDrain)
		},
	}
	cmd.Flags().BoolVar(&noDrain, "no-drain", false, "serve the API without draining the queue")
	return cmd
}

func serve(ctx context.Context, opts *RootOptions, drain bool) error {
	cfg, log := opts.cfg, opts.logger
	app, err := NewApp(ctx, cfg, log, opts.newTx)
	if err != nil {
		return err
	}
	defer app.Close()

	tokens := jwttoken.New(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	h := handler.New(app.Service, app.Runner, tokens.Validator(), cfg.Server.AdminToken, log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	httpserver.MountOperational(r, app.Registry, app.healthChecks()...)
	h.Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting registrar", "addr", cfg.Server.Addr, "drain", drain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if drain {
		g.Go(func() error {
			err := app.Runner.Run(gctx, cfg.Runner.DrainInterval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) healthChecks() []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{
		func(r *http.Request) error { return a.DB.PingContext(r.Context()) },
		func(r *http.Request) error { return a.Enrollments.Ping(r.Context()) },
	}
	if a.Redis != nil {
		checks = append(checks, func(r *http.Request) error { return a.Redis.Health(r.Context()) })
	}
	return checks
}
