package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/candidate-profiler/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run all enabled pipelines with the monitoring API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return serve(ctx, env, port)
	},
}

// buildServer wires the monitoring API over env. Request contexts derive
// from ctx so open streams end when ctx does.
func buildServer(ctx context.Context, env *pipelineEnv, port int) *http.Server {
	api := monitoring.NewAPI(env.Registry, env.Supervisor, env.Store,
		monitoring.WithStreamInterval(time.Duration(cfg.Server.StreamIntervalMs)*time.Millisecond),
		monitoring.WithCORSOrigins(cfg.Server.CORSOrigins),
	)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// serve starts the pipelines, the HTTP server and the alert checker, and
// blocks until ctx is cancelled and everything has stopped.
func serve(ctx context.Context, env *pipelineEnv, port int) error {
	log := zap.L().With(zap.String("component", "serve"))

	started := env.Supervisor.StartAll()
	if started == 0 {
		log.Warn("no pipelines running")
	}

	checker := monitoring.NewChecker(
		monitoring.NewCollector(env.Registry, env.Store),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)

	g, gctx := errgroup.WithContext(ctx)
	srv := buildServer(gctx, env, port)

	g.Go(func() error {
		checker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		env.Supervisor.StopAll(time.Duration(cfg.Server.StopTimeoutSecs) * time.Second)

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
