// Command etl runs the class-schedule pipeline: PDF extraction, staging
// transform and warehouse load, plus the query web server and the scheduled
// refresh.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avaldezp/olap-horarios/pkg/config"
)

func main() {
	mode := flag.String("mode", "run", "extract | transform | load | run | serve | scheduled")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := realMain(*mode, logger); err != nil {
		logger.Error("fatal", slog.String("mode", *mode), slog.Any("error", err))
		os.Exit(1)
	}
}

func realMain(mode string, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// extract and transform only touch the filesystem
	withDB := mode != "extract" && mode != "transform"

	deps, err := InitDependencies(cfg, logger, withDB)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "extract":
		_, err = deps.Runner.Extract(ctx)
		return err
	case "transform":
		_, err = deps.Runner.Transform(ctx)
		return err
	case "load":
		_, err = deps.Runner.Load(ctx)
		return err
	case "run":
		report, err := deps.Runner.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("pipeline run complete", slog.String("job_id", report.JobID.String()))
		return nil
	case "serve":
		return serve(ctx, deps)
	case "scheduled":
		return scheduled(ctx, deps)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// serve runs the query web server until interrupted.
func serve(ctx context.Context, deps *Dependencies) error {
	addr := fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("web server listening", slog.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	deps.Logger.Info("shutting down web server")
	return server.Shutdown(shutdownCtx)
}

// scheduled runs one refresh immediately, follows the cron spec, and serves
// the web form alongside until interrupted.
func scheduled(ctx context.Context, deps *Dependencies) error {
	if err := deps.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	deps.Scheduler.RunNow()
	defer func() { <-deps.Scheduler.Stop().Done() }()

	return serve(ctx, deps)
}
