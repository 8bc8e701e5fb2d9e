// Command queuecore runs a single-process queuecore deployment: it loads
// configuration from the environment, wires the singletons in
// app.CoreContext, registers a sample queue and handler, and serves until
// an interrupt signal asks it to shut down gracefully.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vqmcore/queuecore/app"
	"github.com/vqmcore/queuecore/config"
	"github.com/vqmcore/queuecore/queue"
)

func main() {
	if err := run(); err != nil {
		slog.Error("queuecore exited with an error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}

	core.Broker.RegisterQueue(queue.Queue{
		Name:              "default",
		MaxConcurrency:    cfg.WorkerConcurrency,
		VisibilityTimeout: cfg.DefaultVisibilityTimeout,
	})
	core.InitWorkers([]string{"default"})
	core.Workers.RegisterHandler("default", "noop", func(ctx context.Context, job *queue.Job) error {
		core.Log.Info("processed job", "id", job.Id, "kind", job.Kind)
		return nil
	})

	if err := core.Start(ctx); err != nil {
		return err
	}
	core.Log.Info("queuecore started")

	<-ctx.Done()
	core.Log.Info("shutting down")

	done := make(chan error, 1)
	go func() { done <- core.Stop() }()
	select {
	case err := <-done:
		return err
	case <-time.After(cfg.ShutdownTimeout + 5*time.Second):
		return context.DeadlineExceeded
	}
}
