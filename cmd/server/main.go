package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"audhumla/api/httpserver"
	"audhumla/infra/config"
	"audhumla/infra/journal"
	"audhumla/infra/kafka"
	"audhumla/infra/outbox"
	"audhumla/infra/sequence"
	"audhumla/jobs/applier"
	"audhumla/jobs/broadcaster"
	"audhumla/jobs/runner"
	"audhumla/service"
	"audhumla/snapshot"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfgPath string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "audhumla",
		Short:         "Durable copy-on-write array server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfgPath, verbose)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func run(parent context.Context, cfgPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Journal ----------------

	jrnl, err := journal.Open(journal.Config{
		Dir:         cfg.Journal.Dir,
		SegmentSize: cfg.Journal.SegmentSize,
	})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	// ---------------- Outbox ----------------

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer ob.Close()

	// ---------------- Service ----------------

	svc := service.New(
		log,
		sequence.New(0),
		jrnl,
		ob,
		&snapshot.Writer{Dir: cfg.Snapshots.Dir},
		service.NewMetrics(nil),
	)

	if err := svc.Bootstrap(snapshot.Path(cfg.Snapshots.Dir), cfg.Journal.Dir); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	// ---------------- Background Jobs ----------------

	snapJob := runner.New(log, "snapshot", cfg.Snapshots.Interval.Std(),
		func(context.Context) error { return svc.WriteSnapshot() })
	snapJob.Start(ctx)
	defer snapJob.Wait()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(log, ob, cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
		if err != nil {
			return fmt.Errorf("dial kafka producer: %w", err)
		}
		defer bc.Close()

		drain := runner.New(log, "broadcast", 250*time.Millisecond, bc.Sweep)
		drain.Start(ctx)
		defer drain.Wait()

		app := applier.New(log,
			kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CommandTopic),
			svc)
		g.Go(func() error {
			defer app.Close()
			return app.Run(gctx)
		})
	}

	// ---------------- HTTP ----------------

	api := httpserver.NewServer(log, svc, nil)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.Router(),
	}

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// best-effort snapshot so the next boot replays a short tail
	if snapErr := svc.WriteSnapshot(); snapErr != nil {
		log.Warn("final snapshot failed", "err", snapErr)
	}

	log.Info("server stopped")
	return err
}
