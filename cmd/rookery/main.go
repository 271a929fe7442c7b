package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernhill/rookery/pkg/config"
	"github.com/fernhill/rookery/pkg/container"
	"github.com/fernhill/rookery/pkg/cron"
	"github.com/fernhill/rookery/pkg/events"
	"github.com/fernhill/rookery/pkg/health"
	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
	"github.com/fernhill/rookery/pkg/queue"
	"github.com/fernhill/rookery/pkg/telemetry"
	"github.com/fernhill/rookery/pkg/throttle"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rookery",
	Short: "Rookery - computed container runtime",
	Long: `Rookery hosts computed containers: folders whose children are
produced by periodic reconciliation runs instead of user edits.

It owns the build queue, the global computation throttle, the minute
cron driving periodic triggers, and the per-container run telemetry.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Rookery version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Rookery service",
	Long: `Start the service: open the telemetry store, start the build
queue with the throttle and disabled-ancestor gates installed, start
the event broker and the minute cron, and serve Prometheus metrics
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
		logger := log.WithComponent("serve")

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		tele, err := telemetry.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer tele.Close()

		var q *queue.Queue
		th := throttle.New(cfg.ThrottleLimit, func() int { return q.Running() })
		q = queue.New(cfg.Executors,
			queue.Gate{},
			queue.HookFunc(func(t queue.Task) error { return th.CanRun(t.Key()) }),
		)
		q.Start()
		defer q.Stop()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		reporter := health.NewReporter(tele, cfg.HealthReportCacheMin)
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)
		go func() {
			for ev := range sub {
				switch ev.Type {
				case events.EventComputationFinished, events.EventContainerDeleted:
					reporter.Invalidate(ev.Container)
				}
			}
		}()

		registry := container.NewRegistry()

		ticker := cron.New(func() []cron.Trigger {
			var out []cron.Trigger
			for _, c := range registry.All() {
				for _, tr := range c.Triggers() {
					out = append(out, tr)
				}
			}
			return out
		})
		ticker.Start()
		defer ticker.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			reports := make([]health.Report, 0, registry.Len())
			for _, c := range registry.All() {
				rep, err := reporter.Report(c.FullName())
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				reports = append(reports, rep)
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(reports); err != nil {
				logger.Warn().Err(err).Msg("failed to write health response")
			}
		})

		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer srv.Close()

		logger.Info().
			Str("data_dir", cfg.DataDir).
			Int("executors", cfg.Executors).
			Int("throttle_limit", th.Limit()).
			Str("metrics_addr", cfg.MetricsAddr).
			Msg("rookery started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("shutting down")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the YAML configuration file")
}
