package main

import (
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekala-project/atom/internal/logging"
	"github.com/ekala-project/atom/internal/metrics"
)

// globalFlags holds the four flags every subcommand shares: the repo
// root, the logger's level and format, and an optional metrics listener.
type globalFlags struct {
	workDir     string
	logLevel    string
	logFormat   string
	metricsAddr string
}

var flags globalFlags

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "atom",
		Short: "Publish, resolve, and materialize content-addressed atoms over Git",
	}

	root.PersistentFlags().StringVar(&flags.workDir, "work-dir", ".", "repository path")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "log format: console or json")
	root.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	root.AddCommand(newInitCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newFetchCmd())

	return root
}

func newLogger() (*zap.SugaredLogger, error) {
	return logging.New(flags.logLevel, flags.logFormat)
}

// maybeServeMetrics starts the metrics HTTP listener in the background
// when --metrics-addr is set; it never blocks the caller or fails the
// command if the listener cannot start.
func maybeServeMetrics(log *zap.SugaredLogger) {
	if flags.metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(flags.metricsAddr, mux); err != nil {
			log.Warnw("metrics listener stopped", "error", err)
		}
	}()
}
