package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/config"
	"github.com/dshills/gocontext-search/internal/mcp"
	"github.com/dshills/gocontext-search/internal/metrics"
	"github.com/dshills/gocontext-search/pkg/types"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			if cfg.Metrics.Addr != "" {
				stop := serveMetrics(ctx, cfg.Metrics.Addr, a.Metrics, a.Logger)
				defer stop()
			}

			srv := mcp.NewServer(a.Searcher, a, a.Storage,
				mcp.WithDefaults(searchDefaults(cfg)),
				mcp.WithLogger(a.Logger.Named("mcp")))
			err = srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				a.Logger.Info("server stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
	return cmd
}

// searchDefaults are the options applied to MCP search calls
func searchDefaults(cfg config.Config) types.Options {
	opts := types.DefaultOptions()
	opts.FinalLimit = cfg.Search.FinalLimit
	opts.CandidateLimit = cfg.Search.CandidateLimit
	return opts
}

// serveMetrics starts the /metrics endpoint and returns a func that shuts it down
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
}
