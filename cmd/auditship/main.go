package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/auditship/internal/cliconfig"
	"github.com/bft-labs/auditship/pkg/auditship"
	"github.com/bft-labs/auditship/pkg/log"
	"github.com/bft-labs/auditship/plugins/configwatcher"
)

const helpDescription = `
Ship audit measurements to a pool of collectors with at-least-once delivery.

Highlights:
  - Every report is held until a collector acknowledges it and is resent on a timer.
  - Overflow spills to a local disaster file that is replayed on the next start.
  - Collector endpoints and cache limits reload live from the config file.

Audit items are read as newline-delimited JSON from --input; each line is one
item object or an array of items sent as a single request.
`

var exampleUsage = strings.TrimSpace(`
  auditship --collectors 10.0.0.1:9000,10.0.0.2:9000 --input items.ndjson --once
  tail -F audit.log | auditship --config $HOME/.auditship/config.toml
  auditship inspect /var/lib/auditship/audit-disaster.json
`)

// drainTimeout bounds how long --once waits for acknowledgments after EOF.
const drainTimeout = 30 * time.Second

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func bootstrapLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func main() {
	boot := bootstrapLogger()

	root := newRootCommand()
	root.AddCommand(newInspectCommand())

	if err := root.Execute(); err != nil {
		boot.Error().Err(err).Msg("auditship")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:          "auditship",
		Short:        "Ship audit measurements to collectors with at-least-once delivery",
		Long:         strings.TrimSpace(helpDescription),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment (AUDITSHIP_*) overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := log.NewZerologAdapter(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			zl := logger.Logger()
			zl.Info().Interface("config", cfg).Msg("configuration")

			return run(cmd.Context(), cfg, cfgFile, changed, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.auditship/config.toml)")
	root.Flags().StringSliceVar(&cfg.Collectors, "collectors", cfg.Collectors, "collector endpoints (host:port, comma separated)")
	root.Flags().IntVar(&cfg.MaxConnectChannels, "max-channels", cfg.MaxConnectChannels, "collectors used at once (-1 for all)")

	root.Flags().IntVar(&cfg.MaxCacheRows, "max-cache-rows", cfg.MaxCacheRows, "pending reports kept in memory before spilling to disk")
	root.Flags().Int64Var(&cfg.MaxFileSize, "max-file-size", cfg.MaxFileSize, "disaster file size in bytes above which it is discarded")
	root.Flags().StringVar(&cfg.FilePath, "file-path", cfg.FilePath, "directory holding the disaster file")
	root.Flags().StringVar(&cfg.DisasterFile, "disaster-file", cfg.DisasterFile, "disaster file path (defaults to <file-path>/audit-disaster.json)")
	_ = root.Flags().MarkHidden("disaster-file")

	root.Flags().DurationVar(&cfg.ClearInterval, "clear-interval", cfg.ClearInterval, "pause between buffer maintenance cycles")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "collector connect timeout")
	root.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "collector write timeout")

	root.Flags().StringVar(&cfg.IP, "ip", cfg.IP, "IP reported in request headers")
	root.Flags().StringVar(&cfg.DockerID, "docker-id", cfg.DockerID, "container id reported in request headers")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address serving Prometheus metrics (empty disables)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	root.Flags().StringVar(&cfg.Input, "input", cfg.Input, "newline-delimited JSON items (- for stdin)")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "exit after the input is exhausted and acknowledged")

	return root
}

func run(parent context.Context, cfg cliconfig.Config, cfgFile string, changed map[string]bool, logger *log.ZerologAdapter) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []auditship.Option{
		auditship.WithLogger(logger),
		auditship.WithMetricsRegisterer(reg),
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
			Path:   cfgFile,
			Pinned: changed,
		}))
	}

	a, err := auditship.New(auditship.Config{
		Collectors:         cfg.Collectors,
		MaxConnectChannels: cfg.MaxConnectChannels,
		MaxCacheRows:       cfg.MaxCacheRows,
		MaxFileSize:        cfg.MaxFileSize,
		FilePath:           cfg.FilePath,
		DisasterFile:       cfg.DisasterFile,
		ClearInterval:      cfg.ClearInterval,
		DialTimeout:        cfg.DialTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IP:                 cfg.IP,
		DockerID:           cfg.DockerID,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create auditship: %w", err)
	}

	srv := serveMetrics(cfg.MetricsAddr, reg, logger)

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start auditship: %w", err)
	}

	in, closeInput, err := openInput(cfg.Input)
	if err != nil {
		_ = a.Stop()
		return err
	}
	defer closeInput()

	readErr := make(chan error, 1)
	go func() {
		readErr <- readItems(ctx, in, logger, func(items []auditship.Item) error {
			_, err := a.Report(ctx, items...)
			return err
		})
	}()

	select {
	case <-ctx.Done():
		logger.Info("received signal, stopping")
	case err := <-readErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("input failed", log.Err(err))
		}
		if cfg.Once {
			drain(ctx, a, logger)
		} else {
			<-ctx.Done()
			logger.Info("received signal, stopping")
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}

	if err := a.Stop(); err != nil {
		return fmt.Errorf("stop auditship: %w", err)
	}
	return nil
}

// drain waits for outstanding reports to be acknowledged. Whatever remains
// after drainTimeout is persisted by Stop.
func drain(ctx context.Context, a *auditship.Auditship, logger log.Logger) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for a.Pending() > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("stopping with unacknowledged reports", log.Int("pending", a.Pending()))
			return
		case <-ticker.C:
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.String("addr", addr), log.Err(err))
		}
	}()
	logger.Info("serving metrics", log.String("addr", addr))
	return srv
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
