package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opd-ai/go-barstatus/internal/bar"
	"github.com/opd-ai/go-barstatus/internal/blocks"
	"github.com/opd-ai/go-barstatus/internal/config"
	"github.com/opd-ai/go-barstatus/internal/logging"
	"github.com/opd-ai/go-barstatus/internal/profiling"
	"github.com/opd-ai/go-barstatus/internal/signals"
)

// rootOptions are the flags of the root command.
type rootOptions struct {
	verbosity   int
	noLogFile   bool
	exitOnError bool
	neverPause  bool
	noInit      bool
	watch       bool
	debugAddr   string
	cpuProfile  string
	memProfile  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "barstatus [CONFIG_FILE]",
		Short: "A status line generator for swaybar and i3bar",
		Long: `barstatus runs the blocks listed in its TOML configuration and prints
their output as an i3bar protocol status line. CONFIG_FILE defaults to
config.toml in the barstatus configuration directory.`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(logging.Options{
				Verbosity: opts.verbosity,
				NoFile:    opts.noLogFile || cmd != cmd.Root(),
				Console:   cmd.ErrOrStderr(),
			})
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBar(cmd.Context(), opts, configName(args), cmd.InOrStdin(), cmd.OutOrStdout())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	root.PersistentFlags().BoolVar(&opts.noLogFile, "no-log-file", false, "Log to standard error only")

	flags := root.Flags()
	flags.BoolVar(&opts.exitOnError, "exit-on-error", false, "Exit when a block fails instead of showing the error")
	flags.BoolVar(&opts.neverPause, "never-pause", false, "Ask the bar never to stop barstatus while hidden")
	flags.BoolVar(&opts.noInit, "no-init", false, "Do not print the protocol header")
	flags.BoolVar(&opts.watch, "watch", false, "Restart when the configuration file changes")
	flags.StringVar(&opts.debugAddr, "debug-addr", "", "Serve metrics on `ADDR` under /debug/vars")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to `FILE`")
	flags.StringVar(&opts.memProfile, "memprofile", "", "Write a heap profile to `FILE` on exit")
	_ = flags.MarkHidden("no-init")

	root.AddCommand(newCheckCmd(), newVersionCmd())
	return root
}

func configName(args []string) string {
	if len(args) == 0 {
		return config.DefaultFile
	}
	return args[0]
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "barstatus version %s\n", Version)
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [CONFIG_FILE]",
		Short: "Validate a configuration without running it",
		Long: `check loads the configuration, validates it and builds every block,
which parses its formats. No block is started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configName(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range cfg.Blocks {
				if _, err := blocks.New(b.Type, b); err != nil {
					return fmt.Errorf("block %d: %w", b.Index, err)
				}
			}
			fmt.Fprintf(out, "%s: %d blocks OK\n", cfg.Path, len(cfg.Blocks))
			return nil
		},
	}
}

// loadConfig loads and validates a configuration. Validation warnings are
// logged.
func loadConfig(name string) (*config.Config, error) {
	cfg, err := config.Load(name)
	if err != nil {
		return nil, err
	}
	result := config.NewValidator(blocks.Known).Validate(cfg)
	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Path, err)
	}
	return cfg, nil
}

func runBar(ctx context.Context, opts *rootOptions, name string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(name)
	if err != nil {
		return err
	}

	prof := profiling.Config{CPUProfilePath: opts.cpuProfile, MemProfilePath: opts.memProfile}
	if prof.Enabled() {
		profiler := profiling.New(prof)
		if err := profiler.Start(); err != nil {
			return err
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				log.Warn().Err(err).Msg("Failed to stop profiling")
			}
		}()
	}

	metrics := bar.DefaultMetrics()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reload atomic.Bool
	if opts.watch {
		w, err := config.NewWatcher([]string{cfg.Path}, config.DefaultWatchDebounce, func(path string) {
			log.Info().Str("path", path).Msg("Configuration changed, restarting")
			reload.Store(true)
			cancel()
		}, func(err error) {
			log.Warn().Err(err).Msg("Configuration watcher error")
		})
		if err != nil {
			return fmt.Errorf("watching %s: %w", cfg.Path, err)
		}
		w.Start()
		defer w.Stop()
	}

	b, err := bar.New(ctx, cfg, bar.Options{
		ExitOnError: opts.exitOnError,
		NeverPause:  opts.neverPause,
		NoInit:      opts.noInit,
	}, in, out, metrics)
	if err != nil {
		return err
	}

	if opts.debugAddr != "" {
		metrics.RegisterExpvar()
		shutdown, err := serveDebug(opts.debugAddr, b)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	err = b.Run(ctx)
	if errors.Is(err, bar.ErrRestart) || (err == nil && reload.Load()) {
		log.Info().Msg("Restarting")
		return signals.RestartProcess()
	}
	return err
}

// debugMux serves the metrics under /debug/vars and the health of b under
// /healthz.
func debugMux(b *bar.Bar) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		check := b.Health()
		w.Header().Set("Content-Type", "application/json")
		if check.Status == bar.HealthUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(check); err != nil {
			log.Debug().Err(err).Msg("Writing health check failed")
		}
	})
	return mux
}

func serveDebug(addr string, b *bar.Bar) (shutdown func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debug listener: %w", err)
	}
	srv := &http.Server{Handler: debugMux(b), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Debug server failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
