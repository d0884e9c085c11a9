// ztick-demo drives a coroutine scheduler from a fixed-rate host loop and runs a small scene:
// All/Any/Await showcases, a patrol task stopped at a given frame, and enemy waves on a scaled
// game clock. It can expose the ops endpoints while it runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evan-idocoding/ztick"
	"github.com/evan-idocoding/ztick/internal/config"
	"github.com/evan-idocoding/ztick/internal/logging"
	"github.com/evan-idocoding/ztick/ops"
	"github.com/evan-idocoding/ztick/rt/clock"
	"github.com/evan-idocoding/ztick/rt/coro"
)

var (
	configPath string
	frames     uint64
	fps        int
	stopAt     uint64
	waves      int
	gameScale  float64
	logLevel   string
	logFormat  string
	opsAddr    string
	opsToken   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ztick-demo",
		Short: "Cooperative task scheduler demo",
		Long: `ztick-demo runs a scene of cooperative tasks on a fixed-rate host loop.

Examples:
  # Run 600 frames at 60 FPS
  ztick-demo run

  # Run until interrupted, with the ops endpoints on :9090
  ztick-demo run --frames 0 --ops-addr 127.0.0.1:9090

  # Print the effective configuration
  ztick-demo config --config demo.yaml
`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().Uint64Var(&frames, "frames", 0, "Stop after this many frames (0: until interrupted)")
	rootCmd.PersistentFlags().IntVar(&fps, "fps", 0, "Frames per second")
	rootCmd.PersistentFlags().Uint64Var(&stopAt, "stop-at", 0, "Frame at which the patrol task is stopped (0: never)")
	rootCmd.PersistentFlags().IntVar(&waves, "waves", 0, "Number of enemy waves")
	rootCmd.PersistentFlags().Float64Var(&gameScale, "game-scale", 0, "Game clock speed relative to real time")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&opsAddr, "ops-addr", "", "Listen address of the ops HTTP server (empty: disabled)")
	rootCmd.PersistentFlags().StringVar(&opsToken, "ops-token", "", "Bearer token required by the ops endpoints")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config (or the defaults) and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Demo, error) {
	cfg := config.DefaultDemo()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return config.Demo{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("frames") {
		cfg.Loop.MaxFrames = frames
	}
	if flags.Changed("fps") {
		cfg.Loop.FPS = fps
	}
	if flags.Changed("stop-at") {
		cfg.Scene.StopAt = stopAt
	}
	if flags.Changed("waves") {
		cfg.Scene.Waves = waves
	}
	if flags.Changed("game-scale") {
		cfg.Scene.GameScale = gameScale
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("ops-addr") {
		cfg.Ops.Addr = opsAddr
	}
	if flags.Changed("ops-token") {
		cfg.Ops.Token = opsToken
	}
	if err := cfg.Validate(); err != nil {
		return config.Demo{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the demo scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}
}

// runStats is updated by scheduler hooks on the loop goroutine and read after the loop exits.
type runStats struct {
	started, succeeded, failed, stopped int
}

func (st *runStats) onFinish(info coro.FinishInfo) {
	switch info.State {
	case coro.StateSucceeded:
		st.succeeded++
	case coro.StateFailed:
		st.failed++
	case coro.StateStopped:
		st.stopped++
	}
}

func run(ctx context.Context, cfg config.Demo, out io.Writer) error {
	runID := uuid.New().String()
	lv := new(slog.LevelVar)
	lv.Set(logging.ParseLevel(cfg.Log.Level))
	logger := logging.NewLogger(lv, cfg.Log.Format).With("run_id", runID)

	game := clock.NewScaled(clock.Steady)
	game.SetScale(cfg.Scene.GameScale)

	var stats runStats
	s := coro.NewScheduler(
		coro.WithPhases(cfg.Loop.Phases),
		coro.WithDomains(cfg.Loop.Domains),
		coro.WithClock(coro.DomainGame, game.Now),
		coro.WithLogger(logger),
		coro.WithOnTaskStart(func(coro.StartInfo) { stats.started++ }),
		coro.WithOnTaskFinish(stats.onFinish),
		// The scheduler already logs the panic at error level; keep the stack out of the default output.
		coro.WithPanicHandler(func(info coro.PanicInfo) {
			logger.Debug("task panic stack", "id", info.ID, "name", info.Name, "stack", string(info.Stack))
		}),
	)

	sc, err := startScene(s, cfg.Scene, out)
	if err != nil {
		s.Close()
		return fmt.Errorf("start scene: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loop := ztick.NewLoop(s, ztick.LoopConfig{Interval: cfg.Loop.Interval(), MaxFrames: cfg.Loop.MaxFrames},
		ztick.WithLoopLogger(logger),
		ztick.WithFrameHook(sc.onFrame),
	)

	var srv *http.Server
	if cfg.Ops.Addr != "" {
		if srv, err = serveOps(loopCtx, cfg.Ops, loop, lv, logger); err != nil {
			s.Close()
			return err
		}
	}

	start := time.Now()
	runErr := loop.Run(loopCtx)

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", "error", err)
		}
		cancelShutdown()
	}

	fmt.Fprintf(out, "run %s: %s frames in %s, %d tasks started (%d succeeded, %d failed, %d stopped), scene complete: %v\n",
		runID[:8],
		humanize.Comma(int64(loop.Frames())),
		strings.TrimSpace(humanize.RelTime(start, time.Now(), "", "")),
		stats.started, stats.succeeded, stats.failed, stats.stopped,
		sc.done(),
	)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func serveOps(ctx context.Context, cfg config.OpsConfig, loop *ztick.Loop, lv *slog.LevelVar, logger *slog.Logger) (*http.Server, error) {
	router := ops.NewRouter(ops.RouterConfig{
		Tasks:       loop,
		LevelVar:    lv,
		ReadyChecks: []ops.ReadyCheck{{Name: "loop", Func: loop.Ready, Timeout: time.Second}},
		TaskOptions: []ops.TaskOption{ops.WithTaskAllowPrefixes("demo.")},
		Token:       cfg.Token,
		Logger:      logger.With("component", "ops"),
	})
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("ops listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server stopped", "error", err)
		}
	}()
	logger.Info("ops server listening", "addr", ln.Addr().String())
	return srv, nil
}
