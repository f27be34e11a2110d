// Package main provides the entry point for the nudge shell-completion
// daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nudge-sh/nudge/internal/arbiter"
	"github.com/nudge-sh/nudge/internal/cache"
	"github.com/nudge-sh/nudge/internal/config"
	"github.com/nudge-sh/nudge/internal/ctxgather"
	"github.com/nudge-sh/nudge/internal/debughttp"
	"github.com/nudge-sh/nudge/internal/ipcserver"
	"github.com/nudge-sh/nudge/internal/llm"
	"github.com/nudge-sh/nudge/internal/plugins"
	"github.com/nudge-sh/nudge/internal/safety"
	"github.com/nudge-sh/nudge/internal/sanitizer"
	"github.com/nudge-sh/nudge/internal/session"
	"github.com/nudge-sh/nudge/internal/telemetry"
	"github.com/nudge-sh/nudge/internal/tokenest"
)

// Version is stamped at build time via -ldflags; "dev" when built plainly.
var Version = "dev"

// debugHTTPAddr is the loopback-only diagnostics address (spec.md §9: this
// surface is advisory, never part of the shell IPC contract).
const debugHTTPAddr = "127.0.0.1:47878"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Str("version", Version).Msg("starting nudge daemon")

	if err := os.MkdirAll(config.ConfigDir(), 0o700); err != nil {
		log.Fatal().Err(err).Msg("failed to create config directory")
	}

	store, err := config.NewStore()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := store.Get()
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	watcher, err := config.WatchStore(ctx, store)
	if err != nil {
		log.Warn().Err(err).Msg("config: hot-reload watcher unavailable, continuing without it")
	}
	defer watcher.Close()

	tel, telShutdown, err := telemetry.New("nudge")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() { _ = telShutdown(context.Background()) }()

	c := cache.New(cfg.Cache.Capacity, cfg.Cache.StaleRatio)
	san := sanitizer.New(cfg.Privacy.CustomPatterns)
	val := safety.New(cfg.Safety.CustomBlocked, cfg.Safety.BlockDangerous)

	registry := plugins.NewRegistry(
		plugins.NewGitPlugin(
			time.Duration(cfg.Plugins.Git.DeadlineMS)*time.Millisecond,
			cfg.Plugins.Git.Priority,
			plugins.GitDepth(cfg.Plugins.Git.Depth),
			cfg.Plugins.Git.RecentCommits,
		),
		plugins.NewDockerPlugin(time.Duration(cfg.Plugins.Docker.DeadlineMS)*time.Millisecond, cfg.Plugins.Docker.Priority),
		plugins.NewNodePlugin(time.Duration(cfg.Plugins.Node.DeadlineMS)*time.Millisecond, cfg.Plugins.Node.Priority),
		plugins.NewPythonPlugin(time.Duration(cfg.Plugins.Python.DeadlineMS)*time.Millisecond, cfg.Plugins.Python.Priority),
		plugins.NewRustPlugin(time.Duration(cfg.Plugins.Rust.DeadlineMS)*time.Millisecond, cfg.Plugins.Rust.Priority),
	).WithTelemetry(tel)

	sessions := session.NewStore(cfg.Context.HistoryWindow * 4)
	estimator := tokenest.New()
	gatherer := ctxgather.New(&cfg.Context, &cfg.Plugins, registry, sessions, estimator, ctxgather.ListDir, ctxgather.DefaultSystemInfo())

	connector := llm.New(cfg.Model, llm.DefaultBreakerConfig(), tel)

	arb := arbiter.New(store, c, gatherer, connector, san, val, tel)

	ipc := ipcserver.New(store, c, arb, config.SocketPath(), config.PIDPath(), Version)
	ipcErrCh := make(chan error, 1)
	go func() { ipcErrCh <- ipc.Serve(ctx) }()

	debug := debughttp.New(debugHTTPAddr, Version, c, tel)
	go func() {
		if err := debug.ListenAndServe(); err != nil {
			log.Warn().Err(err).Msg("debughttp: server stopped")
		}
	}()

	log.Info().Str("socket", config.SocketPath()).Str("debug_addr", debugHTTPAddr).Msg("nudge daemon ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-ipcErrCh:
		if err != nil {
			log.Error().Err(err).Msg("ipc server exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ipc.Shutdown()
	if err := debug.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("debughttp: shutdown error")
	}

	log.Info().Msg("nudge daemon shutdown complete")
}
