// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundscope/ytrelay/internal/api"
	"github.com/soundscope/ytrelay/internal/cache"
	"github.com/soundscope/ytrelay/internal/config"
	"github.com/soundscope/ytrelay/internal/creds"
	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/extract/ytdlp"
	"github.com/soundscope/ytrelay/internal/extract/ytlib"
	"github.com/soundscope/ytrelay/internal/health"
	ytlog "github.com/soundscope/ytrelay/internal/log"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownGrace = 20 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Configure before reading config: the env parsers log through the
	// global logger. The level comes from YTRELAY_LOG_LEVEL directly.
	ytlog.Configure(ytlog.Config{
		Service: "ytrelay",
		Version: version,
	})
	baseLogger := ytlog.Base()
	baseLogger.Info().
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("ytrelay starting")
	logger := ytlog.WithComponent("daemon")

	cfg := config.FromEnv()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var provider creds.Provider = creds.None{}
	if cfg.CookiesPath != "" {
		fp := creds.NewFileProvider(cfg.CookiesPath, ytlog.WithComponent("creds"))
		defer func() { _ = fp.Close() }()
		provider = fp
	}

	var backend extract.Backend
	switch cfg.Backend {
	case config.BackendYTDLP:
		backend = ytdlp.New(cfg.YTDLPPath, provider, ytlog.WithComponent("ytdlp"))
	default:
		backend = ytlib.New(ytlog.WithComponent("ytlib"))
	}

	hm := health.New(version)

	opts := []api.Option{}
	if cfg.RedisAddr != "" {
		c := cache.New(cfg.RedisAddr, cfg.CacheTTL, ytlog.WithComponent("cache"))
		defer func() { _ = c.Close() }()
		opts = append(opts, api.WithCache(c))
		logger.Info().Str("redis_addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("manifest cache enabled")
	}

	srv := api.New(cfg, backend, hm, ytlog.WithComponent("api"), opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("relay daemon exited with error")
	}
	logger.Info().Msg("relay daemon stopped")
}
