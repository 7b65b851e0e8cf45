package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/rcsb/depfile/internal/http/services/depositfile"
	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/kv/registry"
	_ "github.com/rcsb/depfile/pkg/kv/rediskv"
	_ "github.com/rcsb/depfile/pkg/kv/sqlitekv"
	applog "github.com/rcsb/depfile/pkg/log"
	"github.com/rcsb/depfile/pkg/sweeper"
)

var (
	configFlag  = flag.String("c", "/etc/depfiled/depfiled.yaml", "set configuration file")
	versionFlag = flag.Bool("version", false, "show version and exit")

	gitCommit, buildDate, version string
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("depfiled %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %s\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %s\n", err)
		os.Exit(1)
	}

	applog.Mode = os.Getenv("DEPFILE_LOG_MODE")
	l := applog.New("depfiled")
	if err := applog.Enable("depfiled"); err != nil {
		fmt.Fprintf(os.Stderr, "error enabling logger: %s\n", err)
		os.Exit(1)
	}
	logger := l.Zerolog()

	run(cfg, *logger)
}

func run(cfg *config.Config, log zerolog.Logger) {
	var redisClient *redis.Client
	if cfg.LockType == "redis" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisHost + ":6379"})
		defer redisClient.Close()
	}

	newStore, ok := registry.NewFuncs[cfg.KVMode]
	if !ok {
		log.Error().Str("kvMode", cfg.KVMode).Msg("no kv backend registered for this mode")
		os.Exit(1)
	}
	store, err := newStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("error constructing kv store")
		os.Exit(1)
	}
	defer store.Close()

	sw := sweeper.New(cfg, store, redisClient, log)
	if err := sw.Startup(); err != nil {
		log.Error().Err(err).Msg("error preparing service directories")
		os.Exit(1)
	}

	svc, err := depositfile.New(cfg, store, redisClient, log)
	if err != nil {
		log.Error().Err(err).Msg("error constructing deposition file service")
		os.Exit(1)
	}

	addr := cfg.ServerHostAndPort
	if u, err := url.Parse(addr); err == nil && u.Host != "" {
		addr = u.Host
	}
	server := &http.Server{
		Addr:    addr,
		Handler: svc.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSeconds) * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				sw.Sweep(ctx, false)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("starting deposition file service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("error starting http server")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("error during http server shutdown")
	}
	sw.Shutdown(shutdownCtx)
}
