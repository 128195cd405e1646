// Package main is the entry point for claudexd, the claudex proxy daemon.
// It loads the profile configuration, wires the four core subsystems
// together, and serves the §6 HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/claudex-proxy/claudex/internal/auth/manager"
	"github.com/claudex-proxy/claudex/internal/breaker"
	"github.com/claudex-proxy/claudex/internal/classifier"
	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/contextmw"
	"github.com/claudex-proxy/claudex/internal/dispatcher"
	"github.com/claudex-proxy/claudex/internal/logging"
	"github.com/claudex-proxy/claudex/internal/metrics"
	"github.com/claudex-proxy/claudex/internal/server"
)

// Version and Commit are stamped at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	var configPath string
	var debug bool
	var showVersion bool
	flag.StringVar(&configPath, "config", "claudex.yaml", "path to the profile configuration file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("claudexd %s (%s)\n", Version, Commit)
		return
	}

	_ = godotenv.Load()
	logging.Setup(debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("claudexd: failed to load configuration")
	}

	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("claudexd: fatal error")
	}
}

func run(cfg *config.Config) error {
	profiles, err := cfg.ProfileSet()
	if err != nil {
		return fmt.Errorf("claudexd: invalid profile configuration: %w", err)
	}

	breakerCfg := cfg.DefaultBreaker()
	breakers := breaker.NewRegistry(breakerCfg.Threshold, time.Duration(breakerCfg.RecoverySeconds)*time.Second)
	metricsRegistry := metrics.NewRegistry()
	classifierEngine := classifier.New(cfg.Classifier, profiles)
	crossStore := contextmw.NewCrossProfileStore()

	middleware := &contextmw.Middleware{
		CrossProfile: contextmw.NewCrossProfile(cfg.CrossProfile, crossStore),
		Compression:  contextmw.NewCompression(cfg.Compression),
	}
	if cfg.RAG.Enabled && len(cfg.RAG.Directories) > 0 {
		index, err := contextmw.BuildIndex(cfg.RAG.Directories, cfg.RAG.ChunkSize, contextmw.EmbedFunc(context.Background(), cfg.RAG))
		if err != nil {
			log.WithError(err).Warn("claudexd: failed to build RAG index, disabling pass")
		} else {
			middleware.RAG = contextmw.NewRAG(cfg.RAG, index)
		}
	}

	var tokens *manager.Manager
	if needsOAuth(profiles) {
		tokens = manager.New(profiles)
	}

	d := dispatcher.New(profiles, classifierEngine, middleware, crossStore, breakers, metricsRegistry, tokens)
	srv := server.New(d, profiles)

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 8787
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	log.WithField("addr", addr).Info("claudexd: listening")
	return srv.Run(addr)
}

func needsOAuth(profiles *config.ProfileSet) bool {
	for _, p := range profiles.All() {
		if p.AuthType == config.AuthOAuth {
			return true
		}
	}
	return false
}
