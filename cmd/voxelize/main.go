package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xlab/closer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"voxelize/internal/config"
	"voxelize/internal/engine"
	"voxelize/internal/registry"
	"voxelize/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address override")
	blocksPath := flag.String("blocks", "", "path to extra block definitions (JSON)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	blocks := registry.Default()
	if *blocksPath != "" {
		if err := registry.LoadBlocks(*blocksPath, blocks); err != nil {
			log.Fatal("failed to load block definitions", zap.Error(err))
		}
	}

	promRegistry := prometheus.NewRegistry()

	eng, err := engine.New(
		cfg.World,
		engine.Resources{Registry: blocks},
		nil,
		nil,
		log,
		promRegistry,
	)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}

	options := server.Options{Addr: cfg.Addr}
	if cfg.Metrics {
		options.Metrics = promRegistry
	}

	srv := server.New(eng, options, log)
	eng.SetTransport(srv)

	ctx, cancel := context.WithCancel(context.Background())

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx, cfg.TickInterval())
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("server stopped", zap.Error(err))
			closer.Close()
		}
	}()

	closer.Bind(func() {
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown error", zap.Error(err))
		}

		cancel()
		<-engineDone

		log.Info("goodbye")
	})

	closer.Hold()
}

func buildLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
