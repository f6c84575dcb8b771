package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/fleetctl/cmd/api/config"
	"github.com/melih/fleetctl/internal/adapters/docker"
	"github.com/melih/fleetctl/internal/adapters/http"
	"github.com/melih/fleetctl/internal/adapters/registry"
	"github.com/melih/fleetctl/internal/adapters/remote"
	"github.com/melih/fleetctl/internal/core/fleet"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fleetctl exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Adapters (Infrastructure)
	dockerAdapter, err := docker.NewAdapter(cfg.DockerHost, logger.With("component", "docker"))
	if err != nil {
		return err
	}
	defer dockerAdapter.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := dockerAdapter.Ping(pingCtx); err != nil {
		// Not fatal: the engine may come up later and listings degrade per request.
		logger.Warn("local docker engine not reachable", "error", err)
	}
	cancel()

	executor, err := remote.NewExecutor(remote.Options{
		ConnectTimeout: cfg.SSHConnectTimeout,
		KnownHostsFile: cfg.SSHKnownHosts,
		Logger:         logger.With("component", "ssh"),
	})
	if err != nil {
		return fmt.Errorf("init ssh executor: %w", err)
	}

	hosts := registry.NewStore(cfg.RegistryFile, logger.With("component", "registry"))

	// 2. Core service
	service := fleet.NewService(dockerAdapter, executor, hosts, fleet.Config{
		LocalName:   cfg.LocalName,
		Elevated:    cfg.RemoteSudo,
		FanOutLimit: cfg.FanOutLimit,
	}, logger.With("component", "fleet"))

	// 3. Setup Framework (Fiber) and routes
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http.NewFleetHandler(service).Routes(app)

	// 4. Start Server
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "registry", cfg.RegistryFile)
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
