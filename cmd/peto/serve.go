package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/app"
	"github.com/ternarybob/peto/internal/common"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	workerRoles := fs.String("worker", app.RoleAll, "Comma-separated worker roles: scraper, matcher, tailor, all")
	fs.Parse(args)

	config, logger, err := boot(*configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.PrintBanner(common.GetVersion())

	roles := strings.Split(*workerRoles, ",")
	for i := range roles {
		roles[i] = strings.TrimSpace(roles[i])
	}

	application, err := app.New(config, logger, roles)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
		application.Stop()
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	cancel()
	application.Stop()
}
