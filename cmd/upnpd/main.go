package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/urmzd/upnpd/pkg/api"
	"github.com/urmzd/upnpd/pkg/config"
	"github.com/urmzd/upnpd/pkg/db"
	"github.com/urmzd/upnpd/pkg/device/schema"
	"github.com/urmzd/upnpd/pkg/logger"
	"github.com/urmzd/upnpd/pkg/stack"

	_ "github.com/urmzd/upnpd/docs"
)

// @title           upnpd API
// @version         1.0
// @description     Admin API for the UPnP discovery and eventing daemon

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	settings, err := config.Load()
	if err != nil {
		logger.Setup("info", logger.ConsoleFormat, os.Stderr)
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	dbPath := flag.String("db", settings.Database.Path, "Path to database file (default: <user config dir>/upnpd/upnpd.db)")
	description := flag.String("description", settings.DescriptionFile, "Device description XML to publish")
	advertiseHost := flag.String("advertise-host", settings.AdvertiseHost, "Host placed in LOCATION URLs")
	iface := flag.String("interface", settings.Interface, "Network interface for SSDP multicast")
	apiAddr := flag.String("api-addr", settings.HTTPServer.Address, "Admin API listen address (overrides the profile)")
	logLevel := flag.String("log-level", settings.Level, "Log level")
	logFormat := flag.String("log-format", settings.Format, "Log format (console or json)")
	flag.Parse()

	settings.Database.Path = *dbPath
	settings.DescriptionFile = *description
	settings.AdvertiseHost = *advertiseHost
	settings.Interface = *iface

	logger.Setup(*logLevel, *logFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenAndPrepare(ctx, settings.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()
	log.Info().Str("path", database.Path()).Msg("Database opened")

	cfg, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	addr := cfg.APIAddress()
	if *apiAddr != "" {
		addr = *apiAddr
	}

	log.Info().
		Str("profile", cfg.Profile.Name).
		Str("api_address", addr).
		Msg("Configuration loaded")

	opts, err := stack.Resolve(settings, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve options")
	}

	upnpStack, err := stack.New(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start UPnP stack")
	}

	router := api.NewRouter(upnpStack, upnpStack.Hub, upnpStack.Hub, schema.NewValidator())
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", addr).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("API server shutdown incomplete")
			_ = srv.Close()
		}
		return upnpStack.Close()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Daemon stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Daemon stopped")
}
