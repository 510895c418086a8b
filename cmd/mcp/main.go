package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/upnpd/pkg/config"
	"github.com/urmzd/upnpd/pkg/db"
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/device/schema"
	"github.com/urmzd/upnpd/pkg/logger"
	upnpmcp "github.com/urmzd/upnpd/pkg/mcp"
	"github.com/urmzd/upnpd/pkg/stack"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		logger.Setup("info", logger.ConsoleFormat, os.Stderr)
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	dbPath := flag.String("db", settings.Database.Path, "Path to database file (default: <user config dir>/upnpd/upnpd.db)")
	publish := flag.Bool("publish", false, "Also publish the profile's device description")
	flag.Parse()

	// Logging must go to stderr; stdout is the MCP transport
	logger.Setup(settings.Level, settings.Format, os.Stderr)

	ctx := context.Background()

	database, err := db.OpenAndPrepare(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	cfg, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	opts, err := stack.Resolve(settings, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve options")
	}
	if !*publish {
		opts.Description = ""
	}

	// Fall back to null implementations when the multicast socket is unavailable
	var (
		publisher device.Publisher = device.NewNullPublisher()
		directory device.Directory = device.NewNullDirectory()
	)
	if upnpStack, err := stack.New(opts); err != nil {
		log.Warn().Err(err).Msg("UPnP stack unavailable, using null directory")
	} else {
		defer func() { _ = upnpStack.Close() }()
		publisher = upnpStack
		directory = upnpStack.Hub
	}

	mcpServer := upnpmcp.NewServer(publisher, directory, schema.NewValidator())

	log.Info().Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
