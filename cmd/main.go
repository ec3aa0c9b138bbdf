package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"heatingcontrol/internal/api"
	"heatingcontrol/internal/config"
	"heatingcontrol/internal/ha"
	"heatingcontrol/internal/metrics"
	_ "heatingcontrol/internal/plugins/heating"
	"heatingcontrol/internal/plugins/reset"
	"heatingcontrol/internal/shadowstate"
	pkgha "heatingcontrol/pkg/ha"
	"heatingcontrol/pkg/plugin"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	settings, err := config.LoadSettings(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(settings.LogLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("No .env file found, using environment variables")
	}
	plugin.SetLogger(logger)

	logger.Info("Starting heating controller",
		zap.String("url", settings.HAURL),
		zap.String("config_dir", settings.ConfigDir),
		zap.Bool("read_only", settings.ReadOnly))
	if settings.ReadOnly {
		logger.Info("Running in READ-ONLY mode - no valves will be switched")
	}

	// Create HA client
	client := ha.NewClient(settings.HAURL, settings.HAToken, logger)
	if err := client.Connect(); err != nil {
		logger.Fatal("Failed to connect to Home Assistant", zap.Error(err))
	}
	defer client.Disconnect()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx := plugin.NewContext(pkgha.WrapClient(client), logger, settings.ReadOnly, settings.ConfigDir, m)
	plugins, err := plugin.CreateAll(ctx)
	if err != nil {
		logger.Fatal("Failed to create plugins", zap.Error(err))
	}
	if err := plugin.StartAll(plugins); err != nil {
		logger.Fatal("Failed to start plugins", zap.Error(err))
	}
	defer plugin.StopAll(plugins)

	if settings.ResetEntity != "" {
		coordinator := reset.NewCoordinator(client, settings.ResetEntity, logger, settings.ReadOnly, reset.Resettables(plugins))
		if err := coordinator.Start(); err != nil {
			logger.Fatal("Failed to start reset coordinator", zap.Error(err))
		}
		defer coordinator.Stop()
	}

	tracker := shadowstate.NewTracker()
	plugin.RegisterShadowStates(tracker, plugins)

	var controller api.HeatingController
	for _, p := range plugins {
		if c, ok := p.(api.HeatingController); ok {
			controller = c
			break
		}
	}
	if controller == nil {
		logger.Fatal("No heating plugin registered")
	}

	server := api.NewServer(controller, tracker, reg, logger, settings.APIPort)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Error("Failed to stop API server", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Heating controller running. Press Ctrl+C to exit.",
		zap.Strings("plugins", plugin.Names()))

	<-sigChan

	logger.Info("Shutting down gracefully...")
}
