package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/steffomix/simplex-audio-repeater/internal/archive"
	"github.com/steffomix/simplex-audio-repeater/internal/audio"
	"github.com/steffomix/simplex-audio-repeater/internal/config"
	"github.com/steffomix/simplex-audio-repeater/internal/device"
	"github.com/steffomix/simplex-audio-repeater/internal/engine"
	"github.com/steffomix/simplex-audio-repeater/internal/metrics"
	"github.com/steffomix/simplex-audio-repeater/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "simplex-audio-repeater"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List audio devices and exit")
	flag.Parse()

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("mode", string(cfg.Params.Mode)),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("chunk_frames", cfg.Audio.ChunkFrames),
		slog.Int("input_channels", cfg.Audio.InputChannels),
		slog.Int("output_channels", cfg.Audio.OutputChannels),
		slog.Int("start_threshold", cfg.Params.StartThreshold),
		slog.Int("stop_threshold", cfg.Params.StopThreshold),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	if err := device.Initialize(); err != nil {
		logger.Error("Failed to initialize audio runtime", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := device.Terminate(); err != nil {
			logger.Error("Error terminating audio runtime", slog.String("error", err.Error()))
		}
	}()

	inputFormat := audio.Format{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.InputChannels,
		ChunkFrames: cfg.Audio.ChunkFrames,
	}
	outputFormat := audio.Format{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.OutputChannels,
		ChunkFrames: cfg.Audio.ChunkFrames,
	}

	input, err := device.OpenInput(cfg.Audio.InputDevice, inputFormat)
	if err != nil {
		logger.Error("Failed to open input device", slog.String("error", err.Error()))
		os.Exit(1)
	}

	output, err := device.OpenOutput(cfg.Audio.OutputDevice, outputFormat)
	if err != nil {
		input.Close()
		logger.Error("Failed to open output device", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Audio devices opened",
		slog.String("input_device", deviceLabel(cfg.Audio.InputDevice)),
		slog.String("output_device", deviceLabel(cfg.Audio.OutputDevice)),
	)

	var archiver *archive.Writer
	if cfg.Archive.Enabled {
		archiver, err = archive.NewWriter(cfg.Archive.Directory, cfg.Archive.QueueSize, appMetrics)
		if err != nil {
			logger.Error("Failed to start archive writer", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	params := config.NewStore(cfg.Params)

	eng, err := engine.New(inputFormat, cfg.Audio.OutputChannels, params, input, output, appMetrics, archiver)
	if err != nil {
		logger.Error("Failed to create engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, params, eng, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	if err := eng.Start(ctx); err != nil {
		logger.Error("Failed to start engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	eng.Stop()

	if archiver != nil {
		archiver.Stop()
	}

	// Persist the live parameters so tuning survives restarts.
	cfg.Params = params.Snapshot()
	if err := cfg.Save(*configPath); err != nil {
		logger.Error("Failed to save configuration", slog.String("error", err.Error()))
	} else {
		logger.Info("Configuration saved", slog.String("config_path", *configPath))
	}

	status := eng.Status()
	logger.Info("Final engine statistics",
		slog.Uint64("chunks_read", status.ChunksRead),
		slog.Uint64("chunks_written", status.ChunksWritten),
		slog.Uint64("episodes", status.Episodes),
	)

	logger.Info("Service stopped")
}

// printDevices lists all audio devices on stdout.
func printDevices() error {
	if err := device.Initialize(); err != nil {
		return err
	}
	defer device.Terminate()

	devices, err := device.ListDevices()
	if err != nil {
		return err
	}

	for i, dev := range devices {
		marks := ""
		if dev.DefaultInput {
			marks += " [default input]"
		}
		if dev.DefaultOutput {
			marks += " [default output]"
		}
		fmt.Printf("%2d: %s (in: %d, out: %d, %.0f Hz)%s\n",
			i, dev.Name, dev.MaxInputChannels, dev.MaxOutputChannels,
			dev.DefaultSampleRate, marks)
	}

	return nil
}

func deviceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
