// Package main is the entry point for the boombox playback orchestrator.
//
// Build:
//
//	go build -o build/boombox ./cmd/boombox
//
// Run:
//
//	./build/boombox -config ~/.boombox/config.toml
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/boombox-player/boombox/internal/app"
	"github.com/boombox-player/boombox/internal/config"
	"github.com/boombox-player/boombox/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the TOML configuration file")
		mockAudio  = flag.Bool("mock-audio", false, "use the in-memory audio engine (no sound device)")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		os.Stdout.WriteString(app.VersionString() + "\n")
		return
	}

	log := logger.NewLogger(logger.DefaultConfig())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	application, err := app.New(log, cfg, app.Options{MockAudio: *mockAudio})
	if err != nil {
		log.Error("failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("running", slog.String("version", app.VersionString()))

	// Block until interrupted.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	application.Shutdown()
}
