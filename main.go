package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xViada/arc-autofire/app"
	"github.com/xViada/arc-autofire/config"
	"github.com/xViada/arc-autofire/debug"
)

func main() {
	var (
		cfgPath   = flag.String("config", config.DefaultPath(), "path to the configuration file")
		debugLog  = flag.Bool("debug", false, "enable debug logging and periodic runtime stats")
		jsonLog   = flag.Bool("log-json", false, "emit JSON logs instead of console output")
		seed      = flag.Uint64("seed", 0, "click delay RNG seed, 0 for random")
		calibrate = flag.String("calibrate", "", "start region calibration with this weapon's template (the capture hotkey advances the steps)")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debugLog {
		level = slog.LevelDebug
	}
	logger := NewLogger(level, *jsonLog)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config unreadable, continuing with defaults", "path", *cfgPath, "error", err)
	}
	if *debugLog {
		cfg.Debug = true
	}
	for _, warn := range cfg.Validate() {
		logger.Warn("config", "issue", warn)
	}

	c, err := app.BuildContainer(cfg, *cfgPath, logger, *seed)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("starting",
		"config", *cfgPath,
		"images", cfg.ImagesDir,
		"hash_size", cfg.Detection.HashSize,
		"weapons", len(cfg.Weapons),
		"window", cfg.Window.Title)

	if cfg.Debug {
		debug.StartMemLogger(10*time.Second, logger)
		debug.StartGoroutineLogger(10*time.Second, logger)
	}

	c.Runtime.Run()
	go c.Runtime.RunHotkeys()

	if *calibrate != "" {
		if err := c.Runtime.BeginCalibration(*calibrate); err != nil {
			logger.Error("calibration not started", "error", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())
	c.Runtime.Shutdown()
}
