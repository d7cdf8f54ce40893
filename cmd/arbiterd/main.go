package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"runway-arbiter/internal/config"
	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/web"
)

func main() {
	var configPath, replayPath, playPath string
	var speed float64
	flag.StringVar(&configPath, "config", "./configs/dev.yaml", "Path to YAML config")
	flag.StringVar(&replayPath, "replay", "", "Verify a recorded journal against a fresh arbiter and exit")
	flag.StringVar(&playPath, "play", "", "Drive the inbound words of a recorded journal into the running controller")
	flag.Float64Var(&speed, "speed", 1.0, "Playback speed multiplier for -play")
	flag.Parse()

	if replayPath != "" {
		if err := verifyJournal(os.Stdout, replayPath); err != nil {
			fmt.Fprintf(os.Stderr, "replay: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(cfg.Web.LogTail)
	lg, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}, os.Stderr, logs)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, lg, logs)
	if err != nil {
		lg.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	defer rt.Close()

	lg.Info("arbiterd starting", slog.String("config", configPath))
	if err := rt.Run(ctx, playPath, speed); err != nil {
		lg.Errorf("arbiterd stopped: %v", err)
		rt.Close()
		os.Exit(1)
	}
	lg.Info("arbiterd stopping")
}
