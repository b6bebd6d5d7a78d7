package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ai-blog/config"
	"ai-blog/fsutil"
	"ai-blog/services"
)

const (
	exitOK          = 0
	exitRunFailed   = 1
	exitConfigError = 2
	exitLocked      = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		count  = flag.Int("count", 1, "number of posts to generate in this run")
		debug  = flag.Bool("debug", false, "verbose diagnostics")
		logOut = flag.Bool("log-stdout", false, "write the decision log to stdout ahead of the run report")
		base   = flag.String("config", "", "directory holding config.yaml and .env (default: nearest parent with config.yaml)")
	)
	flag.Parse()

	basePath := *base
	if basePath == "" {
		basePath = config.GetBasePath()
	}
	cfg, err := config.Load(basePath)
	if err != nil {
		config.Log.Errorf("failed to load config: %v", err)
		return exitConfigError
	}
	if *debug {
		cfg.Logging.Level = "debug"
		os.Setenv("LOG_LEVEL", cfg.Logging.Level)
	}
	if *logOut {
		cfg.Logging.Output = "stdout"
		os.Setenv("LOG_OUTPUT", cfg.Logging.Output)
	}
	config.InitLogger(cfg.Logging)

	svc, err := services.NewGenerationServiceFromConfig(cfg)
	if err != nil {
		config.Log.Errorf("failed to build generation service: %v", err)
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := svc.RunOnce(ctx, *count)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, fsutil.ErrLocked):
		return exitLocked
	default:
		return exitRunFailed
	}
}
