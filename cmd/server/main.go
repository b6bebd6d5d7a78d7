package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ai-blog/api/router"
	"ai-blog/config"
	"ai-blog/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(config.GetBasePath())
	if err != nil {
		config.Log.Errorf("failed to load config: %v", err)
		os.Exit(2)
	}
	config.InitLogger(cfg.Logging)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := services.NewGenerationServiceFromConfig(cfg)
	if err != nil {
		config.Log.Errorf("failed to build generation service: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 스케줄러와 API 로 시작된 실행을 모두 추적한다. 종료 시 실행 잠금이 해제될 때까지 기다린다.
	var runs sync.WaitGroup
	if cfg.Schedule.Enabled {
		runs.Add(1)
		go func() {
			defer runs.Done()
			runSchedule(ctx, svc, cfg.Schedule)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.WithCORS(router.New(ctx, svc, cfg.Server, &runs), cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		config.InfoWithFields("server listening", config.Fields{"addr": cfg.Server.Addr, "schedule": cfg.Schedule.Enabled})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Log.Errorf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	config.Log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.Log.Errorf("failed to shutdown server: %v", err)
	}

	config.Log.Info("waiting for in-flight generation runs")
	runs.Wait()
	config.Log.Info("server stopped")
}
