package router

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"ai-blog/api/handlers"
	"ai-blog/api/middleware"
	"ai-blog/config"
)

// New 는 API 엔진을 만든다. 트리거된 백그라운드 실행은 ctx 로 취소되고 bg 로 추적된다.
func New(ctx context.Context, runner handlers.Runner, cfg config.ServerConfig, bg *sync.WaitGroup) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestTrace())

	r.GET("/health", handlers.HealthHandler(runner))

	// v1 routes
	api := r.Group("/api/v1")
	{
		api.POST("/runs", middleware.TriggerAuth(cfg.TriggerToken), handlers.TriggerRunHandler(ctx, runner, cfg.MaxCount, bg))
		api.GET("/runs/last", handlers.LastRunHandler(runner))
	}

	return r
}

// WithCORS 는 설정된 origin 만 허용하는 CORS 핸들러로 감싼다.
func WithCORS(h http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}).Handler(h)
}
