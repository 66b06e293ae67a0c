// Package main API Gateway 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"textbook-ai-api/internal/application/outline"
	"textbook-ai-api/internal/application/textbook"
	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/infrastructure/llm"
	"textbook-ai-api/internal/infrastructure/messaging"
	"textbook-ai-api/internal/infrastructure/persistence/postgres"
	"textbook-ai-api/internal/infrastructure/persistence/redis"
	"textbook-ai-api/internal/interfaces/http/handler"
	"textbook-ai-api/internal/interfaces/http/middleware"
	"textbook-ai-api/internal/interfaces/http/router"
	"textbook-ai-api/pkg/logger"
	"textbook-ai-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 数据层
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	textbookRepo := postgres.NewTextbookRepository(pgClient)
	cache := redis.NewCache(redisClient)
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	// 应用层
	llmClient := llm.NewClient(&cfg.LLM)
	outlineGen := outline.NewGenerator(llmClient, &cfg.Generation)
	textbookSvc := textbook.NewService(textbookRepo, outlineGen, producer, cache, &cfg.Generation)

	// 接口层
	handlers := router.Handlers{
		Health:   handler.NewHealthHandler(pgClient, redisClient),
		Textbook: handler.NewTextbookHandler(textbookSvc),
		Stream:   handler.NewStreamHandler(redisClient.Redis()),
		RateLimit: middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:           cfg.Security.RateLimit.Enabled,
			RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
		}, redisClient.Redis()),
	}
	r := router.New(cfg, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
