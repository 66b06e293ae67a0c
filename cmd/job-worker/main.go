// Package main 后台生成执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"textbook-ai-api/internal/application/generation"
	"textbook-ai-api/internal/application/section"
	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/infrastructure/llm"
	"textbook-ai-api/internal/infrastructure/messaging"
	"textbook-ai-api/internal/infrastructure/persistence/postgres"
	"textbook-ai-api/internal/infrastructure/persistence/redis"
	"textbook-ai-api/pkg/logger"
	"textbook-ai-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

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
	chapterRepo := postgres.NewChapterRepository(pgClient)
	sectionRepo := postgres.NewSectionRepository(pgClient)
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	llmClient := llm.NewClient(&cfg.LLM)
	writer := section.NewWriter(llmClient)
	runner := generation.NewRunner(textbookRepo, chapterRepo, sectionRepo, writer, producer, &cfg.Generation)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamTextbookGen,
		Group:         messaging.ConsumerGroupTextbookWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MsgTypeTextbookGen, func(msgCtx context.Context, msg *messaging.Message) error {
		var job messaging.GenerationJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		if job.Outline == nil {
			return fmt.Errorf("generation job missing outline: %s", job.TextbookID)
		}
		return runner.Run(msgCtx, job.TextbookID, job.Outline)
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	go consumer.MonitorDLQ(ctx, 10)

	log := logger.FromContext(ctx)
	log.Info("job-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
