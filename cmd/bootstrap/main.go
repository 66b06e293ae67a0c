package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/internal/infrastructure/messaging"
	"textbook-ai-api/internal/infrastructure/persistence/postgres"
	"textbook-ai-api/internal/infrastructure/persistence/redis"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据库表结构
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to init postgres: %v", err)
	}
	defer func() { _ = pgClient.Close() }()

	fmt.Println("Running schema migration...")
	if err := pgClient.DB().WithContext(ctx).AutoMigrate(
		&entity.Textbook{},
		&entity.Chapter{},
		&entity.Section{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	fmt.Println("Schema migration completed.")

	// 3. 预建消息流与消费者组
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		log.Fatalf("failed to init redis: %v", err)
	}
	defer func() { _ = redisClient.Close() }()

	streams := []struct {
		stream messaging.Stream
		group  messaging.ConsumerGroup
	}{
		{messaging.StreamTextbookGen, messaging.ConsumerGroupTextbookWorker},
	}

	for _, s := range streams {
		err := redisClient.Redis().XGroupCreateMkStream(ctx, string(s.stream), string(s.group), "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			log.Fatalf("failed to create consumer group %s on %s: %v", s.group, s.stream, err)
		}
		fmt.Printf("Consumer group %s ready on %s\n", s.group, s.stream)
	}

	fmt.Println("Bootstrap completed successfully.")
}
