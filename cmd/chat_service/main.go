package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"live_chat_service/internal/chat/app"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/internal/chat/router"
	"live_chat_service/pkg/config"
	"live_chat_service/pkg/database"
	"live_chat_service/pkg/logger"
	testtool "live_chat_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	cfg.ApplyDefaults()

	testtool.StartPprof()

	ctx := context.Background()

	// 1. 建立 PostgreSQL 連線 (存對話與訊息)
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    connStr,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgres database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		logger.Log.Fatal("migrate chat schema failed", zap.Error(err))
	}

	// 2. 建立 Redis 連線 (事件鏡射到 Pub/Sub)
	redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. 初始化 Repository
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	transport := repository.NewRedisPubSub(redisClient)

	// 4. 初始化 UseCases 與 DeliveryEngine
	authorizer := app.NewChannelAuthorizer(convRepo)
	engine := app.NewDeliveryEngine(authorizer, transport, cfg.Channel.Prefix, cfg.Channel.SubscriberBuffer)
	chatUC := app.NewChatUseCase(convRepo, msgRepo, userRepo, engine, authorizer, app.ChatUseCaseConfig{
		MaxContentLength:     cfg.Message.MaxLength,
		MessagesPerPage:      cfg.Pagination.MessagesPerPage,
		ConversationsPerPage: cfg.Pagination.ConversationsPerPage,
	})

	// 5. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	// 注册路由
	router.RegisterRoutes(r, app.NewChatHandler(chatUC), app.NewChatWebsocketHandler(chatUC, engine))

	// Listen
	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
