package main

import (
	"context"
	"fmt"
	"time"

	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/config"
	"live_chat_service/pkg/database"
	"live_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// 清除過期訊息的批次工作,依 retention.max_age_days 設定刪除舊訊息
func main() {
	logger.Log = logger.Initialize("cleanup_job", config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	cfg.ApplyDefaults()

	if cfg.Retention.MaxAgeDays <= 0 {
		logger.Log.Info("retention disabled, nothing to do")
		return
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    connStr,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgres database after retries", zap.Error(err))
	}
	defer pool.Close()

	ctx := context.Background()
	msgRepo := repository.NewMessageRepository(pool)

	cutoff := time.Now().AddDate(0, 0, -cfg.Retention.MaxAgeDays)
	deleted, err := msgRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logger.Log.Fatal("delete old messages failed", zap.Error(err))
	}
	logger.Log.Info("cleanup finished",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
}
