package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voicecards/voicecards/internal/handler"
	"github.com/voicecards/voicecards/internal/repository"
	"github.com/voicecards/voicecards/internal/service"
	"github.com/voicecards/voicecards/pkg/anki"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	// stdout belongs to the MCP stdio transport, logs must not touch it
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.S().Info("logger initialized")

	if err := godotenv.Load(); err != nil {
		zap.S().Debug("load .env file", zap.Error(err))
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	postgresPort := os.Getenv("POSTGRES_PORT")
	postgresUser := os.Getenv("POSTGRES_USER")
	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	postgresDB := os.Getenv("POSTGRES_DB")
	ankiConnectURL := os.Getenv("ANKI_CONNECT_URL")
	autoSyncMinutes := os.Getenv("AUTO_SYNC_INTERVAL_MINUTES")

	if postgresHost == "" {
		zap.S().Fatal("missing required environment variables")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		postgresHost, postgresPort, postgresUser, postgresPassword, postgresDB)

	repo, err := repository.NewDB(dsn, 10, 20)
	if err != nil {
		zap.S().Error("connect to PostgreSQL", zap.Error(err), zap.String("host", postgresHost))
		os.Exit(1)
	}
	defer repo.Close()

	if err = repo.Up("migrations"); err != nil {
		zap.S().Error("run migrations", zap.Error(err))
		os.Exit(1)
	}

	ankiClient := anki.NewClient(ankiConnectURL)

	svc := service.NewService(repo, ankiClient)

	if autoSyncMinutes != "" {
		minutes, err := strconv.Atoi(autoSyncMinutes)
		if err != nil || minutes <= 0 {
			zap.S().Fatal("invalid AUTO_SYNC_INTERVAL_MINUTES", zap.String("value", autoSyncMinutes))
		}
		svc.StartAutoSync(time.Duration(minutes) * time.Minute)
		defer svc.StopAutoSync()
	}

	s := handler.NewServer(svc)
	if err := server.ServeStdio(s); err != nil {
		zap.S().Error("serve mcp", zap.Error(err))
		os.Exit(1)
	}
}
