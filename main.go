package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomchatgo/internal/config"
	"roomchatgo/internal/database/db_client"
	"roomchatgo/internal/http/http_server"
	"roomchatgo/internal/msglog"
	"roomchatgo/internal/presence"
	"roomchatgo/internal/redis/redis_client"
	"roomchatgo/internal/services/chat"
	"roomchatgo/internal/syncmsg"
	"roomchatgo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisChatHost, int(cfg.RedisChatPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client + message-log schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Presence tables: room directory, connection registry, membership
	rooms := presence.NewDirectory(presence.DefaultRooms())
	registry := presence.NewRegistry()
	members := presence.NewTable(rooms)

	// 6. WebSockets hub + room/global fan-out
	hub := ws.NewHub()
	dispatcher := ws.NewDispatcher(hub, registry, members)

	// 7. Message log + presence coordinator
	messageLog := msglog.New(redisClient, pgDb)
	chatService := chat.NewChatService(rooms, registry, members, dispatcher, messageLog, cfg.MessageMaxLen)

	// 8. Background: message stream ➜ Postgres persister
	syncmsg.Run(ctx, redisClient, pgDb)

	// 9. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, chatService)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, chatService, cfg.HistoryLimit)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}

}
