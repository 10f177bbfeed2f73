package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frankieli/mahjong_scorekeeper/internal/config"
	gatewayHttp "github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/adapter/http"
	gatewayLocal "github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/adapter/local"
	gatewayUseCase "github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/usecase"
	"github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/ws"
	roomDomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
	roomDB "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/repository/db"
	roomMemory "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/repository/memory"
	roomRedis "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/repository/redis"
	roomUseCase "github.com/frankieli/mahjong_scorekeeper/internal/modules/room/usecase"
	userDomain "github.com/frankieli/mahjong_scorekeeper/internal/modules/user/domain"
	userRepo "github.com/frankieli/mahjong_scorekeeper/internal/modules/user/repository"
	userMemory "github.com/frankieli/mahjong_scorekeeper/internal/modules/user/repository/memory"
	userUseCase "github.com/frankieli/mahjong_scorekeeper/internal/modules/user/usecase"
	"github.com/frankieli/mahjong_scorekeeper/pkg/logger"
)

func main() {
	pprofPort := flag.String("pprof-port", "", "Port to run pprof server on (e.g., 6060)")
	background := flag.Bool("d", false, "Run in background mode (disable console logging)")
	flag.Parse()

	cfg := config.Load()

	logger.InitWithFile("logs/scorekeeper/server.log", cfg.Server.LogLevel, cfg.Server.LogFormat, !*background)
	defer logger.Flush()

	if *pprofPort != "" {
		go func() {
			addr := "localhost:" + *pprofPort
			logger.InfoGlobal().Str("addr", addr).Msg("Starting pprof server")
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.ErrorGlobal().Err(err).Msg("Failed to start pprof server")
			}
		}()
	}

	logger.InfoGlobal().Msg("Starting Mahjong Scorekeeper...")

	// Durable store: users and archives.
	var (
		userRepository userDomain.UserRepository
		archiveRepo    roomDomain.ArchiveRepository
	)
	if cfg.StoreRepoType == "postgres" {
		dbConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)

		db, err := gorm.Open(postgres.Open(dbConnStr), &gorm.Config{
			Logger: logger.NewGormLogger(),
		})
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to connect to database")
		}

		sqlDB, err := db.DB()
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to get database instance")
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		defer sqlDB.Close()

		if err := sqlDB.Ping(); err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to ping database")
		}

		gormUserRepo := userRepo.NewUserRepository(db)
		if err := gormUserRepo.AutoMigrate(); err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to migrate users table")
		}
		gormArchiveRepo := roomDB.NewArchiveRepo(db)
		if err := gormArchiveRepo.AutoMigrate(); err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to migrate archives table")
		}
		userRepository = gormUserRepo
		archiveRepo = gormArchiveRepo
		logger.InfoGlobal().Msg("Store: Postgres")
	} else {
		userRepository = userMemory.NewUserRepo()
		archiveRepo = roomMemory.NewArchiveRepo()
		logger.InfoGlobal().Msg("Store: Memory")
	}

	// Live room store.
	var roomRepository roomDomain.RoomRepository
	if cfg.RoomRepoType == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		})
		defer rdb.Close()
		roomRepository = roomRedis.NewRoomRepo(rdb, 24*time.Hour)
		logger.InfoGlobal().Msg("Room repository: Redis")
	} else {
		roomRepository = roomMemory.NewRoomRepo()
		logger.InfoGlobal().Msg("Room repository: Memory")
	}

	// User module.
	userUC := userUseCase.NewUserUseCase(userRepository, cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	logger.InfoGlobal().Msg("User module initialized")

	// Gateway socket manager, started before the room module so broadcasts
	// always have a live manager behind them.
	wsManager := ws.NewManager()

	// Room module.
	broadcaster := gatewayLocal.NewBroadcaster(wsManager)
	roomUC := roomUseCase.NewRoomUseCase(roomRepository, archiveRepo, userRepository, broadcaster)
	roomUC.SetDefaultSettings(roomDomain.Settings{
		MaxFan:      cfg.Game.DefaultMaxFan,
		PricePerFan: cfg.Game.DefaultPricePerFan,
	})
	logger.InfoGlobal().Msg("Room module initialized")

	// Gateway module.
	gatewayUC := gatewayUseCase.NewGatewayUseCase(roomUC, userUC, wsManager)
	wsManager.SetDisconnectHandler(func(connID string, userID int64, roomCode string) {
		ctx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
		gatewayUC.HandleDisconnect(ctx, connID, roomCode)
	})
	go wsManager.Run()

	lobbyCtx, stopLobby := context.WithCancel(context.Background())
	go gatewayUC.RunLobbyTicker(lobbyCtx, cfg.Lobby.BroadcastInterval)
	logger.InfoGlobal().Msg("Gateway module initialized")

	// HTTP server.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	httpHandler := gatewayHttp.NewHandler(gatewayUC, wsManager, userUC, roomUC)
	httpHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	logger.InfoGlobal().
		Str("port", cfg.Server.Port).
		Str("ws_url", fmt.Sprintf("ws://localhost:%s/ws", cfg.Server.Port)).
		Msg("Mahjong Scorekeeper running")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalGlobal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.InfoGlobal().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorGlobal().Err(err).Msg("HTTP server forced to shutdown")
	}

	stopLobby()
	wsManager.Shutdown()

	logger.InfoGlobal().Msg("Shutdown complete")
}
