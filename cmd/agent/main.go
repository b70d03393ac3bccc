package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langhaul/roadlog/internal/api/backend"
	"github.com/langhaul/roadlog/internal/api/handlers"
	"github.com/langhaul/roadlog/internal/config"
	"github.com/langhaul/roadlog/internal/queue"
	"github.com/langhaul/roadlog/internal/repository"
	"github.com/langhaul/roadlog/internal/retry"
	"github.com/langhaul/roadlog/internal/service"
	syncengine "github.com/langhaul/roadlog/internal/sync"
	"github.com/langhaul/roadlog/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Roadlog agent", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接本地存储
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// 创建仓库
	stateRepo := repository.NewStateRepository(db)
	logRepo := repository.NewDutyLogRepository(db)
	queueRepo := repository.NewQueueRepository(db)

	// 设备 ID：注册服务下发后持久化，首次启动时本地生成
	deviceID, err := stateRepo.LoadDeviceID(ctx)
	if err != nil {
		logger.Fatal("Failed to load device id", zap.Error(err))
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
		if err := stateRepo.SaveDeviceID(ctx, deviceID, cfg.DeviceSerial); err != nil {
			logger.Fatal("Failed to save device id", zap.Error(err))
		}
		logger.Info("Generated device id", zap.String("device_id", deviceID))
	}

	// 离线队列
	queues := queue.NewManager(logger, queueRepo, cfg.LocationQueueCap, cfg.QueueSoftCap)

	// 后端客户端与连通性监视
	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.SyncTimeout)
	monitor := syncengine.NewMonitor(backendClient, 30*time.Second, 5*time.Second)

	// 同步引擎
	policy := retry.Policy{MaxAttempts: cfg.SyncMaxAttempts, InitialBackoff: cfg.SyncBackoffInitial}
	engine := syncengine.NewEngine(logger, queues, backendClient, monitor, stateRepo, policy, cfg.LocationBatchSize)

	// WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 职责状态跟踪器
	tracker := service.NewTracker(
		logger,
		deviceID,
		cfg.LogRetention,
		cfg.MaxSpeedMph,
		logRepo,
		stateRepo,
		queues,
		engine,
		wsHub,
	)
	if err := tracker.Init(ctx); err != nil {
		logger.Fatal("Failed to recover duty status", zap.Error(err))
	}

	wsHub.SetInitDataProvider(func() interface{} {
		snapshot, err := tracker.Status(ctx)
		if err != nil {
			logger.Warn("Failed to build init snapshot", zap.Error(err))
			return nil
		}
		return snapshot
	})

	// 后台任务：同步循环与周期重算，相互独立，
	// 只通过队列与持久化状态协作
	go engine.Run(ctx, deviceID, cfg.SyncInterval)
	go tracker.RunRecompute(ctx, cfg.RecomputeInterval)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, tracker, engine, deviceID, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Agent started", zap.String("addr", server.Addr), zap.String("device_id", deviceID))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down agent...")
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Agent exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
