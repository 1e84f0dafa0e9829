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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/carconnect/internal/api/handlers"
	"github.com/langchou/carconnect/internal/authorize"
	"github.com/langchou/carconnect/internal/config"
	"github.com/langchou/carconnect/internal/repository"
	"github.com/langchou/carconnect/internal/service"
	"github.com/langchou/carconnect/pkg/ws"
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

	logger.Info("Starting carconnect",
		zap.String("port", cfg.ServerPort),
		zap.Int("oems", len(cfg.OEMs)),
	)

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 授权请求构造器
	builder, err := authorize.NewBuilder(cfg.AuthEndpoint)
	if err != nil {
		logger.Fatal("Invalid authorization endpoint", zap.Error(err))
	}

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	sessionRepo := repository.NewSessionRepository(db)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 创建连接服务
	connectService := service.NewConnectService(
		logger,
		builder,
		sessionRepo,
		wsHub,
		service.ClientSettings{
			ClientID:    cfg.ClientID,
			RedirectURI: cfg.RedirectURI,
			Scope:       cfg.Scope,
			ForcePrompt: cfg.ForcePrompt,
		},
		cfg.OEMs,
		cfg.SessionTTL,
		cfg.SessionRetention,
	)
	go connectService.RunSweeper(ctx, cfg.SweepInterval)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, connectService, wsHub, cfg.AllowedOrigins)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORSMiddleware())

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

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止后台任务
	cancel()
	wsHub.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
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
