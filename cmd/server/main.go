package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walletsystem/internal/auth"
	"walletsystem/internal/config"
	"walletsystem/internal/handler"
	"walletsystem/internal/infrastructure/cache"
	"walletsystem/internal/infrastructure/database"
	"walletsystem/internal/infrastructure/mq"
	"walletsystem/internal/infrastructure/ratelimit"
	"walletsystem/internal/job"
	"walletsystem/internal/ledger"
	"walletsystem/internal/repository"
	"walletsystem/internal/service"
	"walletsystem/pkg/idgen"
	"walletsystem/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID")
	flag.Parse()

	// .env 只在本地开发时存在，找不到不算错误
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, *workerID, zlog); err != nil {
		zlog.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, workerID int64, zlog *zap.Logger) error {
	// 初始化 ID 生成器
	idgen.Init(workerID)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// 初始化 Redis
	redisClient, err := cache.NewRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// 初始化 Kafka，未启用时事件只记日志
	var publisher job.Publisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafka(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = producer
	} else {
		zlog.Warn("Kafka 未启用，钱包事件不会投递")
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	dispatcher := job.NewEventDispatcher(publisher, cfg.Kafka.Topic.WalletEvents,
		cfg.Business.EventQueueSize, cfg.Business.MaxRetryCount, zlog)
	go dispatcher.Start(ctx)

	// 组装服务
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	limiter := ratelimit.NewLimiter(redisClient, "signin", cfg.Auth.SigninMaxAttempts, cfg.Auth.SigninWindow())

	userService := service.NewUserService(repository.NewUserRepository(db), tokens, limiter, dispatcher,
		cfg.Business.InitialBalanceMin, cfg.Business.InitialBalanceMax, zlog)
	walletService := service.NewWalletService(ledger.NewEngine(repository.NewAccountRepository(db)), dispatcher, zlog)

	// 设置路由
	gin.SetMode(cfg.Server.Mode)
	router := handler.SetupRouter(handler.NewHandler(userService, walletService, zlog), tokens, zlog)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info("正在关闭服务...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		cancel()
		dispatcher.Stop()
		return fmt.Errorf("服务启动失败: %w", err)
	}

	// 先停 HTTP（等待最多5秒），进行中的转账事务会完整提交或回滚
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("服务关闭异常", zap.Error(err))
	}

	// 再停事件发送，队列里剩余事件发完后退出
	cancel()
	dispatcher.Stop()

	zlog.Info("服务已关闭")
	return nil
}
