package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "shorturl-service/docs"
	"shorturl-service/internal/alias"
	"shorturl-service/internal/cache"
	"shorturl-service/internal/config"
	"shorturl-service/internal/handler"
	"shorturl-service/internal/link"
	"shorturl-service/internal/middleware"
	"shorturl-service/internal/ratelimit"
	"shorturl-service/internal/repository"
	"shorturl-service/internal/shortcode"
	"shorturl-service/pkg/database"
	auth "shorturl-service/pkg/jwt"
	"shorturl-service/pkg/logger"
	"shorturl-service/pkg/redis"
)

// @title 短链接服务 API
// @version 1.0
// @description 短链接创建、跳转与个人链接管理
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := logger.Logger.Sync(); err != nil {
			fmt.Println("日志同步失败:", err)
		}
	}()
	sugaredLogger := zap.S()

	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Name:         cfg.Database.Name,
		Charset:      cfg.Database.Charset,
		SSLMode:      cfg.Database.SSLMode,
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatalf("数据库初始化失败: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	sugaredLogger.Infof("✅ 数据库连接成功 (%s)", cfg.Database.Driver)

	if err := database.Migrate(db); err != nil {
		sugaredLogger.Fatalf("数据库迁移失败: %v", err)
	}
	sugaredLogger.Info("✅ 数据库迁移成功")

	var linkCache cache.Cache
	var rdb *goredis.Client
	rdb, err = redis.NewRedisClient(&redis.Options{
		Host: cfg.Cache.Host, Port: cfg.Cache.Port, Password: cfg.Cache.Password, DB: cfg.Cache.DB,
	})
	switch {
	case err != nil:
		sugaredLogger.Warnf("缓存连接失败，将不使用缓存: %v", err)
	case rdb != nil:
		defer func() {
			if err := rdb.Close(); err != nil {
				sugaredLogger.Errorf("关闭 Redis 连接失败: %v", err)
			}
		}()
		linkCache = cache.NewRedisCache(rdb, cfg.Cache.Prefix)
		sugaredLogger.Info("✅ 缓存连接成功")
	}

	links := repository.NewLinkRepository(db)
	users := repository.NewUserRepository(db)

	generator := shortcode.NewGenerator(links, sugaredLogger, shortcode.WithMaxAttempts(cfg.Link.MaxSlugAttempts))
	validator := alias.NewValidator(links, cfg.Link.ReservedWords)
	registry := link.NewRegistry(links, generator, validator, sugaredLogger,
		link.WithBaseURL(cfg.Link.BaseURL),
		link.WithCache(linkCache),
		link.WithCacheTTL(time.Duration(cfg.Cache.TTLMinutes)*time.Minute),
		link.WithMaxInsertAttempts(cfg.Link.MaxInsertAttempts),
	)

	tokenManager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)
	sugaredLogger.Info("✅ 认证管理器初始化成功")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	attempts := ratelimit.NewAttemptLimiter(ratelimit.Config{
		PerTarget: cfg.LoginLimit.PerTarget,
		PerSource: cfg.LoginLimit.PerSource,
		Window:    cfg.LoginLimit.Window(),
	}, sugaredLogger)
	go attempts.Run(ctx, time.Duration(cfg.LoginLimit.SweepIntervalSeconds)*time.Second)

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := handler.NewEngine(cfg.Server.TrustedProxies)
	if err != nil {
		sugaredLogger.Fatalf("路由初始化失败: %v", err)
	}
	router.Use(middleware.GinZapRecovery(logger.Logger, true))
	router.Use(middleware.GinZapLogger(logger.Logger))
	if cfg.RateLimit.Enabled {
		requestLimiter := middleware.NewRateLimiter(cfg.RateLimit)
		go requestLimiter.Run(ctx, 5*time.Minute)
		router.Use(requestLimiter.Middleware())
	}

	handler.RegisterRoutes(router,
		handler.NewShortLinkHandler(registry, tokenManager),
		handler.NewAuthHandler(users, tokenManager, attempts, cfg.LoginLimit.RejectStatus),
		middleware.AuthMiddleware(tokenManager),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		sugaredLogger.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
		sugaredLogger.Infof("📚 Swagger 文档地址: http://localhost:%d/swagger/index.html", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugaredLogger.Errorf("服务启动失败: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	sugaredLogger.Info("正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugaredLogger.Errorf("服务关闭失败: %v", err)
	}
	sugaredLogger.Info("服务已退出")
}
