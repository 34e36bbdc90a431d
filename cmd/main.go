package main

import (
	"complaintflow/backend/internal/api/handler"
	"complaintflow/backend/internal/classifier"
	"complaintflow/backend/internal/complaint"
	"complaintflow/backend/internal/config"
	"complaintflow/backend/internal/localization"
	"complaintflow/backend/internal/logger"
	"complaintflow/backend/internal/notify"
	"complaintflow/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemoryStorage(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := storage.NewStorageService(db, logger.Named("storage"))
	if err := s.Migrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database connection established, migrations complete")
	return s, nil
}

func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

func setupClassifier(cfg *config.Config, logger *zap.Logger) (classifier.Classifier, error) {
	if cfg.Classifier.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; executor updates will be rejected")
		return classifier.Disabled{}, nil
	}
	return classifier.NewOpenAI(classifier.OpenAIConfig{
		APIKey:     cfg.Classifier.APIKey,
		BaseURL:    cfg.Classifier.BaseURL,
		Model:      cfg.Classifier.Model,
		Timeout:    cfg.Classifier.Timeout,
		MaxTokens:  cfg.Classifier.MaxTokens,
		MaxRetries: cfg.Classifier.MaxRetries,
	}, logger.Named("classifier"))
}

// setupNotifier returns what the lifecycle engine publishes to. With Redis,
// the hub is fed by the bridge listener only, so each instance delivers a
// notification to its own subscribers exactly once.
func setupNotifier(ctx context.Context, cfg *config.Config, hub *notify.Hub, rdb *redis.Client, logger *zap.Logger) (notify.Notifier, error) {
	var fanout notify.Fanout

	if rdb != nil {
		bridge := notify.NewRedisBridge(rdb, notify.DefaultChannel, logger.Named("pubsub"))
		go func() {
			if err := bridge.Listen(ctx, hub); err != nil {
				logger.Error("notification listener stopped", zap.Error(err))
			}
		}()
		fanout = append(fanout, bridge)
	} else {
		fanout = append(fanout, hub)
	}

	if cfg.Telegram.BotToken != "" {
		loc, err := localization.Bundled()
		if err != nil {
			return nil, fmt.Errorf("load translations: %w", err)
		}
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Language, loc, logger.Named("telegram"))
		if err != nil {
			return nil, err
		}
		fanout = append(fanout, tg)
	}
	return fanout, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting complaint backend",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.StorageDriver),
		zap.String("forward_status", string(cfg.Lifecycle.ForwardStatus)),
		zap.String("resolved_status", string(cfg.Lifecycle.ResolvedStatus)),
		zap.String("loop_policy", string(cfg.Lifecycle.LoopPolicy)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := setupStorage(cfg, logger)
	if err != nil {
		logger.Fatal("storage setup failed", zap.Error(err))
	}
	rdb, err := setupRedis(ctx, cfg)
	if err != nil {
		logger.Fatal("redis setup failed", zap.Error(err))
	}
	cls, err := setupClassifier(cfg, logger)
	if err != nil {
		logger.Fatal("classifier setup failed", zap.Error(err))
	}

	hub := notify.NewHub(logger.Named("hub"))
	go hub.Run(ctx)

	notifier, err := setupNotifier(ctx, cfg, hub, rdb, logger)
	if err != nil {
		logger.Fatal("notifier setup failed", zap.Error(err))
	}

	svc := complaint.NewService(store, cls, notifier, cfg.Lifecycle, logger.Named("complaint"))
	tokens := handler.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handler.NewRouter(handler.NewHandler(svc, hub, tokens, cfg.OperatorKey, logger.Named("http")))

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.Classifier.Timeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
