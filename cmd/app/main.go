// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat-backend/internal/config"
	"ai-chat-backend/internal/domain/ports/adapter"
	aiAdapters "ai-chat-backend/internal/infra/adapters/ai"
	pg "ai-chat-backend/internal/infra/db/postgres"
	"ai-chat-backend/internal/infra/logging"
	"ai-chat-backend/internal/infra/metrics"
	red "ai-chat-backend/internal/infra/redis"
	"ai-chat-backend/internal/infra/web"
	"ai-chat-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, header auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	chatRepo := pg.NewChatRepoCacheDecorator(pg.NewChatRepo(pool), redisClient, cfg.Redis.TTL)
	usageRepo := pg.NewUsageRepo(pool)

	// ---- AI provider (Gemini -> OpenAI -> noop in dev) ----
	var ai adapter.AIProvider
	switch {
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI provider: gemini")
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI provider: openai")
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Warn().Msg("AI provider: noop (dev)")
	default:
		logger.Fatal().Msg("no AI provider configured: set ai.gemini_key or ai.openai_key")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	chatUC := usecase.NewChatUseCase(chatRepo, txManager, cfg.Chat.MaxActiveChats)
	usageUC := usecase.NewUsageUseCase(usageRepo, cfg.Chat.DefaultTokenLimit)
	tokenCache := usecase.NewTokenCountCache()
	estimator := usecase.NewTokenEstimator(ai, tokenCache, cfg.Chat.SystemPrompt, cfg.Chat.ExchangeOverhead, logger)
	builder := usecase.NewContextBuilder(chatRepo, cfg.Chat.HistoryWindow, cfg.Chat.SystemPrompt)
	streamUC := usecase.NewStreamUseCase(chatRepo, usageUC, builder, ai, estimator, locker,
		cfg.AI.DefaultModel, cfg.Chat.StreamTimeout, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Runtime.Dev)
	srv := web.NewServer(chatUC, streamUC, usageUC, auth, rateLimiter,
		cfg.AI.DefaultModel, cfg.Chat.SendRateLimit, cfg.Chat.SendRateWindow, logger)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     srv.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero: SSE responses outlive any fixed deadline.
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
