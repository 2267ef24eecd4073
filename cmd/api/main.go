package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"thera-llm/internal/alert"
	"thera-llm/internal/config"
	"thera-llm/internal/db"
	apihttp "thera-llm/internal/http"
	"thera-llm/internal/llm"
	"thera-llm/internal/repository"
	"thera-llm/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	conversationRepo := repository.NewPgConversationRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	riskRepo := repository.NewPgRiskRepository(pool)
	planRepo := repository.NewPgPlanRepository(pool)
	insightRepo := repository.NewPgInsightRepository(pool)
	resultStore := repository.NewPgResultStore(pool)

	baseClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEmbeddingModel, logger)
	llmClient := llm.NewRetryClient(baseClient, cfg.LLMMaxRetries, time.Duration(cfg.LLMCallTimeoutSec)*time.Second)

	var locker service.ConversationLocker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process lock", zap.Error(err))
		} else {
			locker = service.NewRedisLocker(redisClient, 2*time.Minute)
		}
		cancel()
	}
	if locker == nil {
		locker = service.NewMemoryLocker()
	}

	alertSender := alert.NewDisabledSender("alert sender not configured")
	if cfg.AlertSMTPHost != "" {
		sender, err := alert.NewSMTPSender(
			cfg.AlertSMTPHost, cfg.AlertSMTPPort, cfg.AlertSMTPUser, cfg.AlertSMTPPass,
			cfg.AlertSMTPFrom, cfg.AlertSMTPFromName, cfg.AlertOperatorMail, cfg.AlertSMTPUseTLS,
		)
		if err != nil {
			logger.Warn("smtp alert sender init failed", zap.Error(err))
		} else {
			alertSender = sender
		}
	}

	riskSvc := service.NewRiskService(llmClient, logger)
	analysisSvc := service.NewAnalysisService(llmClient, logger)
	planSvc := service.NewPlanService(planRepo, llmClient, logger)
	responseSvc := service.NewResponseService(llmClient, logger)
	insightSvc := service.NewInsightService(insightRepo, llmClient, logger)
	orchestrator := service.NewOrchestrator(
		riskSvc,
		analysisSvc,
		service.NewStateMachine(),
		planSvc,
		responseSvc,
		service.NewProgressService(),
		service.NewLogNotifier(logger),
		logger,
	)
	sessionSvc := service.NewSessionService(
		conversationRepo, messageRepo, riskRepo, planRepo, resultStore,
		planSvc, insightSvc, orchestrator, locker, alertSender, logger,
	)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	sessionHandler := apihttp.NewSessionHandler(logger, jwtSvc)
	chatHandler := apihttp.NewChatHandler(logger, sessionSvc, pool)
	router := apihttp.NewRouter(logger, jwtSvc, sessionHandler, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
