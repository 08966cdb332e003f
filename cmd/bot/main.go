package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gruasmx/dispatch-bot/internal/ai"
	"github.com/gruasmx/dispatch-bot/internal/auth"
	"github.com/gruasmx/dispatch-bot/internal/cache"
	"github.com/gruasmx/dispatch-bot/internal/config"
	"github.com/gruasmx/dispatch-bot/internal/handler"
	"github.com/gruasmx/dispatch-bot/internal/queue"
	"github.com/gruasmx/dispatch-bot/internal/service"
	"github.com/gruasmx/dispatch-bot/internal/state"
	"github.com/gruasmx/dispatch-bot/internal/telegram"
	"github.com/gruasmx/dispatch-bot/internal/timing"
)

func main() {
	logger := log.New(os.Stdout, "[gruas-bot] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	if cfg.TelegramToken == "" {
		logger.Fatal("TELEGRAM_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Fatalf("failed to connect to telegram: %v", err)
	}
	logger.Printf("authorized as @%s", api.Self.UserName)

	sender := telegram.NewBot(api, telegram.RateConfig{
		PerSecond: cfg.SendRatePerSecond,
		Burst:     cfg.SendBurst,
	}, logger)

	serviceCache := cache.NewServiceCache(cache.Config{
		TTL:           time.Duration(cfg.ServiceCacheTTLHours) * time.Hour,
		PendingWindow: time.Duration(cfg.ServicePendingWindowMin) * time.Minute,
		TimingWindow:  time.Duration(cfg.ServiceTimingWindowMin) * time.Minute,
	}, logger)
	defer serviceCache.Stop()

	outbox := queue.NewOutbox(queue.Config{
		MaxAttempts:  cfg.QueueMaxRetries,
		RetryDelay:   time.Duration(cfg.QueueRetryDelayMS) * time.Millisecond,
		MessageDelay: time.Duration(cfg.QueueMessageDelayMS) * time.Millisecond,
		GroupDelay:   time.Duration(cfg.QueueGroupMessageDelayMS) * time.Millisecond,
	}, logger)

	extractor := ai.NewExtractor(ai.ExtractorConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenAIMaxRetries,
	})
	if !extractor.Available() {
		logger.Printf("OPENAI_API_KEY not configured, service text extraction disabled")
	}

	timingClient := timing.NewClient(timing.Config{
		BaseURL:  cfg.RecLocationAPIURL,
		APIToken: cfg.RecLocationAPIToken,
		Timeout:  time.Duration(cfg.RecLocationTimeoutMS) * time.Millisecond,
		Logger:   logger,
	})
	if timingClient.Available() {
		go func() {
			if timingClient.Healthy(ctx) {
				logger.Printf("timing api reachable")
			} else {
				logger.Printf("timing api unreachable, arrival times may be unavailable")
			}
		}()
	} else {
		logger.Printf("RECLOCATION_API_URL not configured, timing requests disabled")
	}

	dispatch := service.NewDispatch(service.Dependencies{
		Cache:       serviceCache,
		Outbox:      outbox,
		Sender:      sender,
		Timing:      timingClient,
		GroupChatID: cfg.TelegramGroupID,
		Logger:      logger,
	})

	tracker := state.NewTracker()

	allowed := auth.ParseChatIDs(cfg.AllowedChatIDs)
	if cfg.TelegramGroupID != 0 {
		allowed = append(allowed, cfg.TelegramGroupID)
	}
	authService := auth.NewService(allowed)
	logger.Printf("allow-list configured with %d chats", authService.Len())

	deps := handler.Dependencies{
		Extractor: extractor,
		Flow:      dispatch,
		Outbox:    outbox,
		Sender:    sender,
		State:     tracker,
		Logger:    logger,
	}
	registry := handler.NewRegistry(logger,
		handler.NewCommandHandler(handler.CommandDependencies{
			Outbox:      outbox,
			Sender:      sender,
			Timing:      timingClient,
			GroupChatID: cfg.TelegramGroupID,
			Logger:      logger,
		}),
		handler.NewTimingDetectorHandler(dispatch),
		handler.NewServiceTextHandler(deps),
		handler.NewMapsHandler(deps),
	)
	router := handler.NewRouter(authService, registry, handler.NewCallbackHandler(dispatch, logger), logger)

	runner := telegram.NewRunner(api, router.Route, logger)
	logger.Printf("bot started, polling for updates")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("polling stopped: %v", err)
	}
	logger.Printf("shutdown complete")
}
