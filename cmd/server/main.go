package main

import (
	"PayoutRecon/internal/adapters/eventbus"
	"PayoutRecon/internal/adapters/feed"
	"PayoutRecon/internal/adapters/httpapi"
	"PayoutRecon/internal/adapters/outbox"
	"PayoutRecon/internal/adapters/postgres"
	"PayoutRecon/internal/adapters/rabbitmq"
	"PayoutRecon/internal/adapters/scheduler"
	"PayoutRecon/internal/adapters/security"
	"PayoutRecon/internal/adapters/telegram"
	"PayoutRecon/internal/bot/moderator"
	modhandlers "PayoutRecon/internal/bot/moderator/handlers"
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/services/reconciler"
	"PayoutRecon/internal/shared/config"
	"PayoutRecon/internal/shared/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	baseLogger := logger.New(cfg.IsDev(), cfg.LogLevel)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("http_addr", cfg.HTTP.Addr).
		Bool("gateway_configured", cfg.Gateway.SecretKey != "" && cfg.Gateway.AccountNumber != "").
		Bool("bot_enabled", cfg.Bot.Moderator.Token != "").
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Security service seals account numbers at rest
	keyBytes, err := cfg.EncryptionKeyBytes()
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to decode ENCRYPTION_KEY. It must be hex-encoded.")
	}
	cipher, err := security.NewAESService(keyBytes, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize security service")
	}

	// 4. Initialize Database
	db, err := postgres.NewDB(ctx, cfg.Postgres.URL, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// 5. Repositories
	payoutRepo := postgres.NewPayoutRepository(db, cipher, &baseLogger)
	ledgerRepo := postgres.NewLedgerRepository(db, &baseLogger)
	outboxRepo := postgres.NewOutboxRepository(db, &baseLogger)

	// 6. Event bus and AMQP relay
	bus := eventbus.NewInMemoryEventBus(&baseLogger)
	relay := rabbitmq.NewRelay(newPublisher(cfg.RabbitMQ.URL, &baseLogger), cfg.RabbitMQ.Exchange, &baseLogger)
	relay.Attach(bus, domain.SettlementTopics...)

	// 7. Settlement services
	worker := outbox.NewWorker(outboxRepo, ledgerRepo, bus, outbox.Config{
		BatchSize:  cfg.Outbox.BatchSize,
		StaleAfter: cfg.Outbox.StaleAfter,
	}, &baseLogger)

	feedClient := feed.NewClient(feed.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		SecretKey:     cfg.Gateway.SecretKey,
		AccountNumber: cfg.Gateway.AccountNumber,
		Timeout:       cfg.Gateway.Timeout,
		AmountScale:   cfg.Gateway.AmountScale,
	}, &baseLogger)

	recon := reconciler.New(reconciler.Deps{
		Payouts: payoutRepo,
		Feed:    feedClient,
		Debits:  worker,
		Bus:     bus,
	}, reconciler.Config{
		QRTemplate:   cfg.Gateway.QRTemplateURL,
		PollInterval: cfg.Recon.PollInterval,
		PollBudget:   cfg.Recon.PollBudget,
		FeedLimit:    cfg.Recon.FeedLimit,
	}, &baseLogger)

	// 8. Scheduled jobs
	jobs := scheduler.NewJobs(ctx, worker, payoutRepo, cfg.Recon.PollBudget, &baseLogger)
	sched := scheduler.NewScheduler(jobs, scheduler.Config{
		OutboxSchedule:        cfg.Outbox.Schedule,
		StaleApprovedSchedule: cfg.Report.StaleApprovedSchedule,
	}, &baseLogger)
	if err := sched.Start(); err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// 9. HTTP API
	handlers := httpapi.NewHandlers(recon, ledgerRepo, &baseLogger)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(handlers, &baseLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		baseLogger.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	// 10. Operator bot
	if cfg.Bot.Moderator.Token != "" {
		botServer, err := startModeratorBot(ctx, cfg, recon, bus, &baseLogger)
		if err != nil {
			baseLogger.Error().Err(err).Msg("Moderator bot disabled")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := botServer.Start(ctx); err != nil {
					baseLogger.Error().Err(err).Msg("Moderator bot failed")
				}
			}()
		}
	}

	baseLogger.Info().Msg("Application started")
	<-ctx.Done()
	baseLogger.Info().Msg("Shutdown signal received")

	// 11. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		baseLogger.Warn().Msg("Scheduled jobs still running at shutdown")
	}

	if err := recon.Shutdown(shutdownCtx); err != nil {
		baseLogger.Warn().Err(err).Msg("Polling tasks did not stop in time")
	}

	wg.Wait()

	if err := bus.Drain(shutdownCtx); err != nil {
		baseLogger.Warn().Err(err).Msg("Event handlers did not finish in time")
	}
	relay.Close()

	baseLogger.Info().Msg("Shutdown complete")
}

// newPublisher dials the broker, falling back to a logging publisher when
// no URL is configured or the broker is unreachable.
func newPublisher(amqpURL string, baseLogger *zerolog.Logger) rabbitmq.Publisher {
	if amqpURL == "" {
		baseLogger.Info().Msg("RABBITMQ_URL not set, settlement events are only logged")
		return rabbitmq.NewLogPublisher(baseLogger)
	}

	producer, err := rabbitmq.NewProducer(amqpURL, baseLogger)
	if err != nil {
		baseLogger.Error().Err(err).Msg("Failed to connect to RabbitMQ, settlement events are only logged")
		return rabbitmq.NewLogPublisher(baseLogger)
	}
	return producer
}

// startModeratorBot wires the operator bot onto the bus and returns its server.
func startModeratorBot(
	ctx context.Context,
	cfg *config.Config,
	recon *reconciler.Reconciler,
	bus *eventbus.InMemoryEventBus,
	baseLogger *zerolog.Logger,
) (*telegram.BotServer, error) {
	modCfg := cfg.Bot.Moderator

	api, err := tgbotapi.NewBotAPI(modCfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	api.Debug = cfg.IsDev()
	baseLogger.Info().Str("username", api.Self.UserName).Msg("Authorized moderator bot")

	botClient := telegram.NewClient(api, baseLogger)
	if err := botClient.SetMenuCommands(ctx); err != nil {
		baseLogger.Warn().Err(err).Msg("Failed to set moderator menu commands")
	}

	router := moderator.NewModeratorRouter(modCfg.AdminIDs, botClient, bus, baseLogger)
	moderator.RegisterAllHandlers(router, moderator.Deps{
		Payouts:    recon,
		Bot:        botClient,
		QRTemplate: cfg.Gateway.QRTemplateURL,
	}, baseLogger)

	if modCfg.ChannelID != 0 {
		modhandlers.NewForwardingHandler(botClient, modCfg.ChannelID, baseLogger).Attach(bus)
	}

	return telegram.NewBotServer(api, modCfg, bus, baseLogger), nil
}
