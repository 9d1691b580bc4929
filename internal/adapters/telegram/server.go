package telegram

import (
	"PayoutRecon/internal/core/ports"
	"PayoutRecon/internal/shared/config"
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BotServer receives operator bot updates (polling or webhook) and
// publishes them to the event bus. Routing happens in the subscribers.
type BotServer struct {
	api *tgbotapi.BotAPI
	cfg config.ModeratorBotConfig
	bus ports.EventBus
	log zerolog.Logger
}

// NewBotServer creates a new server instance
func NewBotServer(
	api *tgbotapi.BotAPI,
	cfg config.ModeratorBotConfig,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *BotServer {
	return &BotServer{
		api: api,
		cfg: cfg,
		bus: bus,
		log: baseLogger.With().Str("component", "bot_server").Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (s *BotServer) Start(ctx context.Context) error {
	s.log.Info().Str("mode", s.cfg.Mode).Msg("Starting bot server...")

	switch s.cfg.Mode {
	case "polling":
		return s.startPolling(ctx)
	case "webhook":
		return s.startWebhook(ctx)
	default:
		return fmt.Errorf("unknown bot mode: %s", s.cfg.Mode)
	}
}

func (s *BotServer) startPolling(ctx context.Context) error {
	s.log.Info().Msg("Starting bot in POLLING mode")

	// 1. Clear any existing webhook
	deleteWebhookConfig := tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: false,
	}
	if _, err := s.api.Request(deleteWebhookConfig); err != nil {
		s.log.Warn().Err(err).Msg("Failed to delete webhook (continuing anyway)")
	} else {
		s.log.Info().Msg("Webhook deleted successfully")
	}

	// 2. Listen for messages and button presses only
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := s.api.GetUpdatesChan(u)

	s.log.Info().Msg("Polling update listener started")

	// 3. Main loop: Poll and Publish
	for {
		select {
		case <-ctx.Done():
			s.api.StopReceivingUpdates()
			s.log.Info().Msg("Polling stopped gracefully")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			s.publishUpdate(ctx, update)
		}
	}
}

func (s *BotServer) startWebhook(ctx context.Context) error {
	s.log.Info().Int("port", s.cfg.WebhookPort).Msg("Starting bot in WEBHOOK mode")

	// 1. Set the webhook
	path := "/webhook/" + s.api.Token
	wh, err := tgbotapi.NewWebhook(s.cfg.WebhookURL + path)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create webhook config")
		return err
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}
	if _, err = s.api.Request(wh); err != nil {
		s.log.Error().Err(err).Msg("Failed to set webhook")
		return err
	}

	info, err := s.api.GetWebhookInfo()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get webhook info")
		return err
	}
	if info.LastErrorDate != 0 {
		s.log.Error().
			Str("error_message", info.LastErrorMessage).
			Msg("Telegram webhook has a last error")
	} else {
		s.log.Info().Msg("Webhook set successfully, no last error")
	}

	// 2. Own mux so the token path never lands on http.DefaultServeMux
	updates := make(chan tgbotapi.Update, s.api.Buffer)
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		update, err := s.api.HandleUpdate(r)
		if err != nil {
			s.log.Warn().Err(err).Msg("Rejected webhook update")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		select {
		case updates <- *update:
		case <-r.Context().Done():
		}
	})

	// 3. TLS is terminated by the reverse proxy in front of us
	listenAddr := fmt.Sprintf("127.0.0.1:%d", s.cfg.WebhookPort)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Webhook HTTP server failed")
		}
	}()

	s.log.Info().Str("addr", listenAddr).Msg("Webhook update listener started")

	// 4. Main loop: Listen and Publish
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.log.Error().Err(err).Msg("Webhook server shutdown error")
			}
			cancel()
			s.log.Info().Msg("Webhook server stopped gracefully")
			return nil
		case update := <-updates:
			s.publishUpdate(ctx, update)
		}
	}
}

// publishUpdate inspects the update and publishes it to the matching topic.
func (s *BotServer) publishUpdate(ctx context.Context, update tgbotapi.Update) {
	var topic string
	switch {
	case update.CallbackQuery != nil:
		topic = ports.TopicBotCallback
	case update.Message != nil:
		topic = ports.TopicBotMessage
	default:
		s.log.Debug().Int("update_id", update.UpdateID).Msg("Ignoring unsupported update")
		return
	}

	if err := s.bus.Publish(ctx, topic, update); err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("Failed to publish bot update")
	}
}
