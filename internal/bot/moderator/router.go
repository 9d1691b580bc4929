package moderator

import (
	"PayoutRecon/internal/core/ports"
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ModeratorRouter routes operator bot updates to the registered handlers.
// Only Telegram users listed as admins get through.
type ModeratorRouter struct {
	log              zerolog.Logger
	admins           map[int64]struct{}
	botClient        ports.BotClientPort
	commandHandlers  map[string]ports.CommandHandler
	callbackHandlers map[string]ports.CallbackHandler
}

// NewModeratorRouter creates the router and subscribes it to bot updates on the bus.
func NewModeratorRouter(
	adminIDs []int64,
	botClient ports.BotClientPort,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *ModeratorRouter {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	r := &ModeratorRouter{
		log:              baseLogger.With().Str("component", "moderator_router").Logger(),
		admins:           admins,
		botClient:        botClient,
		commandHandlers:  make(map[string]ports.CommandHandler),
		callbackHandlers: make(map[string]ports.CallbackHandler),
	}

	bus.Subscribe(ports.TopicBotMessage, r.handleEvent)
	bus.Subscribe(ports.TopicBotCallback, r.handleEvent)
	return r
}

// RegisterCommandHandler adds a command handler.
func (r *ModeratorRouter) RegisterCommandHandler(handler ports.CommandHandler) {
	cmd := handler.Command()
	r.commandHandlers[cmd] = handler
	r.log.Info().Str("command", cmd).Msg("Registered new moderator command")
}

// RegisterCallbackHandler adds a callback handler keyed by data prefix.
func (r *ModeratorRouter) RegisterCallbackHandler(handler ports.CallbackHandler) {
	prefix := handler.Prefix()
	r.callbackHandlers[prefix] = handler
	r.log.Info().Str("prefix", prefix).Msg("Registered new moderator callback")
}

func (r *ModeratorRouter) handleEvent(ctx context.Context, event ports.Event) error {
	update, ok := event.Data.(tgbotapi.Update)
	if !ok {
		return fmt.Errorf("unexpected bot update payload %T", event.Data)
	}
	r.HandleUpdate(ctx, &update)
	return nil
}

// HandleUpdate is the main entry point for the operator bot.
func (r *ModeratorRouter) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	// 1. Convert to our generic BotUpdate
	botUpdate, isSupported := parseUpdate(update)
	if !isSupported {
		r.log.Debug().Int("update_id", update.UpdateID).Msg("Received unsupported update type")
		return
	}

	// 2. Add logger context
	ctxLogger := r.log.With().
		Int64("tg_user_id", botUpdate.UserID).
		Int64("chat_id", botUpdate.ChatID).
		Logger()
	ctx = ctxLogger.WithContext(ctx)

	// 3. Security check
	if _, ok := r.admins[botUpdate.UserID]; !ok {
		ctxLogger.Warn().Msg("Unauthorized user tried to access moderator bot")
		if botUpdate.CallbackQueryID != "" {
			_ = r.botClient.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
				CallbackQueryID: botUpdate.CallbackQueryID,
				Text:            "Not authorized",
				ShowAlert:       true,
			})
		}
		return
	}

	// 4. Route callbacks
	if botUpdate.CallbackData != nil {
		data := *botUpdate.CallbackData
		for prefix, handler := range r.callbackHandlers {
			if strings.HasPrefix(data, prefix) {
				if err := handler.Handle(ctx, botUpdate); err != nil {
					ctxLogger.Error().Err(err).Str("prefix", prefix).Msg("Mod callback handler failed")
				}
				return
			}
		}
		ctxLogger.Warn().Str("data", data).Msg("No handler for callback data")
		_ = r.botClient.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
			CallbackQueryID: botUpdate.CallbackQueryID,
		})
		return
	}

	// 5. Route commands
	if botUpdate.Command != "" {
		if handler, ok := r.commandHandlers[botUpdate.Command]; ok {
			ctxLogger.Info().Str("handler", botUpdate.Command).Msg("Routing to mod command handler")
			if err := handler.Handle(ctx, botUpdate); err != nil {
				ctxLogger.Error().Err(err).Msg("Mod command handler failed")
			}
			return
		}
	}

	ctxLogger.Debug().Msg("Moderator bot received unhandled update")
}

func parseUpdate(update *tgbotapi.Update) (*ports.BotUpdate, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return nil, false
		}
		data := cb.Data
		return &ports.BotUpdate{
			MessageID:       cb.Message.MessageID,
			ChatID:          cb.Message.Chat.ID,
			UserID:          cb.From.ID,
			CallbackQueryID: cb.ID,
			CallbackData:    &data,
		}, true
	}

	if msg := update.Message; msg != nil {
		if msg.From == nil || msg.Chat == nil {
			return nil, false
		}
		return &ports.BotUpdate{
			MessageID: msg.MessageID,
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			Text:      msg.Text,
			Command:   msg.Command(),
			Args:      strings.TrimSpace(msg.CommandArguments()),
		}, true
	}

	return nil, false
}
