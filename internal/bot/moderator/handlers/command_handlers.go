package handlers

import (
	"PayoutRecon/internal/bot/messages"
	"PayoutRecon/internal/bot/moderator"
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// pendingListLimit caps the cards sent per status by /pending.
const pendingListLimit = 10

func init() {
	moderator.RegisterCommand(NewPendingHandler)
	moderator.RegisterCommand(NewShowHandler)
	moderator.RegisterCommand(NewRejectHandler)
}

// --- /pending ---

type pendingHandler struct {
	log        zerolog.Logger
	payouts    moderator.PayoutService
	bot        ports.BotClientPort
	qrTemplate string
}

// NewPendingHandler lists payouts awaiting review or transfer.
func NewPendingHandler(deps moderator.Deps, baseLogger *zerolog.Logger) ports.CommandHandler {
	return &pendingHandler{
		log:        baseLogger.With().Str("component", "pending_handler").Logger(),
		payouts:    deps.Payouts,
		bot:        deps.Bot,
		qrTemplate: deps.QRTemplate,
	}
}

func (h *pendingHandler) Command() string {
	return "pending"
}

func (h *pendingHandler) Handle(ctx context.Context, update *ports.BotUpdate) error {
	var open []*domain.Payout
	for _, status := range []domain.PayoutStatus{domain.StatusRequested, domain.StatusPending, domain.StatusApproved} {
		list, err := h.payouts.ListByStatus(ctx, status, pendingListLimit)
		if err != nil {
			h.log.Error().Err(err).Str("status", string(status)).Msg("Failed to list payouts")
			return reply(ctx, h.bot, update.ChatID, describe(err))
		}
		open = append(open, list...)
	}

	if len(open) == 0 {
		return reply(ctx, h.bot, update.ChatID, "Nothing pending 🎉")
	}

	for _, p := range open {
		if _, err := h.bot.SendMessage(ctx, card(update.ChatID, p, h.qrTemplate).Build()); err != nil {
			return err
		}
	}
	return nil
}

// --- /payout <id> ---

type showHandler struct {
	payouts    moderator.PayoutService
	bot        ports.BotClientPort
	qrTemplate string
}

// NewShowHandler renders one payout card.
func NewShowHandler(deps moderator.Deps, baseLogger *zerolog.Logger) ports.CommandHandler {
	return &showHandler{payouts: deps.Payouts, bot: deps.Bot, qrTemplate: deps.QRTemplate}
}

func (h *showHandler) Command() string {
	return "payout"
}

func (h *showHandler) Handle(ctx context.Context, update *ports.BotUpdate) error {
	payoutID := strings.TrimSpace(update.Args)
	if payoutID == "" {
		return reply(ctx, h.bot, update.ChatID, "Usage: /payout <id>")
	}

	p, err := h.payouts.Get(ctx, payoutID)
	if err != nil {
		return reply(ctx, h.bot, update.ChatID, describe(err))
	}
	_, err = h.bot.SendMessage(ctx, card(update.ChatID, p, h.qrTemplate).Build())
	return err
}

// --- /reject <id> <reason> ---

type rejectHandler struct {
	log        zerolog.Logger
	payouts    moderator.PayoutService
	bot        ports.BotClientPort
	qrTemplate string
}

// NewRejectHandler rejects a payout with a free-text reason.
func NewRejectHandler(deps moderator.Deps, baseLogger *zerolog.Logger) ports.CommandHandler {
	return &rejectHandler{
		log:        baseLogger.With().Str("component", "reject_handler").Logger(),
		payouts:    deps.Payouts,
		bot:        deps.Bot,
		qrTemplate: deps.QRTemplate,
	}
}

func (h *rejectHandler) Command() string {
	return "reject"
}

func (h *rejectHandler) Handle(ctx context.Context, update *ports.BotUpdate) error {
	payoutID, reason, _ := strings.Cut(strings.TrimSpace(update.Args), " ")
	if payoutID == "" {
		return reply(ctx, h.bot, update.ChatID, "Usage: /reject <id> <reason>")
	}

	actor := moderator.ActorFor(update.UserID)
	p, err := h.payouts.Reject(ctx, actor, payoutID, strings.TrimSpace(reason))
	if err != nil {
		h.log.Warn().Err(err).Str("payout_id", payoutID).Msg("Reject from command failed")
		return reply(ctx, h.bot, update.ChatID, describe(err))
	}

	h.log.Info().Str("payout_id", p.ID).Str("actor", actor).Msg("Payout rejected from command")
	_, err = h.bot.SendMessage(ctx, card(update.ChatID, p, h.qrTemplate).Build())
	return err
}

func reply(ctx context.Context, bot ports.BotClientPort, chatID int64, text string) error {
	msg := messages.NewBuilder(chatID).WithText(text).WithParseMode("").Build()
	if _, err := bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}
