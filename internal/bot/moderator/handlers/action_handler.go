package handlers

import (
	"PayoutRecon/internal/bot/messages"
	"PayoutRecon/internal/bot/moderator"
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// DefaultRejectReason is recorded when a payout is rejected with the inline button.
// Operators who need a specific reason use /reject.
const DefaultRejectReason = "Rejected by operator from Telegram"

const manualTransferNote = "Marked paid from Telegram"

var errUnknownAction = errors.New("unknown payout action")

func init() {
	moderator.RegisterCallback(NewActionHandler)
}

// actionHandler handles the payout card buttons.
type actionHandler struct {
	log        zerolog.Logger
	payouts    moderator.PayoutService
	bot        ports.BotClientPort
	qrTemplate string
}

// NewActionHandler creates the handler for "payout_<action>_<id>" callbacks.
func NewActionHandler(deps moderator.Deps, baseLogger *zerolog.Logger) ports.CallbackHandler {
	return &actionHandler{
		log:        baseLogger.With().Str("component", "payout_action_handler").Logger(),
		payouts:    deps.Payouts,
		bot:        deps.Bot,
		qrTemplate: deps.QRTemplate,
	}
}

func (h *actionHandler) Prefix() string {
	return messages.CallbackPrefix
}

func (h *actionHandler) Handle(ctx context.Context, update *ports.BotUpdate) error {
	// 1. Parse the callback data
	action, payoutID, ok := messages.ParseCallback(*update.CallbackData)
	if !ok {
		h.log.Warn().Str("data", *update.CallbackData).Msg("Invalid callback data format")
		return h.answer(ctx, update, "Unknown action", true)
	}

	actor := moderator.ActorFor(update.UserID)
	log := h.log.With().Str("payout_id", payoutID).Str("action", action).Str("actor", actor).Logger()

	// 2. Run the action
	p, notice, err := h.run(ctx, action, actor, payoutID)
	if err != nil {
		log.Warn().Err(err).Msg("Payout action failed")
		if refreshable(err) {
			if current, getErr := h.payouts.Get(ctx, payoutID); getErr == nil {
				h.refresh(ctx, update, current)
			}
		}
		return h.answer(ctx, update, describe(err), true)
	}
	log.Info().Str("status", string(p.Status)).Msg("Payout action applied")

	// 3. Re-render the card with the buttons the new status allows
	h.refresh(ctx, update, p)
	return h.answer(ctx, update, notice, false)
}

func (h *actionHandler) run(ctx context.Context, action, actor, payoutID string) (*domain.Payout, string, error) {
	switch action {
	case messages.ActionApprove:
		res, err := h.payouts.Approve(ctx, actor, payoutID)
		if err != nil {
			return nil, "", err
		}
		return res.Payout, "Approved, watching the bank feed", nil

	case messages.ActionReject:
		p, err := h.payouts.Reject(ctx, actor, payoutID, DefaultRejectReason)
		return p, "Rejected", err

	case messages.ActionVerify:
		res, err := h.payouts.Verify(ctx, actor, payoutID)
		if err != nil {
			return nil, "", err
		}
		return res.Payout, messages.VerifyNotice(res), nil

	case messages.ActionPaid:
		p, err := h.payouts.MarkTransferredManually(ctx, actor, payoutID, manualTransferNote)
		return p, "Marked as transferred", err

	default:
		return nil, "", errUnknownAction
	}
}

func (h *actionHandler) refresh(ctx context.Context, update *ports.BotUpdate, p *domain.Payout) {
	edit := card(update.ChatID, p, h.qrTemplate).BuildEdit(update.MessageID)
	if err := h.bot.EditMessageText(ctx, edit); err != nil {
		h.log.Warn().Err(err).Str("payout_id", p.ID).Msg("Failed to refresh payout card")
	}
}

func (h *actionHandler) answer(ctx context.Context, update *ports.BotUpdate, text string, alert bool) error {
	return h.bot.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{
		CallbackQueryID: update.CallbackQueryID,
		Text:            text,
		ShowAlert:       alert,
	})
}
