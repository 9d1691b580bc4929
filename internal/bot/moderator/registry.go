package moderator

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"strconv"

	"github.com/rs/zerolog"
)

// PayoutService is the part of the reconciler the operator bot drives.
type PayoutService interface {
	Get(ctx context.Context, payoutID string) (*domain.Payout, error)
	ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]*domain.Payout, error)
	Approve(ctx context.Context, approverID, payoutID string) (*domain.ApproveResult, error)
	Reject(ctx context.Context, approverID, payoutID, reason string) (*domain.Payout, error)
	Verify(ctx context.Context, operatorID, payoutID string) (*domain.VerifyResult, error)
	MarkTransferredManually(ctx context.Context, actor, payoutID, note string) (*domain.Payout, error)
}

// Deps are handed to every registered handler constructor.
type Deps struct {
	Payouts    PayoutService
	Bot        ports.BotClientPort
	QRTemplate string
}

// Define constructor types for moderator handlers
type CommandHandlerConstructor func(deps Deps, baseLogger *zerolog.Logger) ports.CommandHandler

type CallbackHandlerConstructor func(deps Deps, baseLogger *zerolog.Logger) ports.CallbackHandler

var (
	commandRegistry  []CommandHandlerConstructor
	callbackRegistry []CallbackHandlerConstructor
)

// RegisterCommand is called by handlers in their init() function.
func RegisterCommand(constructor CommandHandlerConstructor) {
	commandRegistry = append(commandRegistry, constructor)
}

// RegisterCallback is called by handlers in their init() function.
func RegisterCallback(constructor CallbackHandlerConstructor) {
	callbackRegistry = append(callbackRegistry, constructor)
}

// RegisterAllHandlers builds every registered handler and adds it to the router.
func RegisterAllHandlers(router *ModeratorRouter, deps Deps, baseLogger *zerolog.Logger) {
	for _, constructor := range commandRegistry {
		router.RegisterCommandHandler(constructor(deps, baseLogger))
	}
	for _, constructor := range callbackRegistry {
		router.RegisterCallbackHandler(constructor(deps, baseLogger))
	}
}

// ActorFor names a Telegram operator in payout audit fields.
func ActorFor(tgUserID int64) string {
	return "tg:" + strconv.FormatInt(tgUserID, 10)
}
