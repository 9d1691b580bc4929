// Package reconciler drives a payout from approval to settlement: it
// issues the payment token, polls the bank feed for the matching
// transfer, and commits the TRANSFERRED status and the wallet debit.
package reconciler

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"PayoutRecon/internal/core/services/matcher"
	"PayoutRecon/internal/core/services/token"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const debitTimeout = 15 * time.Second

// Deps are the ports the reconciler works through. Bus may be nil.
type Deps struct {
	Payouts ports.PayoutRepository
	Feed    ports.TransactionFeed
	Debits  ports.PayoutDebiter
	Bus     ports.EventBus
}

// Config tunes polling and QR rendering.
type Config struct {
	QRTemplate   string
	PollInterval time.Duration
	PollBudget   time.Duration
	FeedLimit    int
	SystemActor  string
}

// DefaultConfig returns the production polling settings.
func DefaultConfig() Config {
	return Config{
		QRTemplate:   token.DefaultQRTemplate,
		PollInterval: 5 * time.Second,
		PollBudget:   3 * time.Minute,
		FeedLimit:    20,
		SystemActor:  "system:auto-reconcile",
	}
}

// Reconciler is the operator-facing settlement service.
type Reconciler struct {
	deps  Deps
	cfg   Config
	log   zerolog.Logger
	tasks *Registry
	now   func() time.Time
}

// New creates a reconciler. Zero config fields fall back to DefaultConfig.
func New(deps Deps, cfg Config, baseLogger *zerolog.Logger) *Reconciler {
	def := DefaultConfig()
	if cfg.QRTemplate == "" {
		cfg.QRTemplate = def.QRTemplate
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = def.PollBudget
	}
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = def.FeedLimit
	}
	if cfg.SystemActor == "" {
		cfg.SystemActor = def.SystemActor
	}

	return &Reconciler{
		deps:  deps,
		cfg:   cfg,
		log:   baseLogger.With().Str("component", "reconciler").Logger(),
		tasks: NewRegistry(),
		now:   time.Now,
	}
}

// Create records a new payout request in REQUESTED status.
func (r *Reconciler) Create(ctx context.Context, req domain.NewPayout) (*domain.Payout, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.WalletID) == "" || strings.TrimSpace(req.AccountNumber) == "" {
		return nil, domain.ErrIncompleteRequest
	}

	now := r.now().UTC()
	p := &domain.Payout{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		WalletID:      req.WalletID,
		Amount:        req.Amount,
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		BankCode:      strings.TrimSpace(req.BankCode),
		Status:        domain.StatusRequested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.deps.Payouts.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	r.log.Info().Str("payout_id", p.ID).Int64("amount", p.Amount).Msg("Payout requested")
	r.publish(ctx, domain.TopicPayoutRequested, p, req.UserID, "", "", "")
	return p, nil
}

// Get returns one payout.
func (r *Reconciler) Get(ctx context.Context, payoutID string) (*domain.Payout, error) {
	return r.deps.Payouts.GetByID(ctx, payoutID)
}

// ListByStatus returns payouts in the given status, oldest first.
func (r *Reconciler) ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]*domain.Payout, error) {
	return r.deps.Payouts.ListByStatus(ctx, status, limit)
}

// Approve moves a pending payout to APPROVED, renders its QR link and
// starts background polling for the transfer.
func (r *Reconciler) Approve(ctx context.Context, approverID, payoutID string) (*domain.ApproveResult, error) {
	log := r.log.With().Str("payout_id", payoutID).Str("actor", approverID).Logger()

	p, err := r.deps.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if !p.Status.IsAwaitingReview() {
		return nil, fmt.Errorf("cannot approve payout in status %s: %w", p.Status, domain.ErrInvalidState)
	}

	updated, err := r.deps.Payouts.Transition(ctx, domain.Transition{
		PayoutID: p.ID,
		From:     p.Status,
		To:       domain.StatusApproved,
		Actor:    approverID,
		At:       r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	result := &domain.ApproveResult{
		Payout: updated,
		Token:  token.TokenFor(updated.ID),
		QRURL:  token.QRURLFor(*updated, r.cfg.QRTemplate),
	}

	if !r.StartPolling(*updated) {
		if r.tasks.Closed() {
			log.Warn().Msg("Shutting down, payout left APPROVED without a poller")
		} else {
			log.Info().Msg("Polling already running for payout")
		}
	}

	r.publish(ctx, domain.TopicPayoutApproved, updated, approverID, "", result.QRURL, "")
	log.Info().Str("token", result.Token).Msg("Payout approved")
	return result, nil
}

// Reject moves a pending payout to REJECTED. A reason is required.
func (r *Reconciler) Reject(ctx context.Context, approverID, payoutID, reason string) (*domain.Payout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	p, err := r.deps.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if !p.Status.IsAwaitingReview() {
		return nil, fmt.Errorf("cannot reject payout in status %s: %w", p.Status, domain.ErrInvalidState)
	}

	updated, err := r.deps.Payouts.Transition(ctx, domain.Transition{
		PayoutID: p.ID,
		From:     p.Status,
		To:       domain.StatusRejected,
		Actor:    approverID,
		Note:     reason,
		At:       r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, domain.TopicPayoutRejected, updated, approverID, reason, "", "")
	r.log.Info().Str("payout_id", payoutID).Str("actor", approverID).Msg("Payout rejected")
	return updated, nil
}

// Verify runs one synchronous feed check for an APPROVED payout.
// Feed problems are reported in the result; store errors are returned.
func (r *Reconciler) Verify(ctx context.Context, operatorID, payoutID string) (*domain.VerifyResult, error) {
	p, err := r.deps.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case domain.StatusTransferred:
		return &domain.VerifyResult{
			Matched: true,
			Status:  domain.StatusTransferred,
			Outcome: domain.OutcomeAlreadySettled,
			Payout:  p,
		}, nil
	case domain.StatusApproved:
	default:
		return nil, fmt.Errorf("cannot verify payout in status %s: %w", p.Status, domain.ErrInvalidState)
	}

	log := r.log.With().Str("payout_id", p.ID).Str("actor", operatorID).Logger()
	pending := &domain.VerifyResult{Status: domain.StatusApproved, Payout: p}

	entry, outcome := r.checkFeed(ctx, p, log)
	if outcome != domain.OutcomeSettled {
		pending.Outcome = outcome
		return pending, nil
	}

	updated, won, err := r.commit(ctx, p, operatorID, "verified against transaction "+entry.ID)
	if err != nil {
		return nil, err
	}

	result := &domain.VerifyResult{
		Matched:       updated.Status == domain.StatusTransferred,
		Status:        updated.Status,
		Outcome:       domain.OutcomeAlreadySettled,
		TransactionID: entry.ID,
		Payout:        updated,
	}
	if won {
		result.Outcome = domain.OutcomeSettled
		r.tasks.Cancel(p.ID)
	}
	return result, nil
}

// MarkTransferredManually settles an APPROVED payout without a feed match.
// Repeating it on a TRANSFERRED payout returns the payout unchanged.
func (r *Reconciler) MarkTransferredManually(ctx context.Context, actor, payoutID, note string) (*domain.Payout, error) {
	p, err := r.deps.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case domain.StatusTransferred:
		return p, nil
	case domain.StatusApproved:
	default:
		return nil, fmt.Errorf("cannot mark payout in status %s as transferred: %w", p.Status, domain.ErrInvalidState)
	}

	note = strings.TrimSpace(note)
	if note == "" {
		note = "marked transferred manually"
	}

	updated, won, err := r.commit(ctx, p, actor, note)
	if err != nil {
		return nil, err
	}
	if won {
		r.tasks.Cancel(p.ID)
	}
	return updated, nil
}

// StartPolling launches the background poller for an approved payout.
// It returns false if one is already running.
func (r *Reconciler) StartPolling(p domain.Payout) bool {
	return r.tasks.Start(p.ID, r.cfg.PollBudget, func(ctx context.Context) {
		r.poll(ctx, p.ID)
	})
}

// Polling reports whether a background poller is running for the payout.
func (r *Reconciler) Polling(payoutID string) bool {
	return r.tasks.Running(payoutID)
}

// CancelPolling stops the background poller for the payout, if any.
func (r *Reconciler) CancelPolling(payoutID string) bool {
	return r.tasks.Cancel(payoutID)
}

// WaitPolling blocks until the payout's poller has exited.
func (r *Reconciler) WaitPolling(ctx context.Context, payoutID string) error {
	return r.tasks.Wait(ctx, payoutID)
}

// Shutdown stops every poller and waits for them to exit.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	r.log.Info().Int("pollers", r.tasks.Len()).Msg("Stopping pollers")
	return r.tasks.Shutdown(ctx)
}

func (r *Reconciler) poll(ctx context.Context, payoutID string) {
	log := r.log.With().Str("payout_id", payoutID).Logger()
	log.Info().Dur("interval", r.cfg.PollInterval).Dur("budget", r.cfg.PollBudget).Msg("Polling started")

	timer := time.NewTimer(r.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Info().Msg("Polling budget exhausted, payout left APPROVED for manual review")
			} else {
				log.Info().Msg("Polling cancelled")
			}
			return
		case <-timer.C:
		}

		if r.pollOnce(ctx, payoutID, log) {
			return
		}
		timer.Reset(r.cfg.PollInterval)
	}
}

// pollOnce runs one iteration and reports whether polling should stop.
func (r *Reconciler) pollOnce(ctx context.Context, payoutID string, log zerolog.Logger) bool {
	p, err := r.deps.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, domain.ErrPayoutNotFound) {
			log.Warn().Msg("Payout disappeared, polling stopped")
			return true
		}
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to reload payout")
		}
		return false
	}
	if p.Status != domain.StatusApproved {
		log.Info().Str("status", string(p.Status)).Msg("Payout no longer approved, polling stopped")
		return true
	}

	entry, outcome := r.checkFeed(ctx, p, log)
	if outcome != domain.OutcomeSettled {
		return false
	}

	if _, _, err := r.commit(ctx, p, r.cfg.SystemActor, "auto-reconciled against transaction "+entry.ID); err != nil {
		log.Error().Err(err).Msg("Failed to commit matched payout")
		return false
	}
	return true
}

// checkFeed fetches the feed and looks for the payout's transfer.
// OutcomeSettled here means a matching entry was found.
func (r *Reconciler) checkFeed(ctx context.Context, p *domain.Payout, log zerolog.Logger) (domain.FeedEntry, domain.VerifyOutcome) {
	batch, err := r.deps.Feed.ListRecentOutgoing(ctx, r.cfg.FeedLimit)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("Feed unavailable")
		}
		return domain.FeedEntry{}, domain.OutcomeFeedUnavailable
	}
	if !batch.Configured {
		log.Debug().Msg("Feed not configured")
		return domain.FeedEntry{}, domain.OutcomeFeedNotConfigured
	}

	entry, ok := matcher.FindMatch(batch.Entries, p.Amount, token.TokenFor(p.ID))
	if !ok {
		return domain.FeedEntry{}, domain.OutcomeNoMatch
	}

	log.Info().Str("transaction_id", entry.ID).Msg("Matching transfer found")
	return entry, domain.OutcomeSettled
}

// commit moves p from APPROVED to TRANSFERRED and debits the wallet.
// won is false when another path settled the payout first; the payout
// is then reloaded and no debit is attempted.
func (r *Reconciler) commit(ctx context.Context, p *domain.Payout, actor, note string) (*domain.Payout, bool, error) {
	log := r.log.With().Str("payout_id", p.ID).Str("actor", actor).Logger()

	updated, err := r.deps.Payouts.Transition(ctx, domain.Transition{
		PayoutID: p.ID,
		From:     domain.StatusApproved,
		To:       domain.StatusTransferred,
		Actor:    actor,
		Note:     note,
		At:       r.now().UTC(),
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		current, gerr := r.deps.Payouts.GetByID(ctx, p.ID)
		if gerr != nil {
			return nil, false, gerr
		}
		log.Info().Str("status", string(current.Status)).Msg("Payout already settled by another path")
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	debitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), debitTimeout)
	defer cancel()

	if err := r.deps.Debits.Debit(debitCtx, domain.IntentFor(updated)); err != nil {
		log.Error().Err(err).
			Str("inconsistency", "reconciled_undebited").
			Int64("amount", updated.Amount).
			Str("wallet_id", updated.WalletID).
			Msg("Payout transferred but wallet debit failed, left for outbox retry")
		r.publish(debitCtx, domain.TopicDebitFailed, updated, actor, note, "", err.Error())
	}

	r.publish(debitCtx, domain.TopicPayoutTransferred, updated, actor, note, "", "")
	log.Info().Msg("Payout transferred")
	return updated, true, nil
}

func (r *Reconciler) publish(ctx context.Context, topic string, p *domain.Payout, actor, note, qrURL, errText string) {
	if r.deps.Bus == nil {
		return
	}

	evt := domain.SettlementEvent{
		PayoutID: p.ID,
		UserID:   p.UserID,
		Status:   p.Status,
		Amount:   p.Amount,
		Actor:    actor,
		Note:     note,
		QRURL:    qrURL,
		Error:    errText,
		At:       r.now().UTC(),
	}
	if err := r.deps.Bus.Publish(ctx, topic, evt); err != nil {
		r.log.Warn().Err(err).Str("topic", topic).Str("payout_id", p.ID).Msg("Failed to publish settlement event")
	}
}
