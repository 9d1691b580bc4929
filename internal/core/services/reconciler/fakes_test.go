package reconciler

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"
)

// --- Fakes ---

// memPayoutRepo applies transitions conditionally under a mutex, the same
// guarantee the Postgres adapter gives with its WHERE status = $from.
type memPayoutRepo struct {
	mu      sync.Mutex
	payouts map[string]domain.Payout
	intents []domain.DebitIntent
}

var _ ports.PayoutRepository = (*memPayoutRepo)(nil)

func newMemPayoutRepo(seed ...domain.Payout) *memPayoutRepo {
	r := &memPayoutRepo{payouts: make(map[string]domain.Payout)}
	for _, p := range seed {
		r.payouts[p.ID] = p
	}
	return r
}

func (r *memPayoutRepo) Create(ctx context.Context, p *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts[p.ID] = *p
	return nil
}

func (r *memPayoutRepo) GetByID(ctx context.Context, id string) (*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, domain.ErrPayoutNotFound
	}
	return &p, nil
}

func (r *memPayoutRepo) Transition(ctx context.Context, t domain.Transition) (*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payouts[t.PayoutID]
	if !ok {
		return nil, domain.ErrPayoutNotFound
	}
	if p.Status != t.From {
		return nil, domain.ErrStatusConflict
	}

	at := t.At
	actor := t.Actor
	note := t.Note
	p.Status = t.To
	p.UpdatedAt = at
	switch t.To {
	case domain.StatusApproved:
		p.ApprovedBy, p.ApprovedAt = &actor, &at
	case domain.StatusTransferred:
		p.TransferredBy, p.TransferNote, p.TransferredAt = &actor, &note, &at
		r.intents = append(r.intents, domain.IntentFor(&p))
	case domain.StatusRejected:
		p.RejectedBy, p.RejectionReason = &actor, &note
	}
	r.payouts[p.ID] = p
	return &p, nil
}

func (r *memPayoutRepo) ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payout
	for _, p := range r.payouts {
		if p.Status == status {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPayoutRepo) CountByStatus(ctx context.Context, status domain.PayoutStatus) (int, error) {
	list, _ := r.ListByStatus(ctx, status, 0)
	return len(list), nil
}

func (r *memPayoutRepo) CountApprovedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	list, _ := r.ListByStatus(ctx, domain.StatusApproved, 0)
	n := 0
	for _, p := range list {
		if p.ApprovedAt != nil && p.ApprovedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (r *memPayoutRepo) status(id string) domain.PayoutStatus {
	p, _ := r.GetByID(context.Background(), id)
	return p.Status
}

func (r *memPayoutRepo) intentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.intents)
}

// staticFeed always returns the same batch.
type staticFeed struct {
	batch domain.FeedBatch
	err   error
	calls atomic.Int32
}

func (f *staticFeed) ListRecentOutgoing(ctx context.Context, limit int) (domain.FeedBatch, error) {
	f.calls.Add(1)
	return f.batch, f.err
}

// countingDebiter records debits per payout.
type countingDebiter struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingDebiter() *countingDebiter {
	return &countingDebiter{calls: make(map[string]int)}
}

func (d *countingDebiter) Debit(ctx context.Context, intent domain.DebitIntent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[intent.PayoutID]++
	return d.err
}

func (d *countingDebiter) count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

// --- Mocks ---

// MockTransactionFeed
type MockTransactionFeed struct {
	mock.Mock
}

func (m *MockTransactionFeed) ListRecentOutgoing(ctx context.Context, limit int) (domain.FeedBatch, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(domain.FeedBatch), args.Error(1)
}

// MockPayoutDebiter
type MockPayoutDebiter struct {
	mock.Mock
}

func (m *MockPayoutDebiter) Debit(ctx context.Context, intent domain.DebitIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

// MockEventBus
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, topic string, data interface{}) error {
	args := m.Called(ctx, topic, data)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(topic string, handler ports.EventHandler) {
	m.Called(topic, handler)
}
