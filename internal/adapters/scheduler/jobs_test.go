package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDrainer
type MockDrainer struct {
	mock.Mock
}

func (m *MockDrainer) DrainOnce(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockCounter
type MockCounter struct {
	mock.Mock
}

func (m *MockCounter) CountApprovedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func TestJobs_DrainDebitOutbox(t *testing.T) {
	log := zerolog.Nop()
	drainer := new(MockDrainer)
	drainer.On("DrainOnce", mock.Anything).Return(2, nil).Once()
	drainer.On("DrainOnce", mock.Anything).Return(0, errors.New("db down")).Once()

	jobs := NewJobs(context.Background(), drainer, new(MockCounter), time.Minute, &log)
	jobs.DrainDebitOutbox()
	jobs.DrainDebitOutbox()

	drainer.AssertNumberOfCalls(t, "DrainOnce", 2)
}

func TestJobs_ReportStaleApproved_CutoffIsPollBudget(t *testing.T) {
	// 1. Setup
	log := zerolog.Nop()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	counter := new(MockCounter)
	counter.On("CountApprovedBefore", mock.Anything, now.Add(-3*time.Minute)).Return(3, nil).Once()

	jobs := NewJobs(context.Background(), new(MockDrainer), counter, 3*time.Minute, &log)
	jobs.now = func() time.Time { return now }

	// 2. Run
	jobs.ReportStaleApproved()

	// 3. Assert: payouts approved within the budget are never in the window
	counter.AssertExpectations(t)
}

func TestJobs_ReportStaleApproved_CountError(t *testing.T) {
	log := zerolog.Nop()
	counter := new(MockCounter)
	counter.On("CountApprovedBefore", mock.Anything, mock.Anything).Return(0, errors.New("db down")).Once()

	NewJobs(context.Background(), new(MockDrainer), counter, time.Minute, &log).ReportStaleApproved()

	counter.AssertExpectations(t)
}

func TestScheduler_RunsJobs(t *testing.T) {
	log := zerolog.Nop()
	drainer := new(MockDrainer)
	ran := make(chan struct{}, 10)
	drainer.On("DrainOnce", mock.Anything).Run(func(mock.Arguments) { ran <- struct{}{} }).Return(0, nil)

	s := NewScheduler(NewJobs(context.Background(), drainer, new(MockCounter), time.Minute, &log), Config{
		OutboxSchedule: "@every 1s",
	}, &log)
	require.NoError(t, s.Start())
	defer func() { <-s.Stop().Done() }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("outbox drain job did not run")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	log := zerolog.Nop()
	s := NewScheduler(NewJobs(context.Background(), new(MockDrainer), new(MockCounter), time.Minute, &log), Config{
		OutboxSchedule: "not a schedule",
	}, &log)

	assert.Error(t, s.Start())
}
