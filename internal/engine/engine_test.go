package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/stakeplan/internal/lock"
	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/internal/repository"
	"github.com/core-coin/stakeplan/pkg/logger"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (n *recordingNotifier) SendNotification(notification *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) kinds() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]models.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

type testEnv struct {
	engine   *Engine
	repo     models.Repository
	clock    *fakeClock
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, policy Policy, opts ...Option) *testEnv {
	t.Helper()
	log := logger.NewNop()
	repo, err := repository.NewSQLiteDB(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	clock := &fakeClock{now: t0}
	notifier := &recordingNotifier{}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	e := NewEngine(repo, lock.NewKeyedMutex(), notifier, log, policy, opts...)

	seedPlans(t, repo)
	return &testEnv{engine: e, repo: repo, clock: clock, notifier: notifier}
}

func seedPlans(t *testing.T, repo models.Repository) {
	t.Helper()
	plans := []*models.Plan{
		{ID: "basic-30", Name: "Basic", Price: decimal.NewFromInt(100), Duration: 30, ReturnPercentage: decimal.NewFromInt(10), SortOrder: 1},
		{ID: "gold-60", Name: "Gold", Price: decimal.NewFromInt(500), Duration: 60, ReturnPercentage: decimal.NewFromInt(25), SortOrder: 2},
	}
	for _, p := range plans {
		require.NoError(t, repo.UpsertPlan(context.Background(), p))
	}
}

// fund deposits amount for user and confirms it.
func (env *testEnv) fund(t *testing.T, userID string, amount int64, reference string) {
	t.Helper()
	ctx := context.Background()
	tx, err := env.engine.RequestDeposit(ctx, userID, decimal.NewFromInt(amount), reference)
	require.NoError(t, err)
	_, err = env.engine.ResolveTransaction(ctx, tx.ID, models.TransactionConfirmed)
	require.NoError(t, err)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	want := decimal.RequireFromString(expected)
	assert.True(t, want.Equal(actual), "want %s, got %s", want.String(), actual.String())
}

func TestEngine_StartStop(t *testing.T) {
	policy := DefaultPolicy()
	policy.ExpirySweepSchedule = "@every 1h"
	env := newTestEnv(t, policy)

	require.NoError(t, env.engine.Start())
	env.engine.Stop()
}

func TestEngine_StartRejectsBadSchedule(t *testing.T) {
	policy := DefaultPolicy()
	policy.ExpirySweepSchedule = "every now and then"
	env := newTestEnv(t, policy)

	assert.Error(t, env.engine.Start())
}

func TestEngine_RejectsEmptyUser(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()

	_, err := env.engine.GetBalance(ctx, " ")
	assert.ErrorIs(t, err, models.ErrInvalidUser)
	_, err = env.engine.ConfirmActivation(ctx, "", "basic-30")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = env.engine.GetOrCreateReferralProfile(ctx, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCatalog_ListAndGet(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()

	plans, err := env.engine.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "basic-30", plans[0].ID)
	assert.Equal(t, "gold-60", plans[1].ID)

	plan, err := env.engine.GetPlan(ctx, "gold-60")
	require.NoError(t, err)
	assert.Equal(t, 60, plan.Duration)
	assertDecimal(t, "25", plan.ReturnPercentage)

	_, err = env.engine.GetPlan(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrPlanNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
