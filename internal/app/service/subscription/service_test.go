package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/heyarsen/Content-Factory-sub005/internal/testutil"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return NewService(db, zap.NewNop().Sugar()), db
}

func TestCreate_MintsUniquePendingRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", "plan-basic")
	require.NoError(t, err)
	b, err := svc.Create(ctx, "u1", "plan-basic")
	require.NoError(t, err)

	assert.Equal(t, types.SubscriptionStatusPending, a.Status)
	assert.Equal(t, types.PaymentStatusPending, a.PaymentStatus)
	assert.NotEmpty(t, a.PaymentReference)
	assert.NotEqual(t, a.PaymentReference, b.PaymentReference)
}

func TestFindByReference(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db, testutil.WithSubscriptionReference("sub-ref-1"))

	found, err := svc.FindByReference(ctx, "sub-ref-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)

	_, err = svc.FindByReference(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCASActivate_ExactlyOneWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, "u1", "plan-basic")
	require.NoError(t, err)

	won, err := svc.CASActivate(ctx, sub.ID, 100)
	require.NoError(t, err)
	assert.True(t, won)

	// The second path observes zero rows affected and must treat the event
	// as a duplicate.
	won, err = svc.CASActivate(ctx, sub.ID, 100)
	require.NoError(t, err)
	assert.False(t, won)

	row, err := svc.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, row.Status)
	assert.Equal(t, types.PaymentStatusCompleted, row.PaymentStatus)
	assert.Equal(t, int64(100), row.CreditsIncluded)
	assert.Equal(t, int64(100), row.CreditsRemaining)
}

func TestCASFail_OnlyPendingRows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, "u1", "plan-basic")
	require.NoError(t, err)

	won, err := svc.CASActivate(ctx, sub.ID, 100)
	require.NoError(t, err)
	require.True(t, won)

	// A late failure for the original payment never downgrades an active row.
	won, err = svc.CASFail(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, won)

	row, err := svc.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, row.Status)
}

func TestCASRenew_BurnsRemainingAndResets(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db,
		testutil.WithSubscriptionStatus(types.SubscriptionStatusActive, types.PaymentStatusCompleted),
		testutil.WithSubscriptionCredits(100, 40),
	)

	won, err := svc.CASRenew(ctx, sub.ID, 0, 100)
	require.NoError(t, err)
	assert.True(t, won)

	row, err := svc.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), row.CreditsBurned)
	assert.Equal(t, int64(100), row.CreditsRemaining)
	assert.Equal(t, int64(1), row.RenewalCount)
}

func TestCASRenew_ExactlyOneWinnerPerCycle(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db,
		testutil.WithSubscriptionStatus(types.SubscriptionStatusActive, types.PaymentStatusCompleted),
		testutil.WithSubscriptionCredits(100, 100),
	)

	won, err := svc.CASRenew(ctx, sub.ID, 0, 100)
	require.NoError(t, err)
	require.True(t, won)

	// A second apply against the same observed counter loses, even when the
	// installed allocation equals the one it read.
	won, err = svc.CASRenew(ctx, sub.ID, 0, 100)
	require.NoError(t, err)
	assert.False(t, won)

	row, err := svc.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), row.CreditsBurned)
	assert.Equal(t, int64(1), row.RenewalCount)

	// The next cycle renews against the advanced counter.
	won, err = svc.CASRenew(ctx, sub.ID, 1, 100)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestCASRenew_OnlyActiveRows(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db,
		testutil.WithSubscriptionStatus(types.SubscriptionStatusCancelled, types.PaymentStatusCompleted),
		testutil.WithSubscriptionCredits(100, 40),
	)

	won, err := svc.CASRenew(ctx, sub.ID, 0, 100)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestCancelForFailure_LocksRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db,
		testutil.WithSubscriptionStatus(types.SubscriptionStatusActive, types.PaymentStatusCompleted),
		testutil.WithSubscriptionCredits(100, 70),
	)

	at := time.Now()
	require.NoError(t, svc.CancelForFailure(ctx, sub.ID, at))

	row, err := svc.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCancelled, row.Status)
	require.NotNil(t, row.CancelledAt)
	assert.Equal(t, int64(70), row.CreditsBurned)
	assert.Equal(t, int64(0), row.CreditsRemaining)
	assert.True(t, row.Terminal())
}

func TestCancelByUser(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	testutil.TestSubscription(t, db,
		testutil.WithSubscriptionUser("u1"),
		testutil.WithSubscriptionStatus(types.SubscriptionStatusActive, types.PaymentStatusCompleted),
	)

	row, err := svc.CancelByUser(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCancelled, row.Status)
	require.NotNil(t, row.CancelledAt)

	// No active subscription remains.
	_, err = svc.CancelByUser(ctx, "u1", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCountForUser(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	testutil.TestSubscription(t, db, testutil.WithSubscriptionUser("u1"))
	testutil.TestSubscription(t, db, testutil.WithSubscriptionUser("u1"))
	testutil.TestSubscription(t, db, testutil.WithSubscriptionUser("u2"))

	n, err := svc.CountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
