package ledger

import (
	"context"
	"testing"

	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/internal/testutil"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"github.com/samber/lo"
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

func mutation(userID string) Mutation {
	return Mutation{
		UserID:        userID,
		Type:          types.CreditTransactionTypeTopUp,
		PaymentStatus: types.PaymentStatusCompleted,
		Reason:        "test",
	}
}

func TestAddBalance_CreatesRowAndEntry(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	after, err := svc.AddBalance(ctx, mutation("u1"), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), after)

	var entries []models.CreditTransaction
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].BalanceBefore)
	assert.Equal(t, int64(50), entries[0].BalanceAfter)
	assert.Equal(t, int64(50), entries[0].Amount)
}

func TestAddBalance_NegativeResultRejected(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddBalance(ctx, mutation("u1"), 10)
	require.NoError(t, err)

	_, err = svc.AddBalance(ctx, mutation("u1"), -20)
	require.ErrorIs(t, err, ErrNegativeBalance)

	// The failed mutation must leave neither balance change nor ledger entry.
	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	var n int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSetBalance_RecordsImpliedDelta(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddBalance(ctx, mutation("u1"), 120)
	require.NoError(t, err)

	after, err := svc.SetBalance(ctx, mutation("u1"), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), after)

	var entries []models.CreditTransaction
	require.NoError(t, db.Order("created_at ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, int64(120), last.BalanceBefore)
	assert.Equal(t, int64(100), last.BalanceAfter)
	assert.Equal(t, int64(-20), last.Amount)
	assert.Equal(t, last.BalanceBefore+last.Amount, last.BalanceAfter)
}

func TestSetBalance_NegativeValueRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetBalance(context.Background(), mutation("u1"), -1)
	require.ErrorIs(t, err, ErrNegativeBalance)
}

func TestGetBalance_AbsentRowReadsZero(t *testing.T) {
	svc, _ := newTestService(t)

	balance, err := svc.GetBalance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestMutation_ReferenceTraceability(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	m := mutation("u1")
	m.PaymentReference = lo.ToPtr("sub-abc")
	_, err := svc.AddBalance(ctx, m, 30)
	require.NoError(t, err)

	var entry models.CreditTransaction
	require.NoError(t, db.First(&entry).Error)
	require.NotNil(t, entry.PaymentReference)
	assert.Equal(t, "sub-abc", *entry.PaymentReference)
}
