package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/storage"
	"github.com/rappenlabs/rappen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTransferFixture(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store := testutil.SetupTestDB(t)

	testutil.SeedAccounts(t, store,
		testutil.CheckingAccount("acc-main", "Main Account"),
		testutil.SavingsAccount("acc-save", "Sparkonto"),
	)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	testutil.SeedTransactions(t, store,
		testutil.Transaction("t-out", "acc-main", "Transfer to savings", -100, date),
		testutil.Transaction("t-in", "acc-save", "Incoming transfer", 100, date.AddDate(0, 0, 1)),
	)
	return store
}

func fixtureTransfer() *model.Transfer {
	return &model.Transfer{
		ID:                "tr-1",
		FromAccountID:     "acc-main",
		ToAccountID:       "acc-save",
		FromTransactionID: "t-out",
		ToTransactionID:   "t-in",
		Description:       "Transfer: Transfer to savings",
		Amount:            100,
		Date:              time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		IsConfirmed:       true,
	}
}

func TestCreateTransfer_MarksBothLegs(t *testing.T) {
	store := seedTransferFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTransfer(ctx, fixtureTransfer()))

	got, err := store.GetTransfer(ctx, "tr-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsConfirmed)
	assert.InDelta(t, 100, got.Amount, 0.001)

	for _, legID := range []string{"t-out", "t-in"} {
		leg, legErr := store.GetTransactionByID(ctx, legID)
		require.NoError(t, legErr)
		require.NotNil(t, leg)
		assert.True(t, leg.IsTransfer, "leg %s should be flagged", legID)
	}
}

func TestCreateTransfer_RejectsReusedLeg(t *testing.T) {
	store := seedTransferFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTransfer(ctx, fixtureTransfer()))

	second := fixtureTransfer()
	second.ID = "tr-2"
	err := store.CreateTransfer(ctx, second)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestCreateTransfer_MissingLegRollsBack(t *testing.T) {
	store := seedTransferFixture(t)
	ctx := context.Background()

	broken := fixtureTransfer()
	broken.ToTransactionID = "t-ghost"
	err := store.CreateTransfer(ctx, broken)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Nothing was committed: the existing leg is untouched and no transfer
	// row exists.
	leg, legErr := store.GetTransactionByID(ctx, "t-out")
	require.NoError(t, legErr)
	assert.False(t, leg.IsTransfer)

	got, getErr := store.GetTransfer(ctx, "tr-1")
	require.NoError(t, getErr)
	assert.Nil(t, got)
}

func TestDeleteTransfer_RevertsLegs(t *testing.T) {
	store := seedTransferFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTransfer(ctx, fixtureTransfer()))
	require.NoError(t, store.DeleteTransfer(ctx, "tr-1"))

	got, err := store.GetTransfer(ctx, "tr-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, legID := range []string{"t-out", "t-in"} {
		leg, legErr := store.GetTransactionByID(ctx, legID)
		require.NoError(t, legErr)
		assert.False(t, leg.IsTransfer, "leg %s should be reverted", legID)
	}
}

func TestDeleteTransfer_MissingReturnsNotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)

	err := store.DeleteTransfer(context.Background(), "tr-ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetTransfers_NewestFirstWithLimit(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	testutil.SeedAccounts(t, store,
		testutil.CheckingAccount("acc-main", "Main Account"),
		testutil.SavingsAccount("acc-save", "Sparkonto"),
	)
	day := func(n int) time.Time { return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC) }
	testutil.SeedTransactions(t, store,
		testutil.Transaction("t1", "acc-main", "first out", -50, day(1)),
		testutil.Transaction("t2", "acc-save", "first in", 50, day(1)),
		testutil.Transaction("t3", "acc-main", "second out", -75, day(10)),
		testutil.Transaction("t4", "acc-save", "second in", 75, day(10)),
	)

	older := &model.Transfer{
		ID: "tr-old", FromAccountID: "acc-main", ToAccountID: "acc-save",
		FromTransactionID: "t1", ToTransactionID: "t2",
		Amount: 50, Date: day(1), IsConfirmed: true,
	}
	newer := &model.Transfer{
		ID: "tr-new", FromAccountID: "acc-main", ToAccountID: "acc-save",
		FromTransactionID: "t3", ToTransactionID: "t4",
		Amount: 75, Date: day(10), IsConfirmed: true,
	}
	require.NoError(t, store.CreateTransfer(ctx, older))
	require.NoError(t, store.CreateTransfer(ctx, newer))

	transfers, err := store.GetTransfers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "tr-new", transfers[0].ID)

	all, err := store.GetTransfers(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testTransferPattern(id string) *model.TransferPattern {
	return &model.TransferPattern{
		ID:                  id,
		Name:                "Main Account -> Sparkonto",
		FromAccountPattern:  "type:checking|name:MAIN ACCOUNT|institution:Test Bank",
		ToAccountPattern:    "type:savings|name:SPARKONTO|institution:Test Bank",
		DescriptionPattern:  "keywords:transfer,savings",
		TypicalAmount:       500,
		AmountTolerance:     0.05,
		ConfidenceThreshold: 0.8,
		MaxDaysBetween:      3,
		TimesMatched:        1,
		IsActive:            true,
	}
}

func TestTransferPatterns_RoundTrip(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransferPattern(ctx, testTransferPattern("tp-1")))

	got, err := store.GetTransferPattern(ctx, "tp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Main Account -> Sparkonto", got.Name)
	assert.InDelta(t, 500, got.TypicalAmount, 0.001)
	assert.Equal(t, 3, got.MaxDaysBetween)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpdateTransferPattern_VersionGuard(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	pattern := testTransferPattern("tp-1")
	require.NoError(t, store.SaveTransferPattern(ctx, pattern))

	stale := *pattern
	pattern.TimesMatched = 2
	require.NoError(t, store.UpdateTransferPattern(ctx, pattern))
	assert.Equal(t, 1, pattern.Version)

	stale.TimesMatched = 5
	err := store.UpdateTransferPattern(ctx, &stale)
	assert.ErrorIs(t, err, common.ErrConcurrencyConflict)

	got, getErr := store.GetTransferPattern(ctx, "tp-1")
	require.NoError(t, getErr)
	assert.Equal(t, 2, got.TimesMatched)
}

func TestUpdateTransferPattern_MissingReturnsNotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)

	pattern := testTransferPattern("tp-ghost")
	err := store.UpdateTransferPattern(context.Background(), pattern)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteTransferPattern(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransferPattern(ctx, testTransferPattern("tp-1")))
	require.NoError(t, store.DeleteTransferPattern(ctx, "tp-1"))

	got, err := store.GetTransferPattern(ctx, "tp-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, store.DeleteTransferPattern(ctx, "tp-1"), common.ErrNotFound)
}

func TestGetActiveTransferPatterns_FiltersInactive(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	active := testTransferPattern("tp-active")
	inactive := testTransferPattern("tp-inactive")
	inactive.Name = "Dormant"
	inactive.IsActive = false
	require.NoError(t, store.SaveTransferPattern(ctx, active))
	require.NoError(t, store.SaveTransferPattern(ctx, inactive))

	patterns, err := store.GetActiveTransferPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "tp-active", patterns[0].ID)
}
