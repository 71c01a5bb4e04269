package storage_test

import (
	"context"
	"testing"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveVendor(t *testing.T, store interface {
	SaveVendor(ctx context.Context, v *model.Vendor) error
}, id, name, parentID string,
) {
	t.Helper()
	v := model.Vendor{ID: id, Name: name, ParentID: parentID, IsActive: true}
	require.NoError(t, store.SaveVendor(context.Background(), &v))
}

func TestSaveVendor_RoundTrip(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	v := model.Vendor{ID: "v-lidl", Name: "Lidl", CategoryID: "cat-groceries", UseCount: 3, IsActive: true}
	require.NoError(t, store.SaveVendor(ctx, &v))

	got, err := store.GetVendor(ctx, "v-lidl")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Lidl", got.Name)
	assert.Equal(t, "cat-groceries", got.CategoryID)
	assert.Equal(t, 3, got.UseCount)
	assert.False(t, got.LastUpdated.IsZero())
}

func TestSaveVendor_RejectsCyclicParent(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	saveVendor(t, store, "v-coop", "Coop", "")
	saveVendor(t, store, "v-city", "Coop City", "v-coop")

	// Making the root a child of its own descendant closes a cycle.
	cyclic := model.Vendor{ID: "v-coop", Name: "Coop", ParentID: "v-city", IsActive: true}
	err := store.SaveVendor(ctx, &cyclic)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCyclicHierarchy)

	// Self-reference is the degenerate cycle.
	self := model.Vendor{ID: "v-coop", Name: "Coop", ParentID: "v-coop", IsActive: true}
	assert.ErrorIs(t, store.SaveVendor(ctx, &self), common.ErrCyclicHierarchy)

	got, err := store.GetVendor(ctx, "v-coop")
	require.NoError(t, err)
	assert.Empty(t, got.ParentID)
}

func TestGetActiveVendors_ExcludesDeactivated(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	saveVendor(t, store, "v-a", "Aldi", "")
	saveVendor(t, store, "v-b", "Lidl", "")
	require.NoError(t, store.DeactivateVendor(ctx, "v-b"))

	active, err := store.GetActiveVendors(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "v-a", active[0].ID)

	all, err := store.GetAllVendors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeactivateVendor_MissingReturnsNotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)

	err := store.DeactivateVendor(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVendorPatterns_SaveAndLookup(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	saveVendor(t, store, "v-lidl", "Lidl", "")

	pattern := model.VendorPattern{
		ID:                  "vp-1",
		VendorID:            "v-lidl",
		Normalized:          "LIDLZUERICH",
		Type:                model.PatternExact,
		ConfidenceThreshold: 0.5,
		TimesMatched:        1,
		IsActive:            true,
	}
	require.NoError(t, store.SaveVendorPattern(ctx, &pattern))

	got, err := store.GetVendorPatternByKey(ctx, "v-lidl", "LIDLZUERICH")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "vp-1", got.ID)
	assert.Equal(t, 1, got.TimesMatched)

	missing, err := store.GetVendorPatternByKey(ctx, "v-lidl", "OTHER")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordVendorPatternMatch_IncrementsAndBumpsVersion(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	saveVendor(t, store, "v-lidl", "Lidl", "")

	pattern := model.VendorPattern{
		ID:         "vp-1",
		VendorID:   "v-lidl",
		Normalized: "LIDLZUERICH",
		Type:       model.PatternExact,
		IsActive:   true,
	}
	require.NoError(t, store.SaveVendorPattern(ctx, &pattern))

	require.NoError(t, store.RecordVendorPatternMatch(ctx, &pattern))
	assert.Equal(t, 1, pattern.TimesMatched)
	assert.Equal(t, 1, pattern.Version)
	assert.False(t, pattern.LastMatchedAt.IsZero())

	require.NoError(t, store.RecordVendorPatternMatch(ctx, &pattern))
	assert.Equal(t, 2, pattern.TimesMatched)
}

func TestRecordVendorPatternMatch_StaleVersionConflicts(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	saveVendor(t, store, "v-lidl", "Lidl", "")

	pattern := model.VendorPattern{
		ID:         "vp-1",
		VendorID:   "v-lidl",
		Normalized: "LIDLZUERICH",
		Type:       model.PatternExact,
		IsActive:   true,
	}
	require.NoError(t, store.SaveVendorPattern(ctx, &pattern))

	// Two readers loaded version 0; the second write must conflict.
	stale := pattern
	require.NoError(t, store.RecordVendorPatternMatch(ctx, &pattern))

	err := store.RecordVendorPatternMatch(ctx, &stale)
	assert.ErrorIs(t, err, common.ErrConcurrencyConflict)
}

func TestRecordVendorPatternMatch_MissingPattern(t *testing.T) {
	store := testutil.SetupTestDB(t)

	pattern := model.VendorPattern{ID: "vp-ghost", VendorID: "v-x", Normalized: "X", Type: model.PatternExact}
	err := store.RecordVendorPatternMatch(context.Background(), &pattern)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetActiveVendorPatterns_CachesBetweenReads(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	saveVendor(t, store, "v-lidl", "Lidl", "")

	pattern := model.VendorPattern{
		ID:         "vp-1",
		VendorID:   "v-lidl",
		Normalized: "LIDLZUERICH",
		Type:       model.PatternExact,
		IsActive:   true,
	}
	require.NoError(t, store.SaveVendorPattern(ctx, &pattern))

	first, err := store.GetActiveVendorPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := store.GetActiveVendorPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Writes invalidate the cache so the next read sees fresh data.
	inactive := pattern
	inactive.IsActive = false
	require.NoError(t, store.SaveVendorPattern(ctx, &inactive))

	third, err := store.GetActiveVendorPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, third)
}
