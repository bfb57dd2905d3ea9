package bonus_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appideasfinder/backend/pkg/bonus"
)

func TestAward(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fixed searches grant", func(t *testing.T) {
		t.Parallel()

		svc := bonus.NewService(bonus.NewMemoryStore())
		adminID := uuid.New()
		userID := uuid.New()

		grant, err := svc.Award(ctx, bonus.AwardParams{
			UserID:    userID,
			Type:      bonus.TypeFixedSearches,
			Value:     10,
			Duration:  bonus.DurationOnce,
			Reason:    "launch promo",
			GrantedBy: &adminID,
		})
		require.NoError(t, err)

		assert.Equal(t, userID, grant.UserID)
		assert.Equal(t, 10, grant.Value)
		assert.True(t, grant.Active)
		assert.Nil(t, grant.MonthsRemaining)
		require.NotNil(t, grant.GrantedBy)
		assert.Equal(t, adminID, *grant.GrantedBy)
	})

	t.Run("monthly duration initializes months remaining", func(t *testing.T) {
		t.Parallel()

		svc := bonus.NewService(bonus.NewMemoryStore())

		grant, err := svc.Award(ctx, bonus.AwardParams{
			UserID:   uuid.New(),
			Type:     bonus.TypePercentage,
			Value:    5,
			Duration: bonus.DurationMonthly,
		})
		require.NoError(t, err)

		require.NotNil(t, grant.MonthsRemaining)
		assert.Equal(t, 5, *grant.MonthsRemaining)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		svc := bonus.NewService(bonus.NewMemoryStore())

		_, err := svc.Award(ctx, bonus.AwardParams{
			Type: bonus.TypeFixedSearches, Value: 1, Duration: bonus.DurationOnce,
		})
		assert.ErrorIs(t, err, bonus.ErrMissingUserID)

		_, err = svc.Award(ctx, bonus.AwardParams{
			UserID: uuid.New(), Type: "coupon", Value: 1, Duration: bonus.DurationOnce,
		})
		assert.ErrorIs(t, err, bonus.ErrInvalidType)

		_, err = svc.Award(ctx, bonus.AwardParams{
			UserID: uuid.New(), Type: bonus.TypeFixedSearches, Value: 1, Duration: "yearly",
		})
		assert.ErrorIs(t, err, bonus.ErrInvalidDuration)

		_, err = svc.Award(ctx, bonus.AwardParams{
			UserID: uuid.New(), Type: bonus.TypeFixedSearches, Value: 0, Duration: bonus.DurationOnce,
		})
		assert.ErrorIs(t, err, bonus.ErrInvalidValue)
	})
}

func TestFeedbackReward(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := bonus.NewMemoryStore()
	svc := bonus.NewService(store)
	userID := uuid.New()

	first, err := svc.FeedbackReward(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Value)
	assert.Equal(t, bonus.FeedbackReason, first.Reason)
	assert.Equal(t, bonus.TypeFixedSearches, first.Type)

	// A second submission bumps the same grant instead of creating a
	// duplicate row.
	second, err := svc.FeedbackReward(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Value)

	grants, err := store.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, 2, grants[0].Value)
}

func TestActiveSearchExtra(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := bonus.NewMemoryStore()
	svc := bonus.NewService(store)
	userID := uuid.New()

	_, err := svc.Award(ctx, bonus.AwardParams{
		UserID: userID, Type: bonus.TypeFixedSearches, Value: 10, Duration: bonus.DurationOnce,
	})
	require.NoError(t, err)
	_, err = svc.Award(ctx, bonus.AwardParams{
		UserID: userID, Type: bonus.TypeFixedSearches, Value: 5, Duration: bonus.DurationPermanent,
	})
	require.NoError(t, err)

	// Percentage grants discount price, they never raise the search
	// ceiling.
	_, err = svc.Award(ctx, bonus.AwardParams{
		UserID: userID, Type: bonus.TypePercentage, Value: 50, Duration: bonus.DurationOnce,
	})
	require.NoError(t, err)

	extra, err := svc.ActiveSearchExtra(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 15, extra)

	other, err := svc.ActiveSearchExtra(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

func TestConsume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("once grant deactivates when its value is spent", func(t *testing.T) {
		t.Parallel()

		store := bonus.NewMemoryStore()
		svc := bonus.NewService(store)
		userID := uuid.New()

		_, err := svc.Award(ctx, bonus.AwardParams{
			UserID: userID, Type: bonus.TypeFixedSearches, Value: 2, Duration: bonus.DurationOnce,
		})
		require.NoError(t, err)

		grant, err := svc.Consume(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, grant.Value)
		assert.True(t, grant.Active)

		grant, err = svc.Consume(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, grant.Value)
		assert.False(t, grant.Active)

		grants, err := store.ListActiveByUser(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, grants)

		_, err = svc.Consume(ctx, userID)
		assert.ErrorIs(t, err, bonus.ErrGrantNotFound)
	})

	t.Run("permanent grant stays on record at zero", func(t *testing.T) {
		t.Parallel()

		store := bonus.NewMemoryStore()
		svc := bonus.NewService(store)
		userID := uuid.New()

		_, err := svc.Award(ctx, bonus.AwardParams{
			UserID: userID, Type: bonus.TypeFixedSearches, Value: 1, Duration: bonus.DurationPermanent,
		})
		require.NoError(t, err)

		grant, err := svc.Consume(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, grant.Value)
		assert.True(t, grant.Active)

		// The empty grant carries no further searches.
		_, err = svc.Consume(ctx, userID)
		assert.ErrorIs(t, err, bonus.ErrGrantNotFound)

		extra, err := svc.ActiveSearchExtra(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, extra)
	})

	t.Run("oldest grant is consumed first", func(t *testing.T) {
		t.Parallel()

		store := bonus.NewMemoryStore()
		svc := bonus.NewService(store)
		userID := uuid.New()

		first, err := svc.Award(ctx, bonus.AwardParams{
			UserID: userID, Type: bonus.TypeFixedSearches, Value: 1, Duration: bonus.DurationOnce,
		})
		require.NoError(t, err)
		_, err = svc.Award(ctx, bonus.AwardParams{
			UserID: userID, Type: bonus.TypeFixedSearches, Value: 5, Duration: bonus.DurationPermanent,
		})
		require.NoError(t, err)

		consumed, err := svc.Consume(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, consumed.ID)
	})

	t.Run("percentage grants never fund searches", func(t *testing.T) {
		t.Parallel()

		svc := bonus.NewService(bonus.NewMemoryStore())
		userID := uuid.New()

		_, err := svc.Award(ctx, bonus.AwardParams{
			UserID: userID, Type: bonus.TypePercentage, Value: 50, Duration: bonus.DurationOnce,
		})
		require.NoError(t, err)

		_, err = svc.Consume(ctx, userID)
		assert.ErrorIs(t, err, bonus.ErrGrantNotFound)
	})
}

func TestRolloverCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := bonus.NewMemoryStore()
	svc := bonus.NewService(store)
	userID := uuid.New()

	grant, err := svc.Award(ctx, bonus.AwardParams{
		UserID: userID, Type: bonus.TypePercentage, Value: 5, Duration: bonus.DurationMonthly,
	})
	require.NoError(t, err)
	require.NotNil(t, grant.MonthsRemaining)
	require.Equal(t, 5, *grant.MonthsRemaining)

	// First rollover: 5 -> 4, still active.
	result, err := svc.RolloverCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Deactivated)

	grants, err := store.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, 4, *grants[0].MonthsRemaining)

	// Run the remaining cycles down to zero.
	for i := 0; i < 4; i++ {
		_, err := svc.RolloverCycle(ctx)
		require.NoError(t, err)
	}

	grants, err = store.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	// Nothing monthly left, rollover is a no-op.
	result, err = svc.RolloverCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := bonus.NewMemoryStore()
	svc := bonus.NewService(store)
	userID := uuid.New()

	grant, err := svc.Award(ctx, bonus.AwardParams{
		UserID: userID, Type: bonus.TypeFixedSearches, Value: 3, Duration: bonus.DurationPermanent,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, grant))

	grants, err := store.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, grants)
}
