package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewUpAPI/internal/badge"
	"crewUpAPI/internal/user"
)

func TestBadgeEvaluationGrantsOnce(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)

	badgeID := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO badges (id, name, description, icon, condition_type, threshold, sort_order)
		 VALUES ($1, $2, 'test badge', 'star', $3, 1, 9999)`,
		badgeID, "First Completion "+badgeID.String()[:8], badge.ConditionCompletions)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM badges WHERE id = $1`, badgeID)
	})

	u := newTestUser(t, userService, "badge")
	c := newTestChallenge(t, challengeService, u.ClerkID, 10)

	_, err = progressService.JoinChallenge(ctx, u.ClerkID, c.ID)
	require.NoError(t, err)

	result, err := progressService.CompleteChallenge(ctx, u.ClerkID, c.ID, nil)
	require.NoError(t, err)

	granted := false
	for _, b := range result.NewlyEarnedBadges {
		if b.ID == badgeID {
			granted = true
		}
	}
	assert.True(t, granted, "one completion should satisfy a threshold-1 badge")

	// A second evaluation must not grant the same badge again.
	eval, err := badgeService.EvaluateUser(ctx, u.ID)
	require.NoError(t, err)
	for _, b := range eval.NewlyEarned {
		assert.NotEqual(t, badgeID, b.ID, "already-earned badge granted twice")
	}

	var count int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_badges WHERE user_id = $1 AND badge_id = $2`,
		u.ID, badgeID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	status, err := badgeService.GetBadgesWithStatus(ctx, u.ClerkID)
	require.NoError(t, err)
	var seen bool
	for _, s := range status {
		if s.Badge.ID == badgeID {
			seen = true
			assert.True(t, s.Earned)
		}
	}
	assert.True(t, seen, "catalog listing should include the seeded badge")
}

func TestUpdateRepresentativeBadgesValidation(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)

	u := newTestUser(t, userService, "rep")

	// Unearned badges cannot be pinned.
	err := userService.UpdateRepresentativeBadges(ctx, u.ClerkID, &user.UpdateRepresentativeBadgesRequest{
		Badges: []user.RepresentativeBadgeSlot{
			{BadgeID: uuid.New(), DisplayOrder: 1},
		},
	})
	require.ErrorIs(t, err, ErrBadgeNotEarned)

	// Display orders outside 1..4 are rejected.
	err = userService.UpdateRepresentativeBadges(ctx, u.ClerkID, &user.UpdateRepresentativeBadgesRequest{
		Badges: []user.RepresentativeBadgeSlot{
			{BadgeID: uuid.New(), DisplayOrder: 5},
		},
	})
	require.ErrorIs(t, err, ErrInvalidBadgeOrder)

	// Duplicate display orders are rejected.
	err = userService.UpdateRepresentativeBadges(ctx, u.ClerkID, &user.UpdateRepresentativeBadgesRequest{
		Badges: []user.RepresentativeBadgeSlot{
			{BadgeID: uuid.New(), DisplayOrder: 1},
			{BadgeID: uuid.New(), DisplayOrder: 1},
		},
	})
	require.ErrorIs(t, err, ErrInvalidBadgeOrder)

	// Clearing the selection is always allowed.
	err = userService.UpdateRepresentativeBadges(ctx, u.ClerkID, &user.UpdateRepresentativeBadgesRequest{})
	require.NoError(t, err)
}

func TestRepresentativeAutoFillStopsAtCapacity(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)

	// Five threshold-1 badges become eligible in one pass; only the first
	// four in catalog order get a representative slot.
	badgeIDs := make([]uuid.UUID, 5)
	for i := range badgeIDs {
		badgeIDs[i] = uuid.New()
		_, err := pool.Exec(ctx,
			`INSERT INTO badges (id, name, description, icon, condition_type, threshold, sort_order)
			 VALUES ($1, $2, 'capacity test badge', 'star', $3, 1, $4)`,
			badgeIDs[i], fmt.Sprintf("Capacity %d %s", i, badgeIDs[i].String()[:8]),
			badge.ConditionCompletions, 9900+i)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		for _, id := range badgeIDs {
			pool.Exec(context.Background(), `DELETE FROM badges WHERE id = $1`, id)
		}
	})

	u := newTestUser(t, userService, "repcap")
	c := newTestChallenge(t, challengeService, u.ClerkID, 10)

	rec, err := progressService.JoinChallenge(ctx, u.ClerkID, c.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE progress SET total_completions = 1 WHERE id = $1`, rec.ID)
	require.NoError(t, err)

	// Evaluate against a synthetic catalog holding only the seeded badges
	// so the surrounding catalog cannot influence slot assignment.
	catalog := make([]badge.Badge, len(badgeIDs))
	for i, id := range badgeIDs {
		catalog[i] = badge.Badge{
			ID:            id,
			Name:          fmt.Sprintf("Capacity %d", i),
			ConditionType: badge.ConditionCompletions,
			Threshold:     1,
		}
	}
	eval, err := badgeService.EvaluateUserWithCatalog(ctx, u.ID, catalog)
	require.NoError(t, err)
	require.Len(t, eval.NewlyEarned, 5)

	for _, id := range badgeIDs {
		var earned bool
		err = pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`,
			u.ID, id).Scan(&earned)
		require.NoError(t, err)
		assert.True(t, earned)
	}

	// Catalog order fills orders 1..4; the fifth stays earned-only.
	for i := 0; i < 4; i++ {
		var order int
		err = pool.QueryRow(ctx,
			`SELECT display_order FROM representative_badges WHERE user_id = $1 AND badge_id = $2`,
			u.ID, badgeIDs[i]).Scan(&order)
		require.NoError(t, err)
		assert.Equal(t, i+1, order)
	}

	var repCount int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM representative_badges WHERE user_id = $1`, u.ID).Scan(&repCount)
	require.NoError(t, err)
	assert.Equal(t, badge.MaxRepresentative, repCount)
}

func TestRepresentativeAutoFillUsesFirstFreeOrder(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)

	// Three unreachable badges pinned at sparse orders {1,2,4}, plus one
	// threshold-1 badge that the evaluation pass will grant.
	pinnedIDs := make([]uuid.UUID, 3)
	for i := range pinnedIDs {
		pinnedIDs[i] = uuid.New()
		_, err := pool.Exec(ctx,
			`INSERT INTO badges (id, name, description, icon, condition_type, threshold, sort_order)
			 VALUES ($1, $2, 'pinned test badge', 'star', $3, 999999, $4)`,
			pinnedIDs[i], fmt.Sprintf("Pinned %d %s", i, pinnedIDs[i].String()[:8]),
			badge.ConditionScore, 9950+i)
		require.NoError(t, err)
	}
	newBadgeID := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO badges (id, name, description, icon, condition_type, threshold, sort_order)
		 VALUES ($1, $2, 'gap filler badge', 'star', $3, 1, 9960)`,
		newBadgeID, "Gap Filler "+newBadgeID.String()[:8], badge.ConditionCompletions)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, id := range append(pinnedIDs, newBadgeID) {
			pool.Exec(context.Background(), `DELETE FROM badges WHERE id = $1`, id)
		}
	})

	u := newTestUser(t, userService, "repgap")
	c := newTestChallenge(t, challengeService, u.ClerkID, 10)

	for i, order := range []int{1, 2, 4} {
		_, err = pool.Exec(ctx,
			`INSERT INTO user_badges (id, user_id, badge_id, earned_at) VALUES ($1, $2, $3, NOW())`,
			uuid.New(), u.ID, pinnedIDs[i])
		require.NoError(t, err)
		_, err = pool.Exec(ctx,
			`INSERT INTO representative_badges (user_id, badge_id, display_order) VALUES ($1, $2, $3)`,
			u.ID, pinnedIDs[i], order)
		require.NoError(t, err)
	}

	rec, err := progressService.JoinChallenge(ctx, u.ClerkID, c.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE progress SET total_completions = 1 WHERE id = $1`, rec.ID)
	require.NoError(t, err)

	eval, err := badgeService.EvaluateUserWithCatalog(ctx, u.ID, []badge.Badge{{
		ID:            newBadgeID,
		Name:          "Gap Filler",
		ConditionType: badge.ConditionCompletions,
		Threshold:     1,
	}})
	require.NoError(t, err)
	require.Len(t, eval.NewlyEarned, 1)

	// The new badge must land in the gap at order 3, not collide at 4.
	var order int
	err = pool.QueryRow(ctx,
		`SELECT display_order FROM representative_badges WHERE user_id = $1 AND badge_id = $2`,
		u.ID, newBadgeID).Scan(&order)
	require.NoError(t, err)
	assert.Equal(t, 3, order)

	// Pinned slots are untouched.
	for i, want := range []int{1, 2, 4} {
		var got int
		err = pool.QueryRow(ctx,
			`SELECT display_order FROM representative_badges WHERE user_id = $1 AND badge_id = $2`,
			u.ID, pinnedIDs[i]).Scan(&got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
