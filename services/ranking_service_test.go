package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewUpAPI/internal/ranking"
)

func TestChallengeRankingOrderAndMyRank(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)
	rankingService := NewRankingService(pool)

	first := newTestUser(t, userService, "rank1")
	second := newTestUser(t, userService, "rank2")
	third := newTestUser(t, userService, "rank3")
	c := newTestChallenge(t, challengeService, first.ClerkID, 10)

	users := []struct {
		clerkID     string
		score       int
		completions int
	}{
		{first.ClerkID, 50, 5},
		{second.ClerkID, 50, 3}, // same score, fewer completions
		{third.ClerkID, 30, 3},
	}
	for _, u := range users {
		rec, err := progressService.JoinChallenge(ctx, u.clerkID, c.ID)
		require.NoError(t, err)
		_, err = pool.Exec(ctx,
			`UPDATE progress SET score = $2, total_completions = $3 WHERE id = $1`,
			rec.ID, u.score, u.completions)
		require.NoError(t, err)
	}

	board, err := rankingService.GetChallengeRanking(ctx, c.ID, ranking.MetricScore, 1, 20)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)

	assert.Equal(t, first.ID, board.Entries[0].UserID, "ties on score break on completions")
	assert.Equal(t, second.ID, board.Entries[1].UserID)
	assert.Equal(t, third.ID, board.Entries[2].UserID)
	for i, e := range board.Entries {
		assert.Equal(t, i+1, e.Rank)
	}

	// My-rank must agree with the board position for every participant.
	for i, want := range []string{first.ClerkID, second.ClerkID, third.ClerkID} {
		mine, err := rankingService.GetMyChallengeRank(ctx, want, c.ID, ranking.MetricScore)
		require.NoError(t, err)
		assert.Equal(t, i+1, mine.Rank)
		assert.Equal(t, 3, mine.Total)
	}

	mine, err := rankingService.GetMyChallengeRank(ctx, third.ClerkID, c.ID, ranking.MetricScore)
	require.NoError(t, err)
	assert.Equal(t, ranking.Percentile(3, 3), mine.Percentile)
}

func TestChallengeRankingIsDeterministicOnFullTies(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)
	rankingService := NewRankingService(pool)

	a := newTestUser(t, userService, "tie1")
	b := newTestUser(t, userService, "tie2")
	c := newTestChallenge(t, challengeService, a.ClerkID, 10)

	for _, clerkID := range []string{a.ClerkID, b.ClerkID} {
		rec, err := progressService.JoinChallenge(ctx, clerkID, c.ID)
		require.NoError(t, err)
		_, err = pool.Exec(ctx,
			`UPDATE progress SET score = 10, total_completions = 1 WHERE id = $1`, rec.ID)
		require.NoError(t, err)
	}

	firstRead, err := rankingService.GetChallengeRanking(ctx, c.ID, ranking.MetricScore, 1, 20)
	require.NoError(t, err)
	require.Len(t, firstRead.Entries, 2)

	// Fully tied rows fall back to user_id ordering, so repeated reads
	// never reshuffle.
	for i := 0; i < 3; i++ {
		again, err := rankingService.GetChallengeRanking(ctx, c.ID, ranking.MetricScore, 1, 20)
		require.NoError(t, err)
		require.Len(t, again.Entries, 2)
		assert.Equal(t, firstRead.Entries[0].UserID, again.Entries[0].UserID)
		assert.Equal(t, firstRead.Entries[1].UserID, again.Entries[1].UserID)
	}
}

func TestGlobalRankingAggregatesAcrossChallenges(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)
	rankingService := NewRankingService(pool)

	u := newTestUser(t, userService, "global")
	c1 := newTestChallenge(t, challengeService, u.ClerkID, 10)
	c2 := newTestChallenge(t, challengeService, u.ClerkID, 10)

	rec1, err := progressService.JoinChallenge(ctx, u.ClerkID, c1.ID)
	require.NoError(t, err)
	rec2, err := progressService.JoinChallenge(ctx, u.ClerkID, c2.ID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`UPDATE progress SET score = 20, total_completions = 2, max_streak_count = 2 WHERE id = $1`, rec1.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE progress SET score = 35, total_completions = 3, max_streak_count = 5 WHERE id = $1`, rec2.ID)
	require.NoError(t, err)

	// Walk the global board until our user shows up; the summed totals
	// must reflect both challenges.
	var found bool
	for page := 1; page <= 50 && !found; page++ {
		board, err := rankingService.GetGlobalRanking(ctx, ranking.MetricScore, page, 100)
		require.NoError(t, err)
		if len(board.Entries) == 0 {
			break
		}
		for _, e := range board.Entries {
			if e.UserID == u.ID {
				assert.Equal(t, 55, e.TotalScore)
				assert.Equal(t, 5, e.TotalCompletions)
				assert.Equal(t, 5, e.MaxStreak)
				found = true
				break
			}
		}
	}
	require.True(t, found, "user should appear on the global board")

	mine, err := rankingService.GetMyGlobalRank(ctx, u.ClerkID, ranking.MetricScore)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mine.Total, 1)
	assert.GreaterOrEqual(t, mine.Rank, 1)
	assert.LessOrEqual(t, mine.Rank, mine.Total)
}

func TestGlobalMyRankBreaksTiesLikeTheBoard(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	userService := NewUserService(pool)
	challengeService := NewChallengeService(pool)
	badgeService := NewBadgeService(pool)
	notificationService := NewNotificationService(pool)
	progressService := NewProgressService(pool, badgeService, challengeService, notificationService)
	rankingService := NewRankingService(pool)

	ahead := newTestUser(t, userService, "gtie1")
	behind := newTestUser(t, userService, "gtie2")
	c := newTestChallenge(t, challengeService, ahead.ClerkID, 10)

	// Equal total score, different completions: the board orders ahead
	// before behind, and my-rank must agree instead of reporting a tie.
	users := []struct {
		clerkID     string
		completions int
	}{
		{ahead.ClerkID, 9},
		{behind.ClerkID, 4},
	}
	for _, u := range users {
		rec, err := progressService.JoinChallenge(ctx, u.clerkID, c.ID)
		require.NoError(t, err)
		_, err = pool.Exec(ctx,
			`UPDATE progress SET score = 1000000, total_completions = $2 WHERE id = $1`,
			rec.ID, u.completions)
		require.NoError(t, err)
	}

	aheadRank, err := rankingService.GetMyGlobalRank(ctx, ahead.ClerkID, ranking.MetricScore)
	require.NoError(t, err)
	behindRank, err := rankingService.GetMyGlobalRank(ctx, behind.ClerkID, ranking.MetricScore)
	require.NoError(t, err)

	assert.Equal(t, aheadRank.Rank+1, behindRank.Rank,
		"score tie must fall through to the completions tie-break")
	assert.Equal(t, aheadRank.Total, behindRank.Total)
}
