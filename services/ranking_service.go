package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewUpAPI/internal/ranking"
)

type RankingService struct {
	db *pgxpool.Pool
}

func NewRankingService(db *pgxpool.Pool) *RankingService {
	return &RankingService{db: db}
}

// Order clauses per metric. The trailing user_id key makes every ordering a
// total order, so the same query always returns the same sequence.
var globalOrder = map[ranking.Metric]string{
	ranking.MetricScore:       "total_score DESC, total_completions DESC, user_id",
	ranking.MetricCompletions: "total_completions DESC, total_score DESC, user_id",
	ranking.MetricStreak:      "max_streak DESC, total_score DESC, user_id",
}

var challengeOrder = map[ranking.Metric]string{
	ranking.MetricScore:       "p.score DESC, p.total_completions DESC, p.user_id",
	ranking.MetricCompletions: "p.total_completions DESC, p.score DESC, p.user_id",
	ranking.MetricStreak:      "p.max_streak_count DESC, p.current_streak_count DESC, p.score DESC, p.user_id",
}

// Strict-precedence predicates for the my-rank count, one disjunct per
// tie-break level, mirroring challengeOrder.
var globalPrecedes = map[ranking.Metric]string{
	ranking.MetricScore: `(o.total_score > t.total_score)
		OR (o.total_score = t.total_score AND o.total_completions > t.total_completions)`,
	ranking.MetricCompletions: `(o.total_completions > t.total_completions)
		OR (o.total_completions = t.total_completions AND o.total_score > t.total_score)`,
	ranking.MetricStreak: `(o.max_streak > t.max_streak)
		OR (o.max_streak = t.max_streak AND o.total_score > t.total_score)`,
}

var challengePrecedes = map[ranking.Metric]string{
	ranking.MetricScore: `(o.score > p.score)
		OR (o.score = p.score AND o.total_completions > p.total_completions)`,
	ranking.MetricCompletions: `(o.total_completions > p.total_completions)
		OR (o.total_completions = p.total_completions AND o.score > p.score)`,
	ranking.MetricStreak: `(o.max_streak_count > p.max_streak_count)
		OR (o.max_streak_count = p.max_streak_count AND o.current_streak_count > p.current_streak_count)
		OR (o.max_streak_count = p.max_streak_count AND o.current_streak_count = p.current_streak_count AND o.score > p.score)`,
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// GetGlobalRanking groups every progress record by user and orders the
// summed statistics by the requested metric.
func (s *RankingService) GetGlobalRanking(ctx context.Context, metric ranking.Metric, page, limit int) (*ranking.GlobalRanking, error) {
	order, ok := globalOrder[metric]
	if !ok {
		return nil, fmt.Errorf("unknown ranking metric %q", metric)
	}
	page, limit = clampPage(page, limit)

	query := fmt.Sprintf(`
	SELECT user_id, username, image_url, grade, total_score, total_completions, max_streak
	FROM (
		SELECT
			u.id AS user_id,
			u.username,
			u.image_url,
			u.grade,
			COALESCE(SUM(p.score), 0) AS total_score,
			COALESCE(SUM(p.total_completions), 0) AS total_completions,
			COALESCE(MAX(p.max_streak_count), 0) AS max_streak
		FROM users u
		JOIN progress p ON p.user_id = u.id
		GROUP BY u.id, u.username, u.image_url, u.grade
	) totals
	ORDER BY %s
	LIMIT $1 OFFSET $2
	`, order)

	rows, err := s.db.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch global ranking: %w", err)
	}
	defer rows.Close()

	result := &ranking.GlobalRanking{Metric: metric, Page: page, Limit: limit}
	for rows.Next() {
		entry := &ranking.GlobalEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.Grade,
			&entry.TotalScore,
			&entry.TotalCompletions,
			&entry.MaxStreak,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking entry: %w", err)
		}
		entry.Rank = ranking.RankAt(page, limit, len(result.Entries))
		result.Entries = append(result.Entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking entries: %w", err)
	}

	return result, nil
}

// GetChallengeRanking orders one challenge's progress records with the
// metric's multi-key tie-breaks.
func (s *RankingService) GetChallengeRanking(ctx context.Context, challengeID uuid.UUID, metric ranking.Metric, page, limit int) (*ranking.ChallengeRanking, error) {
	order, ok := challengeOrder[metric]
	if !ok {
		return nil, fmt.Errorf("unknown ranking metric %q", metric)
	}
	page, limit = clampPage(page, limit)

	query := fmt.Sprintf(`
	SELECT p.user_id, u.username, u.image_url, p.score, p.total_completions, p.current_streak_count, p.max_streak_count
	FROM progress p
	JOIN users u ON u.id = p.user_id
	WHERE p.challenge_id = $1
	ORDER BY %s
	LIMIT $2 OFFSET $3
	`, order)

	rows, err := s.db.Query(ctx, query, challengeID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge ranking: %w", err)
	}
	defer rows.Close()

	result := &ranking.ChallengeRanking{Metric: metric, Page: page, Limit: limit}
	for rows.Next() {
		entry := &ranking.ChallengeEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.Score,
			&entry.TotalCompletions,
			&entry.CurrentStreak,
			&entry.MaxStreak,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking entry: %w", err)
		}
		entry.Rank = ranking.RankAt(page, limit, len(result.Entries))
		result.Entries = append(result.Entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking entries: %w", err)
	}

	return result, nil
}

// GetMyChallengeRank computes the caller's rank in one challenge as one plus
// the number of records that strictly precede theirs under the metric's
// tie-break rule, plus the percentile over all participants.
func (s *RankingService) GetMyChallengeRank(ctx context.Context, clerkID string, challengeID uuid.UUID, metric ranking.Metric) (*ranking.MyRank, error) {
	precedes, ok := challengePrecedes[metric]
	if !ok {
		return nil, fmt.Errorf("unknown ranking metric %q", metric)
	}

	query := fmt.Sprintf(`
	SELECT
		1 + COUNT(o.id) FILTER (WHERE %s) AS rank,
		(SELECT COUNT(*) FROM progress WHERE challenge_id = $2) AS total
	FROM progress p
	LEFT JOIN progress o ON o.challenge_id = p.challenge_id AND o.id <> p.id
	WHERE p.challenge_id = $2
	  AND p.user_id = (SELECT id FROM users WHERE clerk_id = $1)
	GROUP BY p.id
	`, precedes)

	result := &ranking.MyRank{Metric: metric}
	err := s.db.QueryRow(ctx, query, clerkID, challengeID).Scan(&result.Rank, &result.Total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("failed to compute rank: %w", err)
	}

	result.Percentile = ranking.Percentile(result.Rank, result.Total)
	return result, nil
}

// GetMyGlobalRank is the global-ranking counterpart of GetMyChallengeRank,
// computed over the per-user sums with the same tie-break rule as the board.
func (s *RankingService) GetMyGlobalRank(ctx context.Context, clerkID string, metric ranking.Metric) (*ranking.MyRank, error) {
	precedes, ok := globalPrecedes[metric]
	if !ok {
		return nil, fmt.Errorf("unknown ranking metric %q", metric)
	}

	query := fmt.Sprintf(`
	WITH totals AS (
		SELECT
			u.id AS user_id,
			u.clerk_id,
			COALESCE(SUM(p.score), 0) AS total_score,
			COALESCE(SUM(p.total_completions), 0) AS total_completions,
			COALESCE(MAX(p.max_streak_count), 0) AS max_streak
		FROM users u
		JOIN progress p ON p.user_id = u.id
		GROUP BY u.id, u.clerk_id
	)
	SELECT
		1 + (SELECT COUNT(*) FROM totals o WHERE %s) AS rank,
		(SELECT COUNT(*) FROM totals) AS total
	FROM totals t
	WHERE t.clerk_id = $1
	`, precedes)

	result := &ranking.MyRank{Metric: metric}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(&result.Rank, &result.Total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("failed to compute global rank: %w", err)
	}

	result.Percentile = ranking.Percentile(result.Rank, result.Total)
	return result, nil
}
