package ranking

import (
	"github.com/google/uuid"

	"crewUpAPI/internal/grade"
)

// Metric selects which statistic a ranking is ordered by.
type Metric string

const (
	MetricScore       Metric = "score"
	MetricCompletions Metric = "completions"
	MetricStreak      Metric = "streak"
)

// ParseMetric validates a metric query parameter, defaulting to score.
func ParseMetric(s string) (Metric, bool) {
	switch Metric(s) {
	case MetricScore, MetricCompletions, MetricStreak:
		return Metric(s), true
	case "":
		return MetricScore, true
	}
	return "", false
}

// GlobalEntry is one row of the global leaderboard: a user's statistics
// summed across all their challenges.
type GlobalEntry struct {
	UserID           uuid.UUID   `json:"user_id" db:"user_id"`
	Username         string      `json:"username" db:"username"`
	ImageURL         *string     `json:"image_url" db:"image_url"`
	Grade            grade.Grade `json:"grade" db:"grade"`
	TotalScore       int         `json:"total_score" db:"total_score"`
	TotalCompletions int         `json:"total_completions" db:"total_completions"`
	MaxStreak        int         `json:"max_streak" db:"max_streak"`
	Rank             int         `json:"rank"`
}

// ChallengeEntry is one row of a per-challenge leaderboard.
type ChallengeEntry struct {
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	Username         string    `json:"username" db:"username"`
	ImageURL         *string   `json:"image_url" db:"image_url"`
	Score            int       `json:"score" db:"score"`
	TotalCompletions int       `json:"total_completions" db:"total_completions"`
	CurrentStreak    int       `json:"current_streak" db:"current_streak"`
	MaxStreak        int       `json:"max_streak" db:"max_streak"`
	Rank             int       `json:"rank"`
}

type GlobalRanking struct {
	Entries []*GlobalEntry `json:"entries"`
	Metric  Metric         `json:"metric"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type ChallengeRanking struct {
	Entries []*ChallengeEntry `json:"entries"`
	Metric  Metric            `json:"metric"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
}

// MyRank is the caller's position within one ranking view.
type MyRank struct {
	Rank       int    `json:"rank"`
	Total      int    `json:"total"`
	Percentile int    `json:"percentile"`
	Metric     Metric `json:"metric"`
}

// RankAt converts a pagination offset into an absolute 1-based rank.
func RankAt(page, limit, index int) int {
	return (page-1)*limit + index + 1
}

// Percentile is the share of participants at or below the given rank,
// rounded. Rank 1 of N is always 100.
func Percentile(rank, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(total-rank+1)/float64(total)*100 + 0.5)
}
