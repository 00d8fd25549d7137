package progress

import (
	"time"

	"github.com/google/uuid"

	"crewUpAPI/internal/badge"
	"crewUpAPI/internal/grade"
)

// Record is the per-(user, challenge) progress row. completed dates and photos
// live in the progress_completions child table, one row per calendar day.
type Record struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	ChallengeID        uuid.UUID  `json:"challenge_id" db:"challenge_id"`
	StartDate          time.Time  `json:"start_date" db:"start_date"`
	TotalCompletions   int        `json:"total_completions" db:"total_completions"`
	Score              int        `json:"score" db:"score"`
	CurrentStreakCount int        `json:"current_streak_count" db:"current_streak_count"`
	MaxStreakCount     int        `json:"max_streak_count" db:"max_streak_count"`
	LastCompletionDate *time.Time `json:"last_completion_date" db:"last_completion_date"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Completion is one recorded day with its photo reference.
type Completion struct {
	CompletedDate time.Time `json:"completed_date" db:"completed_date"`
	PhotoURL      *string   `json:"photo_url" db:"photo_url"`
}

// RecordWithCompletions is the read shape for the progress endpoints.
type RecordWithCompletions struct {
	Record
	Completions []Completion `json:"completions"`
}

// CompletionResult is the post-cascade snapshot returned from a successful
// daily completion.
type CompletionResult struct {
	Score              int         `json:"score"`
	TotalCompletions   int         `json:"total_completions"`
	CurrentStreakCount int         `json:"current_streak_count"`
	MaxStreakCount     int         `json:"max_streak_count"`
	CompletedDate      time.Time   `json:"completed_date"`
	TrustScore         float64     `json:"trust_score"`
	TrustScoreIncrease float64     `json:"trust_score_increase"`
	Grade              grade.Grade   `json:"grade"`
	TotalBadges        int           `json:"total_badges"`
	NewlyEarnedBadges  []badge.Badge `json:"newly_earned_badges,omitempty"`
}

// CompletionScore is the fixed score increment for one daily completion.
const CompletionScore = 10

// DefaultRateWindowDays caps the possible-days denominator of the challenge
// completion rate so long-running participants don't dilute it indefinitely.
const DefaultRateWindowDays = 30

// Day truncates t to its UTC calendar day at 00:00.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today is the current UTC calendar day.
func Today() time.Time {
	return Day(time.Now())
}

// NextStreak computes the streak counters after recording a completion for
// today. The streak continues only when the previous completion was exactly
// yesterday; any gap resets the current streak to 1. The max streak never
// decreases.
func NextStreak(currentStreak, maxStreak int, lastCompletion *time.Time, today time.Time) (int, int) {
	today = Day(today)
	yesterday := today.AddDate(0, 0, -1)

	if lastCompletion != nil && Day(*lastCompletion).Equal(yesterday) {
		currentStreak++
	} else {
		currentStreak = 1
	}

	if currentStreak > maxStreak {
		maxStreak = currentStreak
	}
	return currentStreak, maxStreak
}

// TrustIncrease is the trust-score delta for one completion: a base point
// plus a streak bonus. Bonus tiers are checked highest first, exactly one
// applies.
func TrustIncrease(currentStreak int) float64 {
	increase := 1.0
	switch {
	case currentStreak >= 10:
		increase += 2
	case currentStreak >= 7:
		increase += 1.5
	case currentStreak >= 3:
		increase += 1
	}
	return increase
}

// RateInput is the slice of a progress record the completion-rate recompute
// needs: when the participant started and how many days they completed.
type RateInput struct {
	StartDate        time.Time
	TotalCompletions int
}

// CompletionRate recomputes a challenge's completion rate from scratch over
// all of its participants. Each participant contributes up to windowDays
// possible days; the result is the percentage of possible days actually
// completed, rounded, clamped to [0, 100]. No participants means 0.
func CompletionRate(records []RateInput, windowDays int, now time.Time) int {
	if len(records) == 0 {
		return 0
	}
	if windowDays <= 0 {
		windowDays = DefaultRateWindowDays
	}

	today := Day(now)
	totalPossible := 0
	totalActual := 0

	for _, r := range records {
		possible := int(today.Sub(Day(r.StartDate)).Hours()/24) + 1
		if possible < 1 {
			possible = 1
		}
		if possible > windowDays {
			possible = windowDays
		}
		totalPossible += possible
		totalActual += r.TotalCompletions
	}

	if totalPossible == 0 {
		return 0
	}

	rate := int(float64(totalActual)/float64(totalPossible)*100 + 0.5)
	if rate > 100 {
		rate = 100
	}
	if rate < 0 {
		rate = 0
	}
	return rate
}
