package badge

import (
	"time"

	"github.com/google/uuid"
)

type ConditionType string

const (
	ConditionCompletions         ConditionType = "completions"
	ConditionStreak              ConditionType = "streak"
	ConditionScore               ConditionType = "score"
	ConditionChallenges          ConditionType = "challenges"
	ConditionDays                ConditionType = "days"
	ConditionCategoryCompletions ConditionType = "category_completions"
)

// Badge is an immutable catalog entry. Category is only set for
// category_completions conditions.
type Badge struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Description   string        `json:"description" db:"description"`
	Icon          string        `json:"icon" db:"icon"`
	ConditionType ConditionType `json:"condition_type" db:"condition_type"`
	Threshold     int           `json:"threshold" db:"threshold"`
	Category      *string       `json:"category,omitempty" db:"category"`
	SortOrder     int           `json:"sort_order" db:"sort_order"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

type UserBadge struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	BadgeID  uuid.UUID `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

// RepresentativeBadge is one of up to four badges a user displays on their
// profile. Display orders are distinct values in [1,4].
type RepresentativeBadge struct {
	BadgeID      uuid.UUID `json:"badge_id" db:"badge_id"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
}

// MaxRepresentative is the number of representative badge slots.
const MaxRepresentative = 4

type BadgeWithStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// LifetimeStats are a user's aggregates over all their progress records,
// the inputs every badge condition is evaluated against.
type LifetimeStats struct {
	TotalCompletions      int            `json:"total_completions"`
	MaxStreak             int            `json:"max_streak"`
	TotalScore            int            `json:"total_score"`
	TotalChallenges       int            `json:"total_challenges"`
	TotalActiveDays       int            `json:"total_active_days"`
	CompletionsByCategory map[string]int `json:"completions_by_category"`
}

// Met reports whether the badge's condition holds for the given aggregates.
// An unknown category (or a category badge without one) counts as zero.
func (b *Badge) Met(stats LifetimeStats) bool {
	var value int
	switch b.ConditionType {
	case ConditionCompletions:
		value = stats.TotalCompletions
	case ConditionStreak:
		value = stats.MaxStreak
	case ConditionScore:
		value = stats.TotalScore
	case ConditionChallenges:
		value = stats.TotalChallenges
	case ConditionDays:
		value = stats.TotalActiveDays
	case ConditionCategoryCompletions:
		if b.Category == nil {
			return false
		}
		value = stats.CompletionsByCategory[*b.Category]
	default:
		return false
	}
	return value >= b.Threshold
}

// Evaluate scans the catalog in order and returns the badges newly met for
// the given aggregates, skipping ones already earned. Badges are never
// revoked; callers append the result to the user's earned set.
func Evaluate(catalog []Badge, earned map[uuid.UUID]bool, stats LifetimeStats) []Badge {
	var newly []Badge
	for _, b := range catalog {
		if earned[b.ID] {
			continue
		}
		if b.Met(stats) {
			newly = append(newly, b)
		}
	}
	return newly
}
