package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryFitness   Category = "fitness"
	CategoryStudy     Category = "study"
	CategoryLifestyle Category = "lifestyle"
	CategoryHobby     Category = "hobby"
	CategoryFinance   Category = "finance"
)

type Challenge struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Category        Category  `json:"category" db:"category"`
	MaxParticipants int       `json:"max_participants" db:"max_participants"`
	CompletionRate  int       `json:"completion_rate" db:"completion_rate"`
	CreatedBy       uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ChallengeWithParticipants is the read shape for challenge endpoints.
type ChallengeWithParticipants struct {
	Challenge
	ParticipantCount int  `json:"participant_count"`
	Joined           bool `json:"joined"`
}

type CreateChallengeRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        Category `json:"category"`
	MaxParticipants int      `json:"max_participants"`
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryFitness, CategoryStudy, CategoryLifestyle, CategoryHobby, CategoryFinance:
		return true
	}
	return false
}
