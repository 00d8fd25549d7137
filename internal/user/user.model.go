package user

import (
	"time"

	"github.com/google/uuid"

	"crewUpAPI/internal/badge"
	"crewUpAPI/internal/grade"
)

type User struct {
	ID            uuid.UUID   `json:"id"`
	ClerkID       string      `json:"clerkId"`
	Email         string      `json:"email"`
	Username      string      `json:"username"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	ImageURL      string      `json:"imageUrl,omitempty"`
	TrustScore    float64     `json:"trustScore"`
	Grade         grade.Grade `json:"grade"`
	EmailVerified bool        `json:"emailVerified"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Profile is the full read shape: the user plus their badge surface.
type Profile struct {
	User                 *User                          `json:"user"`
	EarnedBadgeCount     int                            `json:"earnedBadgeCount"`
	RepresentativeBadges []*RepresentativeBadgeWithInfo `json:"representativeBadges"`
}

// RepresentativeBadgeWithInfo joins a representative slot to its catalog entry.
type RepresentativeBadgeWithInfo struct {
	Badge        badge.Badge `json:"badge"`
	DisplayOrder int         `json:"displayOrder"`
}
