package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewUpAPI/internal/badge"
	"crewUpAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, trust_score, grade, email_verified, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(
		ctx,
		query,
		uuid.New(),
		req.ClerkID,
		req.Email,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.TrustScore,
		&u.Grade,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, first_name, last_name, image_url, trust_score, grade, email_verified, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.TrustScore,
		&u.Grade,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// GetProfile returns the user plus their badge surface: earned count and the
// representative badges joined to the catalog, ordered by display slot.
func (s *UserService) GetProfile(ctx context.Context, clerkID string) (*user.Profile, error) {
	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	profile := &user.Profile{User: u}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_badges WHERE user_id = $1`, u.ID,
	).Scan(&profile.EarnedBadgeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count badges: %w", err)
	}

	query := `
	SELECT b.id, b.name, b.description, b.icon, b.condition_type, b.threshold, b.category, b.sort_order, b.created_at, rb.display_order
	FROM representative_badges rb
	JOIN badges b ON b.id = rb.badge_id
	WHERE rb.user_id = $1
	ORDER BY rb.display_order
	`

	rows, err := s.db.Query(ctx, query, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch representative badges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rep := &user.RepresentativeBadgeWithInfo{}
		err := rows.Scan(
			&rep.Badge.ID,
			&rep.Badge.Name,
			&rep.Badge.Description,
			&rep.Badge.Icon,
			&rep.Badge.ConditionType,
			&rep.Badge.Threshold,
			&rep.Badge.Category,
			&rep.Badge.SortOrder,
			&rep.Badge.CreatedAt,
			&rep.DisplayOrder,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan representative badge: %w", err)
		}
		profile.RepresentativeBadges = append(profile.RepresentativeBadges, rep)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating representative badges: %w", err)
	}

	return profile, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, trust_score, grade, email_verified, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(
		ctx,
		query,
		clerkID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.TrustScore,
		&u.Grade,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`,
		clerkID, verified)
	return err
}

// UpdateRepresentativeBadges replaces the user's display slots. Every badge
// must already be earned, orders must be distinct values in [1,4].
func (s *UserService) UpdateRepresentativeBadges(ctx context.Context, clerkID string, req *user.UpdateRepresentativeBadgesRequest) error {
	if len(req.Badges) > badge.MaxRepresentative {
		return ErrInvalidBadgeOrder
	}
	seenOrder := make(map[int]bool)
	seenBadge := make(map[uuid.UUID]bool)
	for _, slot := range req.Badges {
		if slot.DisplayOrder < 1 || slot.DisplayOrder > badge.MaxRepresentative {
			return ErrInvalidBadgeOrder
		}
		if seenOrder[slot.DisplayOrder] || seenBadge[slot.BadgeID] {
			return ErrInvalidBadgeOrder
		}
		seenOrder[slot.DisplayOrder] = true
		seenBadge[slot.BadgeID] = true
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, slot := range req.Badges {
		var earned bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`,
			userID, slot.BadgeID).Scan(&earned)
		if err != nil {
			return fmt.Errorf("failed to check earned badge: %w", err)
		}
		if !earned {
			return ErrBadgeNotEarned
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM representative_badges WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear representative badges: %w", err)
	}

	for _, slot := range req.Badges {
		_, err := tx.Exec(ctx,
			`INSERT INTO representative_badges (user_id, badge_id, display_order) VALUES ($1, $2, $3)`,
			userID, slot.BadgeID, slot.DisplayOrder)
		if err != nil {
			return fmt.Errorf("failed to insert representative badge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit representative badges: %w", err)
	}
	return nil
}

func (s *UserService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}
