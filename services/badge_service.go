package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewUpAPI/internal/badge"
	"crewUpAPI/internal/grade"
)

type BadgeService struct {
	db *pgxpool.Pool
}

func NewBadgeService(db *pgxpool.Pool) *BadgeService {
	return &BadgeService{db: db}
}

// EvaluationResult is what one evaluation pass changed for a user.
type EvaluationResult struct {
	NewlyEarned []badge.Badge
	TotalBadges int
	Grade       grade.Grade
	Promoted    bool
}

// LoadCatalog fetches the badge catalog in its stable scan order.
func (s *BadgeService) LoadCatalog(ctx context.Context) ([]badge.Badge, error) {
	query := `
	SELECT id, name, description, icon, condition_type, threshold, category, sort_order, created_at
	FROM badges
	ORDER BY sort_order, id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badge catalog: %w", err)
	}
	defer rows.Close()

	var catalog []badge.Badge
	for rows.Next() {
		var b badge.Badge
		err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.ConditionType, &b.Threshold, &b.Category, &b.SortOrder, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		catalog = append(catalog, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badge catalog: %w", err)
	}

	return catalog, nil
}

// GetLifetimeStats aggregates all of a user's progress records, including the
// per-category completion counts via the challenge join.
func (s *BadgeService) GetLifetimeStats(ctx context.Context, userID uuid.UUID) (badge.LifetimeStats, error) {
	stats := badge.LifetimeStats{CompletionsByCategory: make(map[string]int)}

	query := `
	SELECT
		COALESCE(SUM(total_completions), 0),
		COALESCE(MAX(max_streak_count), 0),
		COALESCE(SUM(score), 0),
		COUNT(*)
	FROM progress
	WHERE user_id = $1
	`

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&stats.TotalCompletions,
		&stats.MaxStreak,
		&stats.TotalScore,
		&stats.TotalChallenges,
	)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate progress: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM progress_completions pc
		 JOIN progress p ON p.id = pc.progress_id
		 WHERE p.user_id = $1`,
		userID).Scan(&stats.TotalActiveDays)
	if err != nil {
		return stats, fmt.Errorf("failed to count active days: %w", err)
	}

	categoryQuery := `
	SELECT c.category, COALESCE(SUM(p.total_completions), 0)
	FROM progress p
	JOIN challenges c ON c.id = p.challenge_id
	WHERE p.user_id = $1
	GROUP BY c.category
	`

	rows, err := s.db.Query(ctx, categoryQuery, userID)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate category completions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var completions int
		if err := rows.Scan(&category, &completions); err != nil {
			return stats, fmt.Errorf("failed to scan category completions: %w", err)
		}
		stats.CompletionsByCategory[category] = completions
	}

	if err = rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating category completions: %w", err)
	}

	return stats, nil
}

// EvaluateUser runs one badge evaluation pass for the user against the stored
// catalog, then reclassifies their grade from the new badge count.
func (s *BadgeService) EvaluateUser(ctx context.Context, userID uuid.UUID) (*EvaluationResult, error) {
	catalog, err := s.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.EvaluateUserWithCatalog(ctx, userID, catalog)
}

// EvaluateUserWithCatalog is EvaluateUser with an injected catalog, scanned
// in the given order. Newly met badges are granted append-only; free
// representative slots are auto-filled in scan order, never reordered.
func (s *BadgeService) EvaluateUserWithCatalog(ctx context.Context, userID uuid.UUID, catalog []badge.Badge) (*EvaluationResult, error) {
	stats, err := s.GetLifetimeStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	earned := make(map[uuid.UUID]bool)
	rows, err := s.db.Query(ctx, `SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earned badges: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		earned[id] = true
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earned badges: %w", err)
	}

	newly := badge.Evaluate(catalog, earned, stats)

	// Manually pinned slots may hold sparse orders, so auto-fill targets
	// the first unused order rather than count+1.
	usedOrders := make(map[int]bool)
	orderRows, err := s.db.Query(ctx,
		`SELECT display_order FROM representative_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch representative badge orders: %w", err)
	}
	for orderRows.Next() {
		var order int
		if err := orderRows.Scan(&order); err != nil {
			orderRows.Close()
			return nil, fmt.Errorf("failed to scan representative badge order: %w", err)
		}
		usedOrders[order] = true
	}
	orderRows.Close()
	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating representative badge orders: %w", err)
	}

	for _, b := range newly {
		result, err := s.db.Exec(ctx,
			`INSERT INTO user_badges (id, user_id, badge_id, earned_at) VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (user_id, badge_id) DO NOTHING`,
			uuid.New(), userID, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to grant badge %s: %w", b.Name, err)
		}
		if result.RowsAffected() == 0 {
			// A concurrent evaluation got here first.
			continue
		}

		if slot := nextFreeDisplayOrder(usedOrders); slot != 0 {
			tag, err := s.db.Exec(ctx,
				`INSERT INTO representative_badges (user_id, badge_id, display_order) VALUES ($1, $2, $3)
				 ON CONFLICT DO NOTHING`,
				userID, b.ID, slot)
			if err != nil {
				return nil, fmt.Errorf("failed to auto-fill representative badge: %w", err)
			}
			if tag.RowsAffected() > 0 {
				usedOrders[slot] = true
			}
		}
	}

	result := &EvaluationResult{NewlyEarned: newly}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_badges WHERE user_id = $1`, userID,
	).Scan(&result.TotalBadges)
	if err != nil {
		return nil, fmt.Errorf("failed to count badges: %w", err)
	}

	result.Grade = grade.ForBadgeCount(result.TotalBadges)
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET grade = $2, updated_at = NOW() WHERE id = $1 AND grade <> $2`,
		userID, result.Grade)
	if err != nil {
		return nil, fmt.Errorf("failed to update grade: %w", err)
	}
	result.Promoted = tag.RowsAffected() > 0

	return result, nil
}

// GetBadgesWithStatus returns the whole catalog annotated with the caller's
// unlock state, earned first.
func (s *BadgeService) GetBadgesWithStatus(ctx context.Context, clerkID string) ([]*badge.BadgeWithStatus, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	query := `
	SELECT
		b.id, b.name, b.description, b.icon, b.condition_type, b.threshold, b.category, b.sort_order, b.created_at,
		CASE WHEN ub.id IS NOT NULL THEN true ELSE false END as earned,
		ub.earned_at
	FROM badges b
	LEFT JOIN user_badges ub ON b.id = ub.badge_id AND ub.user_id = $1
	ORDER BY earned DESC, b.sort_order, b.id
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.BadgeWithStatus
	for rows.Next() {
		b := &badge.BadgeWithStatus{}
		err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Icon,
			&b.ConditionType,
			&b.Threshold,
			&b.Category,
			&b.SortOrder,
			&b.CreatedAt,
			&b.Earned,
			&b.EarnedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	return badges, nil
}

// nextFreeDisplayOrder returns the lowest unused representative slot, or 0
// when all slots are taken.
func nextFreeDisplayOrder(used map[int]bool) int {
	for order := 1; order <= badge.MaxRepresentative; order++ {
		if !used[order] {
			return order
		}
	}
	return 0
}
