package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewUpAPI/internal/challenge"
	"crewUpAPI/internal/progress"
)

type ChallengeService struct {
	db *pgxpool.Pool

	// rateWindowDays caps the possible-days denominator of the completion
	// rate. Defaults to progress.DefaultRateWindowDays.
	rateWindowDays int
}

func NewChallengeService(db *pgxpool.Pool) *ChallengeService {
	return &ChallengeService{
		db:             db,
		rateWindowDays: progress.DefaultRateWindowDays,
	}
}

// SetRateWindowDays overrides the completion-rate denominator cap.
func (s *ChallengeService) SetRateWindowDays(days int) {
	if days > 0 {
		s.rateWindowDays = days
	}
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	if req.Title == "" || !challenge.ValidCategory(req.Category) || req.MaxParticipants < 1 {
		return nil, fmt.Errorf("invalid challenge request")
	}

	var creatorID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	query := `
	INSERT INTO challenges (id, title, description, category, max_participants, created_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	RETURNING id, title, description, category, max_participants, completion_rate, created_by, created_at, updated_at
	`

	c := &challenge.Challenge{}
	err = s.db.QueryRow(
		ctx,
		query,
		uuid.New(),
		req.Title,
		req.Description,
		req.Category,
		req.MaxParticipants,
		creatorID,
	).Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.MaxParticipants,
		&c.CompletionRate,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	return c, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.ChallengeWithParticipants, error) {
	query := `
	SELECT
		c.id, c.title, c.description, c.category, c.max_participants, c.completion_rate, c.created_by, c.created_at, c.updated_at,
		COUNT(p.id) AS participant_count,
		BOOL_OR(u.clerk_id = $2) AS joined
	FROM challenges c
	LEFT JOIN progress p ON p.challenge_id = c.id
	LEFT JOIN users u ON u.id = p.user_id
	WHERE c.id = $1
	GROUP BY c.id
	`

	c := &challenge.ChallengeWithParticipants{}
	var joined *bool
	err := s.db.QueryRow(ctx, query, challengeID, clerkID).Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.MaxParticipants,
		&c.CompletionRate,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ParticipantCount,
		&joined,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	c.Joined = joined != nil && *joined
	return c, nil
}

// ListChallenges pages through the catalog, newest first. clerkID may be
// empty for anonymous callers; when set, Joined is filled in per challenge.
func (s *ChallengeService) ListChallenges(ctx context.Context, clerkID string, category challenge.Category, page, limit int) ([]*challenge.ChallengeWithParticipants, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `
	SELECT
		c.id, c.title, c.description, c.category, c.max_participants, c.completion_rate, c.created_by, c.created_at, c.updated_at,
		COUNT(p.id) AS participant_count,
		COALESCE(BOOL_OR(u.clerk_id = $4), false) AS joined
	FROM challenges c
	LEFT JOIN progress p ON p.challenge_id = c.id
	LEFT JOIN users u ON u.id = p.user_id
	WHERE ($1 = '' OR c.category = $1)
	GROUP BY c.id
	ORDER BY c.created_at DESC, c.id
	LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, string(category), limit, (page-1)*limit, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.ChallengeWithParticipants
	for rows.Next() {
		c := &challenge.ChallengeWithParticipants{}
		err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Description,
			&c.Category,
			&c.MaxParticipants,
			&c.CompletionRate,
			&c.CreatedBy,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.ParticipantCount,
			&c.Joined,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	return challenges, nil
}

// RecalculateCompletionRate recomputes the challenge's completion rate from
// scratch over all of its progress records and stores it. Full recompute:
// participant counts are small and correctness beats efficiency here.
func (s *ChallengeService) RecalculateCompletionRate(ctx context.Context, challengeID uuid.UUID) (int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT start_date, total_completions FROM progress WHERE challenge_id = $1`,
		challengeID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch progress records: %w", err)
	}
	defer rows.Close()

	var records []progress.RateInput
	for rows.Next() {
		var r progress.RateInput
		if err := rows.Scan(&r.StartDate, &r.TotalCompletions); err != nil {
			return 0, fmt.Errorf("failed to scan progress record: %w", err)
		}
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating progress records: %w", err)
	}

	rate := progress.CompletionRate(records, s.rateWindowDays, time.Now())

	tag, err := s.db.Exec(ctx,
		`UPDATE challenges SET completion_rate = $2, updated_at = NOW() WHERE id = $1`,
		challengeID, rate)
	if err != nil {
		return 0, fmt.Errorf("failed to store completion rate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrChallengeNotFound
	}

	return rate, nil
}
