package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewUpAPI/internal/notification"
	"crewUpAPI/internal/progress"
)

// streakMilestones are the current-streak values that trigger a
// streak_milestone notification.
var streakMilestones = map[int]bool{3: true, 7: true, 14: true, 30: true, 50: true, 100: true}

type ProgressService struct {
	db            *pgxpool.Pool
	badges        *BadgeService
	challenges    *ChallengeService
	notifications *NotificationService
}

func NewProgressService(db *pgxpool.Pool, badges *BadgeService, challenges *ChallengeService, notifications *NotificationService) *ProgressService {
	return &ProgressService{
		db:            db,
		badges:        badges,
		challenges:    challenges,
		notifications: notifications,
	}
}

// JoinChallenge creates the progress record for (user, challenge). The
// challenge row is locked so the capacity check can't be raced past.
func (s *ProgressService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*progress.Record, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxParticipants int
	err = tx.QueryRow(ctx,
		`SELECT max_participants FROM challenges WHERE id = $1 FOR UPDATE`,
		challengeID).Scan(&maxParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to lock challenge: %w", err)
	}

	var participants int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM progress WHERE challenge_id = $1`, challengeID,
	).Scan(&participants)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if participants >= maxParticipants {
		return nil, ErrChallengeFull
	}

	query := `
	INSERT INTO progress (id, user_id, challenge_id, start_date, created_at, updated_at)
	VALUES ($1, $2, $3, NOW(), NOW(), NOW())
	ON CONFLICT (user_id, challenge_id) DO NOTHING
	RETURNING id, user_id, challenge_id, start_date, total_completions, score, current_streak_count, max_streak_count, last_completion_date, created_at, updated_at
	`

	rec := &progress.Record{}
	err = tx.QueryRow(ctx, query, uuid.New(), userID, challengeID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ChallengeID,
		&rec.StartDate,
		&rec.TotalCompletions,
		&rec.Score,
		&rec.CurrentStreakCount,
		&rec.MaxStreakCount,
		&rec.LastCompletionDate,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyJoined
		}
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	return rec, nil
}

// LeaveChallenge deletes the progress record; completion rows cascade away
// with it.
func (s *ProgressService) LeaveChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM progress
		 WHERE challenge_id = $2 AND user_id = (SELECT id FROM users WHERE clerk_id = $1)`,
		clerkID, challengeID)
	if err != nil {
		return fmt.Errorf("failed to leave challenge: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotJoined
	}

	// Best-effort: the departed record should stop counting toward the rate.
	if _, err := s.challenges.RecalculateCompletionRate(ctx, challengeID); err != nil {
		log.Printf("LeaveChallenge: completion rate recompute failed for %s: %v", challengeID, err)
	}

	return nil
}

// CompleteChallenge records one completion for today (UTC) on the caller's
// progress record. The record mutation is a single transaction; the derived
// cascade (trust score, badges, grade, completion rate) runs after commit and
// is best-effort: a cascade failure is logged, never rolled back, and heals
// on the next write.
func (s *ProgressService) CompleteChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID, photoURL *string) (*progress.CompletionResult, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	today := progress.Today()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the record: concurrent completions for the same key serialize
	// here, and the (progress_id, completed_date) unique index makes the
	// same-day duplicate lose even if it got past the lock.
	rec := &progress.Record{}
	err = tx.QueryRow(ctx,
		`SELECT id, user_id, challenge_id, start_date, total_completions, score, current_streak_count, max_streak_count, last_completion_date, created_at, updated_at
		 FROM progress
		 WHERE user_id = $1 AND challenge_id = $2
		 FOR UPDATE`,
		userID, challengeID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ChallengeID,
		&rec.StartDate,
		&rec.TotalCompletions,
		&rec.Score,
		&rec.CurrentStreakCount,
		&rec.MaxStreakCount,
		&rec.LastCompletionDate,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("failed to lock progress record: %w", err)
	}

	inserted, err := tx.Exec(ctx,
		`INSERT INTO progress_completions (progress_id, completed_date, photo_url)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (progress_id, completed_date) DO NOTHING`,
		rec.ID, today, photoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}
	if inserted.RowsAffected() == 0 {
		return nil, ErrAlreadyCompletedToday
	}

	currentStreak, maxStreak := progress.NextStreak(
		rec.CurrentStreakCount, rec.MaxStreakCount, rec.LastCompletionDate, today)

	err = tx.QueryRow(ctx,
		`UPDATE progress
		 SET total_completions = total_completions + 1,
		     score = score + $2,
		     current_streak_count = $3,
		     max_streak_count = $4,
		     last_completion_date = $5,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING total_completions, score`,
		rec.ID, progress.CompletionScore, currentStreak, maxStreak, today,
	).Scan(&rec.TotalCompletions, &rec.Score)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", err)
	}

	result := &progress.CompletionResult{
		Score:              rec.Score,
		TotalCompletions:   rec.TotalCompletions,
		CurrentStreakCount: currentStreak,
		MaxStreakCount:     maxStreak,
		CompletedDate:      today,
	}

	// Cascade. Each stage is guarded on its own so one failure doesn't stop
	// the others.
	result.TrustScoreIncrease = progress.TrustIncrease(currentStreak)
	trustScore, err := s.applyTrust(ctx, userID, result.TrustScoreIncrease)
	if err != nil {
		log.Printf("CompleteChallenge: trust score update failed for %s: %v", userID, err)
		result.TrustScoreIncrease = 0
	}
	result.TrustScore = trustScore

	eval, err := s.badges.EvaluateUser(ctx, userID)
	if err != nil {
		log.Printf("CompleteChallenge: badge evaluation failed for %s: %v", userID, err)
		eval = nil
	}
	if eval != nil {
		result.TotalBadges = eval.TotalBadges
		result.Grade = eval.Grade
		result.NewlyEarnedBadges = eval.NewlyEarned
	} else if err := s.db.QueryRow(ctx,
		`SELECT u.grade, (SELECT COUNT(*) FROM user_badges WHERE user_id = u.id) FROM users u WHERE u.id = $1`,
		userID).Scan(&result.Grade, &result.TotalBadges); err != nil {
		log.Printf("CompleteChallenge: grade fallback read failed for %s: %v", userID, err)
	}

	if _, err := s.challenges.RecalculateCompletionRate(ctx, challengeID); err != nil {
		log.Printf("CompleteChallenge: completion rate recompute failed for %s: %v", challengeID, err)
	}

	s.notifyCompletion(ctx, userID, currentStreak, eval)

	return result, nil
}

func (s *ProgressService) applyTrust(ctx context.Context, userID uuid.UUID, increase float64) (float64, error) {
	var trustScore float64
	err := s.db.QueryRow(ctx,
		`UPDATE users SET trust_score = LEAST(100, trust_score + $2), updated_at = NOW()
		 WHERE id = $1
		 RETURNING trust_score`,
		userID, increase).Scan(&trustScore)
	if err != nil {
		return 0, err
	}
	return trustScore, nil
}

// notifyCompletion emits the best-effort gamification notifications for one
// completion. Failures are logged and swallowed like the rest of the cascade.
func (s *ProgressService) notifyCompletion(ctx context.Context, userID uuid.UUID, currentStreak int, eval *EvaluationResult) {
	if s.notifications == nil {
		return
	}

	if streakMilestones[currentStreak] {
		_, err := s.notifications.CreateNotification(ctx, &notification.CreateNotificationRequest{
			UserID:  userID,
			Type:    notification.NotificationStreakMilestone,
			Title:   "Streak milestone!",
			Message: fmt.Sprintf("You're on a %d-day streak. Keep it going!", currentStreak),
			Data:    map[string]any{"streak": currentStreak},
		})
		if err != nil {
			log.Printf("notifyCompletion: streak milestone notification failed for %s: %v", userID, err)
		}
	}

	if eval == nil {
		return
	}

	for _, b := range eval.NewlyEarned {
		_, err := s.notifications.CreateNotification(ctx, &notification.CreateNotificationRequest{
			UserID:  userID,
			Type:    notification.NotificationBadgeEarned,
			Title:   "Badge earned!",
			Message: fmt.Sprintf("You earned the %q badge.", b.Name),
			Data:    map[string]any{"badge_id": b.ID.String(), "badge_name": b.Name},
		})
		if err != nil {
			log.Printf("notifyCompletion: badge notification failed for %s: %v", userID, err)
		}
	}

	if eval.Promoted {
		_, err := s.notifications.CreateNotification(ctx, &notification.CreateNotificationRequest{
			UserID:  userID,
			Type:    notification.NotificationGradePromoted,
			Title:   "Grade up!",
			Message: fmt.Sprintf("You've been promoted to %s.", eval.Grade),
			Data:    map[string]any{"grade": string(eval.Grade)},
		})
		if err != nil {
			log.Printf("notifyCompletion: grade notification failed for %s: %v", userID, err)
		}
	}
}

// GetProgress returns the caller's record for one challenge with its full
// completion history.
func (s *ProgressService) GetProgress(ctx context.Context, clerkID string, challengeID uuid.UUID) (*progress.RecordWithCompletions, error) {
	rec := &progress.RecordWithCompletions{}
	err := s.db.QueryRow(ctx,
		`SELECT p.id, p.user_id, p.challenge_id, p.start_date, p.total_completions, p.score, p.current_streak_count, p.max_streak_count, p.last_completion_date, p.created_at, p.updated_at
		 FROM progress p
		 JOIN users u ON u.id = p.user_id
		 WHERE u.clerk_id = $1 AND p.challenge_id = $2`,
		clerkID, challengeID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ChallengeID,
		&rec.StartDate,
		&rec.TotalCompletions,
		&rec.Score,
		&rec.CurrentStreakCount,
		&rec.MaxStreakCount,
		&rec.LastCompletionDate,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotJoined
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT completed_date, photo_url FROM progress_completions
		 WHERE progress_id = $1
		 ORDER BY completed_date`,
		rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c progress.Completion
		if err := rows.Scan(&c.CompletedDate, &c.PhotoURL); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		rec.Completions = append(rec.Completions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}

	return rec, nil
}

// GetUserProgress lists all of the caller's progress records.
func (s *ProgressService) GetUserProgress(ctx context.Context, clerkID string) ([]*progress.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.user_id, p.challenge_id, p.start_date, p.total_completions, p.score, p.current_streak_count, p.max_streak_count, p.last_completion_date, p.created_at, p.updated_at
		 FROM progress p
		 JOIN users u ON u.id = p.user_id
		 WHERE u.clerk_id = $1
		 ORDER BY p.created_at DESC`,
		clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user progress: %w", err)
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		rec := &progress.Record{}
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.ChallengeID,
			&rec.StartDate,
			&rec.TotalCompletions,
			&rec.Score,
			&rec.CurrentStreakCount,
			&rec.MaxStreakCount,
			&rec.LastCompletionDate,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress records: %w", err)
	}

	return records, nil
}
