package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"crewUpAPI/internal/challenge"
	"crewUpAPI/internal/user"
)

// setupTestDB connects to the test database or skips the test when no
// database is configured. Tests that use it exercise the real SQL paths.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping database test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "failed to ping test database")

	t.Cleanup(func() {
		_, err := pool.Exec(context.Background(),
			"DELETE FROM users WHERE clerk_id LIKE 'user_crewuptest_%'")
		if err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
		pool.Close()
	})

	return pool
}

// newTestUser inserts a fresh user through the service layer and returns it.
// Clerk IDs carry a shared prefix so cleanup can find everything.
func newTestUser(t *testing.T, svc *UserService, tag string) *user.User {
	t.Helper()

	clerkID := fmt.Sprintf("user_crewuptest_%s_%d_%s", tag, time.Now().UnixNano(), uuid.NewString()[:8])
	u, err := svc.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     fmt.Sprintf("%s@example.com", clerkID),
		Username:  tag + uuid.NewString()[:8],
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return u
}

func newTestChallenge(t *testing.T, svc *ChallengeService, clerkID string, maxParticipants int) *challenge.Challenge {
	t.Helper()

	c, err := svc.CreateChallenge(context.Background(), clerkID, &challenge.CreateChallengeRequest{
		Title:           "Test challenge " + uuid.NewString()[:8],
		Description:     "integration test fixture",
		Category:        challenge.CategoryFitness,
		MaxParticipants: maxParticipants,
	})
	require.NoError(t, err)
	return c
}
