package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"crewUpAPI/middleware"
	"crewUpAPI/services"
)

type ProgressHandler struct {
	progressService *services.ProgressService
}

func NewProgressHandler(progressService *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

func (h *ProgressHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	rec, err := h.progressService.JoinChallenge(ctx, clerkID, challengeID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrChallengeNotFound):
			respondWithError(w, http.StatusNotFound, "Challenge not found")
		case errors.Is(err, services.ErrChallengeFull):
			respondWithError(w, http.StatusConflict, "Challenge is full")
		case errors.Is(err, services.ErrAlreadyJoined):
			respondWithError(w, http.StatusConflict, "Challenge already joined")
		default:
			log.Printf("JoinChallenge Handler: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to join challenge")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, rec)
}

func (h *ProgressHandler) LeaveChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	if err := h.progressService.LeaveChallenge(ctx, clerkID, challengeID); err != nil {
		if errors.Is(err, services.ErrNotJoined) {
			respondWithError(w, http.StatusNotFound, "Challenge not joined")
			return
		}
		log.Printf("LeaveChallenge Handler: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to leave challenge")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Left challenge"})
}

type completeChallengeRequest struct {
	PhotoURL *string `json:"photoUrl,omitempty"`
}

// CompleteChallenge records today's completion. A second call on the same
// UTC day gets a 409; the photo reference from the rejected call is never
// stored.
func (h *ProgressHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	var req completeChallengeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.progressService.CompleteChallenge(ctx, clerkID, challengeID, req.PhotoURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrNotJoined):
			respondWithError(w, http.StatusNotFound, "Challenge not joined")
		case errors.Is(err, services.ErrAlreadyCompletedToday):
			respondWithError(w, http.StatusConflict, "Challenge already completed today")
		default:
			log.Printf("CompleteChallenge Handler: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to record completion")
		}
		return
	}

	middleware.RecordCompletion(result.CurrentStreakCount)
	if n := len(result.NewlyEarnedBadges); n > 0 {
		middleware.RecordBadgesAwarded(n)
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProgressHandler) GetMyProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	rec, err := h.progressService.GetProgress(ctx, clerkID, challengeID)
	if err != nil {
		if errors.Is(err, services.ErrNotJoined) {
			respondWithError(w, http.StatusNotFound, "Challenge not joined")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load progress")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

func (h *ProgressHandler) GetMyChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	records, err := h.progressService.GetUserProgress(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load progress")
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}
