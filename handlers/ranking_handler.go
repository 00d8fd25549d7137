package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"crewUpAPI/internal/ranking"
	"crewUpAPI/middleware"
	"crewUpAPI/services"
)

type RankingHandler struct {
	rankingService *services.RankingService
}

func NewRankingHandler(rankingService *services.RankingService) *RankingHandler {
	return &RankingHandler{rankingService: rankingService}
}

func (h *RankingHandler) GetGlobalRanking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	metric, ok := ranking.ParseMetric(r.URL.Query().Get("metric"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "metric must be one of score, completions, streak")
		return
	}

	page, limit := paginationParams(r)
	result, err := h.rankingService.GetGlobalRanking(ctx, metric, page, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load ranking")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *RankingHandler) GetChallengeRanking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	metric, ok := ranking.ParseMetric(r.URL.Query().Get("metric"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "metric must be one of score, completions, streak")
		return
	}

	page, limit := paginationParams(r)
	result, err := h.rankingService.GetChallengeRanking(ctx, challengeID, metric, page, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load ranking")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetMyRank returns the caller's rank and percentile: within one challenge
// when challengeId is given, otherwise over the global ranking.
func (h *RankingHandler) GetMyRank(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	metric, ok := ranking.ParseMetric(r.URL.Query().Get("metric"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "metric must be one of score, completions, streak")
		return
	}

	var (
		result *ranking.MyRank
		err    error
	)
	if raw := r.URL.Query().Get("challengeId"); raw != "" {
		challengeID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
			return
		}
		result, err = h.rankingService.GetMyChallengeRank(ctx, clerkID, challengeID, metric)
	} else {
		result, err = h.rankingService.GetMyGlobalRank(ctx, clerkID, metric)
	}

	if err != nil {
		if errors.Is(err, services.ErrNotJoined) {
			respondWithError(w, http.StatusNotFound, "No progress records for ranking")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to compute rank")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
