package http

import (
	"errors"
	"net/http"
	"time"

	"setlist-quiz-service/internal/domain"
)

type statusResponse struct {
	Status  domain.State `json:"status"`
	OpensOn string       `json:"opensOn,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

type scoreResponse struct {
	Score *int `json:"score"`
}

type scoringWindowResponse struct {
	Message        string `json:"message"`
	ScoringOpensAt string `json:"scoringOpensAt"`
}

type leaderboardResponse struct {
	Slug   string                    `json:"shortId"`
	QuizID int64                     `json:"quizId"`
	Top5   []domain.LeaderboardEntry `json:"top5"`
}

func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	status, err := a.quizzes.ResolveStatus(r.Context(), r.PathValue("slug"), session.UserID)
	if err != nil {
		if status.State == domain.StateUnknown && errors.Is(err, domain.ErrStoreFailure) {
			a.log.Error("status check failed", "quiz", r.PathValue("slug"), "user", session.UserID, "error", err)
			writeJSON(w, http.StatusInternalServerError, statusResponse{Status: status.State, Reason: status.Reason})
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	resp := statusResponse{Status: status.State}
	if status.State == domain.StateNotOpenYet {
		resp.OpensOn = status.OpensOn.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	var answers domain.Answers
	if err := decodeJSON(r, &answers); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid JSON body"})
		return
	}
	if _, err := a.quizzes.Submit(r.Context(), r.PathValue("slug"), session.UserID, answers); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Guesses Received"})
}

func (a *API) HandleScore(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	score, err := a.quizzes.UserScore(r.Context(), r.PathValue("slug"), session.UserID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score: score})
}

func (a *API) HandleResults(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	results, err := a.quizzes.Results(r.Context(), r.PathValue("slug"), session.UserID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) HandleComputeScores(w http.ResponseWriter, r *http.Request) {
	if !a.adminAllowed(r) {
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "admin token required"})
		return
	}
	slug := r.PathValue("slug")
	report, err := a.quizzes.ComputeScores(r.Context(), slug, parseBoolParam(r, "force"))
	if err != nil {
		var windowErr *domain.ScoringWindowError
		if errors.As(err, &windowErr) {
			opensAt := windowErr.OpensAt
			if cfg, ok := a.quizzes.Registry().Lookup(slug); ok {
				opensAt = opensAt.In(cfg.Location)
			}
			writeJSON(w, http.StatusBadRequest, scoringWindowResponse{
				Message:        "Scoring window not open yet",
				ScoringOpensAt: opensAt.Format(time.RFC3339),
			})
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	cfg, entries, err := a.quizzes.Leaderboard(r.Context(), r.PathValue("slug"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Slug: cfg.Slug, QuizID: cfg.QuizID, Top5: entries})
}

func (a *API) HandleQuizzes(w http.ResponseWriter, r *http.Request) {
	list, err := a.quizzes.ListQuizzes(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
