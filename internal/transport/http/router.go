package http

import (
	"log/slog"
	"net/http"
	"time"

	"setlist-quiz-service/internal/app"
)

func NewRouter(quizzes *app.QuizService, auth *app.AuthService, stats *app.StatsService, opts Options) http.Handler {
	api := NewAPI(quizzes, auth, stats, opts)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /register", api.HandleRegister)
	mux.HandleFunc("POST /login", api.HandleLogin)
	mux.HandleFunc("POST /logout", api.HandleLogout)
	mux.HandleFunc("GET /profile", api.HandleProfile)

	mux.HandleFunc("GET /quiz/{slug}/status", api.HandleStatus)
	mux.HandleFunc("POST /quiz/{slug}/submit", api.HandleSubmit)
	mux.HandleFunc("GET /quiz/{slug}/score", api.HandleScore)
	mux.HandleFunc("GET /quiz/{slug}/results", api.HandleResults)
	mux.HandleFunc("POST /quiz/{slug}/compute-scores", api.HandleComputeScores)
	mux.HandleFunc("GET /leaderboard/{slug}", api.HandleLeaderboard)

	mux.HandleFunc("GET /api/quizzes", api.HandleQuizzes)
	mux.HandleFunc("GET /api/orstats", api.HandleAnswerDistribution)
	mux.HandleFunc("GET /api/top-guessed-songs", api.HandleTopGuessedSongs)
	mux.HandleFunc("GET /api/top5songs", api.HandleMostPlayedSongs)
	mux.HandleFunc("GET /api/album-distribution", api.HandleAlbumDistribution)
	mux.HandleFunc("GET /api/cities", api.HandleCities)
	mux.HandleFunc("GET /api/songs-by-city", api.HandleSongsByCity)
	mux.HandleFunc("GET /api/unplayed-songs", api.HandleUnplayedSongs)

	return withLogging(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
