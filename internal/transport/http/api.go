package http

import (
	"log/slog"
	"time"

	"setlist-quiz-service/internal/app"
)

const defaultCookieName = "quiz_session"

// Options tune the HTTP surface. A blank AdminToken leaves compute-scores open.
type Options struct {
	AdminToken string
	CookieName string
	SessionTTL time.Duration
}

// API holds the services behind the HTTP handlers.
type API struct {
	quizzes *app.QuizService
	auth    *app.AuthService
	stats   *app.StatsService
	opts    Options
	log     *slog.Logger
}

func NewAPI(quizzes *app.QuizService, auth *app.AuthService, stats *app.StatsService, opts Options) *API {
	if opts.CookieName == "" {
		opts.CookieName = defaultCookieName
	}
	return &API{
		quizzes: quizzes,
		auth:    auth,
		stats:   stats,
		opts:    opts,
		log:     slog.Default().With("component", "http"),
	}
}
