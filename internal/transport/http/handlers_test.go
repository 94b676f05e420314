package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"setlist-quiz-service/internal/app"
	"setlist-quiz-service/internal/domain"
	"setlist-quiz-service/internal/infra/memory"
)

type testEnv struct {
	handler http.Handler
}

func newTestEnv(t *testing.T, submissions app.SubmissionRepository, opts Options) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("America/Detroit")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	start := time.Date(2025, 11, 1, 19, 0, 0, 0, loc)
	registry, err := app.NewRegistry([]domain.QuizConfig{{
		Slug:           "detroit",
		QuizID:         24,
		Start:          start,
		Timezone:       "America/Detroit",
		Location:       loc,
		ScoringDelay:   3 * time.Hour,
		ScoringEnabled: true,
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	store := memory.NewStore()
	if submissions == nil {
		submissions = store
	}
	keys := memory.NewAnswerKeyRepository(memory.NewStaticAnswerKeyLoader(map[string]domain.AnswerKey{
		"detroit": {
			SingleChoice: map[string]domain.Choice{domain.Q1: {Values: []string{"Peach"}}},
			Surprise:     []string{"Dizzy", "Violet"},
		},
	}), time.Minute)

	now := start.Add(-time.Hour)
	clock := func() time.Time { return now }
	quizzes := app.NewQuizServiceWithClock(registry, submissions, keys, clock)
	auth := app.NewAuthService(store, memory.NewSessionStore(time.Hour)).WithHashCost(bcrypt.MinCost)
	stats := app.NewStatsServiceWithClock(registry, keys, store, nil, clock)

	return &testEnv{handler: NewRouter(quizzes, auth, stats, opts)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	creds := map[string]string{"username": username, "password": "secret"}
	if rec := e.do(t, http.MethodPost, "/register", creds, nil, nil); rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	rec := e.do(t, http.MethodPost, "/login", creds, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == defaultCookieName {
			return c
		}
	}
	t.Fatalf("login did not set a session cookie")
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestSubmitAndScoreFlow(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	if rec := env.do(t, http.MethodGet, "/quiz/detroit/status", nil, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}

	cookie := env.login(t, "alice")

	rec := env.do(t, http.MethodGet, "/quiz/detroit/status", nil, cookie, nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "open" {
		t.Fatalf("expected open status, got %d %s", rec.Code, rec.Body.String())
	}

	answers := map[string]string{"q1": " peach ", "q3": "dizzy", "q4": "Violet Moon"}
	rec = env.do(t, http.MethodPost, "/quiz/detroit/submit", answers, cookie, nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["message"] != "Guesses Received" {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/quiz/detroit/submit", answers, cookie, nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["message"] != "Already submitted" {
		t.Fatalf("second submit: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/quiz/detroit/status", nil, cookie, nil)
	if decodeBody(t, rec)["status"] != "submitted" {
		t.Fatalf("expected submitted status, got %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/quiz/detroit/score", nil, cookie, nil)
	if body := decodeBody(t, rec); body["score"] != nil {
		t.Fatalf("expected null score before scoring, got %v", body["score"])
	}

	rec = env.do(t, http.MethodPost, "/quiz/detroit/compute-scores", nil, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected window rejection, got %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["scoringOpensAt"]; got != "2025-11-01T22:00:00-04:00" {
		t.Fatalf("unexpected scoringOpensAt %v", got)
	}

	rec = env.do(t, http.MethodPost, "/quiz/detroit/compute-scores?force=1", nil, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forced scoring: %d %s", rec.Code, rec.Body.String())
	}
	if scored := decodeBody(t, rec)["scored"]; scored != float64(1) {
		t.Fatalf("expected one row scored, got %v", scored)
	}

	rec = env.do(t, http.MethodGet, "/quiz/detroit/score", nil, cookie, nil)
	if score := decodeBody(t, rec)["score"]; score != float64(5) {
		t.Fatalf("expected score 5, got %v", score)
	}

	rec = env.do(t, http.MethodGet, "/leaderboard/detroit", nil, nil, nil)
	body := decodeBody(t, rec)
	if body["shortId"] != "detroit" || body["quizId"] != float64(24) {
		t.Fatalf("unexpected leaderboard header %s", rec.Body.String())
	}
	board, _ := body["top5"].([]any)
	if len(board) != 1 {
		t.Fatalf("expected one leaderboard entry, got %s", rec.Body.String())
	}
}

func TestUnknownQuizIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	cookie := env.login(t, "bob")

	for _, path := range []string{"/quiz/atlantis/status", "/quiz/atlantis/score", "/leaderboard/atlantis"} {
		if rec := env.do(t, http.MethodGet, path, nil, cookie, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestComputeScoresRequiresAdminToken(t *testing.T) {
	env := newTestEnv(t, nil, Options{AdminToken: "s3cret"})

	if rec := env.do(t, http.MethodPost, "/quiz/detroit/compute-scores?force=1", nil, nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/quiz/detroit/compute-scores?force=1", nil, nil, map[string]string{"X-Admin-Token": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	creds := map[string]string{"username": "erin", "password": strings.Repeat("x", 80)}
	rec := env.do(t, http.MethodPost, "/register", creds, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Password must be at most 72 bytes" {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestAuthErrors(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.login(t, "carol")

	creds := map[string]string{"username": "carol", "password": "secret"}
	if rec := env.do(t, http.MethodPost, "/register", creds, nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: expected 400, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/register", map[string]string{"username": "dave"}, nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/login", map[string]string{"username": "nobody", "password": "x"}, nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown user: expected 400, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/login", map[string]string{"username": "carol", "password": "wrong"}, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	cookie := env.login(t, "erin")

	rec := env.do(t, http.MethodGet, "/profile", nil, cookie, nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["username"] != "erin" {
		t.Fatalf("profile: %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/logout", nil, cookie, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/profile", nil, cookie, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestStoreFailureIsNeverPermissive(t *testing.T) {
	failing := &failingStore{Store: memory.NewStore()}
	env := newTestEnv(t, failing, Options{})
	cookie := env.login(t, "frank")

	rec := env.do(t, http.MethodGet, "/quiz/detroit/status", nil, cookie, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "unknown" || body["reason"] != "DB error" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = env.do(t, http.MethodPost, "/quiz/detroit/submit", map[string]string{"q1": "Peach"}, cookie, nil)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["message"] != "Form not open" {
		t.Fatalf("submit on store failure: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	if rec := env.do(t, http.MethodGet, "/api/orstats?question=q3", nil, nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for surprise question, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/orstats?question=q1", nil, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for q1, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/unplayed-songs", nil, nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without album, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/quizzes", nil, nil, nil)
	var list []domain.QuizSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode quizzes: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Detroit" || list[0].Date != "11/1" {
		t.Fatalf("unexpected quiz list %+v", list)
	}
}

type failingStore struct {
	*memory.Store
}

func (f *failingStore) Exists(context.Context, int64, int64) (bool, error) {
	return false, domain.StoreError("check submission", errors.New("connection refused"))
}
