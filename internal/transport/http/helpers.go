package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"setlist-quiz-service/internal/domain"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeServiceError maps domain errors to status codes. ErrFormNotOpen is checked
// before the store-failure default because a submit that could not resolve its
// status reports both.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Quiz not found"})
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Not logged in"})
	case errors.Is(err, domain.ErrInvalidPassword):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Invalid password"})
	case errors.Is(err, domain.ErrFormNotOpen):
		if errors.Is(err, domain.ErrStoreFailure) {
			a.log.Error("status check failed during submit", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Form not open"})
	case errors.Is(err, domain.ErrAlreadySubmitted):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Already submitted"})
	case errors.Is(err, domain.ErrScoringDisabled),
		errors.Is(err, domain.ErrNoAnswerKey),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: capitalize(errorMessage(err))})
	default:
		a.log.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "DB error"})
	}
}

// errorMessage returns the sentinel text without the wrapping context.
func errorMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrScoringDisabled,
		domain.ErrNoAnswerKey,
		domain.ErrInvalidQuestion,
		domain.ErrInvalidCredentials,
		domain.ErrPasswordTooLong,
		domain.ErrUsernameTaken,
		domain.ErrUserNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (a *API) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(a.opts.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// requireSession writes a 401 (or 500) and returns false when the caller has no valid session.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	session, err := a.auth.Authenticate(r.Context(), a.sessionToken(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return domain.Session{}, false
	}
	return session, true
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     a.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if a.opts.SessionTTL > 0 {
		cookie.MaxAge = int(a.opts.SessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (a *API) adminAllowed(r *http.Request) bool {
	if a.opts.AdminToken == "" {
		return true
	}
	got := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.opts.AdminToken)) == 1
}

func parseBoolParam(r *http.Request, key string) bool {
	raw := strings.TrimSpace(strings.ToLower(r.URL.Query().Get(key)))
	if raw == "yes" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
