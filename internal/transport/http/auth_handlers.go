package http

import "net/http"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message string `json:"message"`
	User    any    `json:"user"`
}

func (a *API) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid JSON body"})
		return
	}
	if err := a.auth.Register(r.Context(), req.Username, req.Password); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

func (a *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid JSON body"})
		return
	}
	session, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", User: session})
}

func (a *API) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context(), a.sessionToken(r)); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (a *API) HandleProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session)
}
