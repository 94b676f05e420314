package http

import (
	"net/http"
	"strings"
)

func (a *API) HandleAnswerDistribution(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	counts, err := a.stats.AnswerDistribution(r.Context(), question)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) HandleTopGuessedSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := a.stats.TopGuessedSongs(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (a *API) HandleMostPlayedSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := a.stats.MostPlayedSongs(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (a *API) HandleAlbumDistribution(w http.ResponseWriter, r *http.Request) {
	albums, err := a.stats.AlbumDistribution(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

func (a *API) HandleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := a.stats.Cities(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (a *API) HandleSongsByCity(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "city is required"})
		return
	}
	songs, err := a.stats.SongsByCity(r.Context(), city)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (a *API) HandleUnplayedSongs(w http.ResponseWriter, r *http.Request) {
	album := strings.TrimSpace(r.URL.Query().Get("album"))
	if album == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "album is required"})
		return
	}
	songs, err := a.stats.UnplayedSongs(r.Context(), album)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}
