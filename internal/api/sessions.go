package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/datachat/datachat/internal/auth"
)

type sessionResponse struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleDataWriter) {
		return
	}
	state := deps.Sessions.Create()
	w.Header().Set(sessionHeader, state.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: state.ID, CreatedAt: state.CreatedAt.Format(time.RFC3339)})
}

func handleEndSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleDataWriter) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if !deps.Sessions.End(id) {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", map[string]any{"session_id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
