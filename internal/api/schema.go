package api

import (
	"net/http"

	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/schema"
)

type schemaResponse struct {
	Fingerprint string        `json:"fingerprint"`
	Tables      schema.Schema `json:"tables"`
}

type questionsResponse struct {
	Fingerprint string   `json:"fingerprint"`
	Questions   []string `json:"questions"`
	Error       string   `json:"error,omitempty"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependencies are not configured", nil)
		return
	}
	if !requireRole(w, r, auth.RoleQueryReader) {
		return
	}
	current, err := deps.Schemas.Describe(r.Context())
	if err != nil {
		writeKindError(r.Context(), w, err, nil)
		return
	}
	if current == nil {
		current = schema.Schema{}
	}
	writeJSON(w, http.StatusOK, schemaResponse{Fingerprint: current.Fingerprint(), Tables: current})
}

func handleQuestions(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil || deps.Suggester == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SUGGEST_NOT_CONFIGURED", "question suggestion is not configured", nil)
		return
	}
	if !requireRole(w, r, auth.RoleQueryReader) {
		return
	}
	current, err := deps.Schemas.Describe(r.Context())
	if err != nil {
		writeKindError(r.Context(), w, err, nil)
		return
	}

	state, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}
	questions, err := deps.Suggester.Suggest(r.Context(), state.Questions, current)
	response := questionsResponse{Fingerprint: current.Fingerprint(), Questions: questions}
	if err != nil {
		snapshot := state.Questions.Snapshot()
		response.Fingerprint = snapshot.Fingerprint
		response.Questions = snapshot.Questions
		response.Error = errs.Cause(err)
		deps.Logger.WarnContext(r.Context(), "question suggestion failed", "suggestion_count", cfg.AI.SuggestionCount, "error", err)
	}
	if response.Questions == nil {
		response.Questions = []string{}
	}
	writeJSON(w, http.StatusOK, response)
}
