package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/export"
	"github.com/datachat/datachat/internal/pipeline"
	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/session"
)

type queryRequest struct {
	Question string `json:"question"`
}

type resultPayload struct {
	Question   string    `json:"question,omitempty"`
	SQL        string    `json:"sql"`
	Columns    []string  `json:"columns"`
	Rows       [][]any   `json:"rows"`
	RowCount   int       `json:"row_count"`
	Truncated  bool      `json:"truncated"`
	DurationMs int64     `json:"duration_ms"`
	RenderedAt time.Time `json:"rendered_at,omitzero"`
}

type queryResponse struct {
	State    string `json:"state"`
	Response string `json:"response"`
	Empty    bool   `json:"empty"`
	Message  string `json:"message,omitempty"`
	resultPayload
}

func handleQuery(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", nil)
		return
	}
	if !requireRole(w, r, auth.RoleQueryReader) {
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", nil)
		return
	}

	state, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}
	outcome := deps.Pipeline.Run(r.Context(), state, question)
	if outcome.State == pipeline.StateFailed {
		writeKindError(r.Context(), w, outcome.Err, map[string]any{
			"state":       outcome.State,
			"failed_from": outcome.FailedFrom,
			"sql":         outcome.SQL,
			"response":    outcome.Response,
		})
		return
	}

	response := queryResponse{
		State:         string(outcome.State),
		Response:      outcome.Response,
		Empty:         outcome.Empty,
		resultPayload: buildResultPayload(cfg, question, outcome.SQL, outcome.Result, time.Time{}),
	}
	if outcome.Empty {
		response.Message = "No results"
	}
	writeJSON(w, http.StatusOK, response)
}

func handleLatestResult(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleQueryReader) {
		return
	}
	latest, ok := latestResult(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, buildResultPayload(cfg, latest.Question, latest.SQL, latest.Result, latest.RenderedAt))
}

func handleExport(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleQueryReader) {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeKindError(r.Context(), w, err, nil)
		return
	}
	latest, ok := latestResult(deps, w, r)
	if !ok {
		return
	}

	artifact, err := export.Export(latest.Result, format, cfg.Query.ExportBaseName)
	if err != nil {
		writeKindError(r.Context(), w, err, nil)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

func latestResult(deps Dependencies, w http.ResponseWriter, r *http.Request) (session.Latest, bool) {
	state, ok := sessionFor(deps, w, r)
	if !ok {
		return session.Latest{}, false
	}
	latest, ok := state.Latest()
	if !ok || latest.Result.Empty() {
		writeError(r.Context(), w, http.StatusNotFound, "NO_RESULT", "no query result in this session", nil)
		return session.Latest{}, false
	}
	return latest, true
}

func buildResultPayload(cfg config.Config, question, sqlText string, result query.Result, renderedAt time.Time) resultPayload {
	preview := result.Preview(cfg.Query.PreviewRows)
	rows := preview.Rows
	if rows == nil {
		rows = [][]any{}
	}
	columns := preview.Columns
	if columns == nil {
		columns = []string{}
	}
	return resultPayload{
		Question:   question,
		SQL:        sqlText,
		Columns:    columns,
		Rows:       rows,
		RowCount:   len(result.Rows),
		Truncated:  len(preview.Rows) < len(result.Rows),
		DurationMs: result.Duration.Milliseconds(),
		RenderedAt: renderedAt,
	}
}
