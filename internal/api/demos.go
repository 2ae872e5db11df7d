package api

import (
	"net/http"
	"strconv"

	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/ingest"
)

type demoEntry struct {
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	File      string   `json:"file"`
	Questions []string `json:"questions"`
}

func handleListDemos(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleQueryReader) {
		return
	}
	entries := []demoEntry{}
	if deps.Demos != nil {
		for i, dataset := range deps.Demos.Datasets() {
			questions := dataset.Questions
			if questions == nil {
				questions = []string{}
			}
			entries = append(entries, demoEntry{Index: i, Title: dataset.Title, Body: dataset.Body, File: dataset.File, Questions: questions})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"demos": entries})
}

func handleLoadDemo(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Demos == nil || deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DEMOS_NOT_CONFIGURED", "demo datasets are not configured", nil)
		return
	}
	if !requireRole(w, r, auth.RoleDataWriter) {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeKindError(r.Context(), w, errs.Newf(errs.KindValidation, "invalid demo index %q", r.PathValue("index")), nil)
		return
	}

	state, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}
	result, err := deps.Demos.Load(r.Context(), index, state)
	if err != nil {
		writeKindError(r.Context(), w, err, map[string]any{"index": index})
		return
	}
	respondIngest(deps, w, r, state, []ingest.Result{result}, nil)
}
