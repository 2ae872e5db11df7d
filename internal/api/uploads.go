package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/ingest"
	"github.com/datachat/datachat/internal/observability"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/session"
	"github.com/datachat/datachat/internal/storage"
)

const multipartMemory = 32 << 20

type fileResult struct {
	File       string   `json:"file"`
	Kind       string   `json:"kind,omitempty"`
	Tables     []string `json:"tables"`
	Rows       int64    `json:"rows"`
	Error      string   `json:"error,omitempty"`
	ArchiveKey string   `json:"archive_key,omitempty"`
}

type uploadResponse struct {
	SessionID     string        `json:"session_id"`
	Files         []fileResult  `json:"files"`
	Notifications []string      `json:"notifications"`
	Schema        schema.Schema `json:"schema"`
}

func handleUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ingestor == nil || deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "INGEST_NOT_CONFIGURED", "ingestion dependencies are not configured", nil)
		return
	}
	if !requireRole(w, r, auth.RoleDataWriter) {
		return
	}
	state, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}

	if cfg.HTTP.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.HTTP.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", err.Error(), map[string]any{"limit_bytes": tooLarge.Limit})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", "expected a multipart form with one or more file fields", map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "at least one file field is required", nil)
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", "read uploaded file", map[string]any{"file": header.Filename, "details": err.Error()})
			return
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}

	archiveKeys := archiveUploads(r.Context(), deps, state.ID, files)
	results := deps.Ingestor.IngestAll(r.Context(), files)
	respondIngest(deps, w, r, state, results, archiveKeys)
}

func respondIngest(deps Dependencies, w http.ResponseWriter, r *http.Request, state *session.State, results []ingest.Result, archiveKeys []string) {
	current, err := deps.Schemas.Describe(r.Context())
	if err != nil {
		writeKindError(r.Context(), w, err, nil)
		return
	}

	response := uploadResponse{SessionID: state.ID, Files: make([]fileResult, 0, len(results)), Notifications: []string{}, Schema: current}
	imported := false
	for i, result := range results {
		entry := fileResult{File: result.File, Kind: string(result.Kind), Tables: result.Tables, Rows: result.Rows}
		if entry.Tables == nil {
			entry.Tables = []string{}
		}
		if result.Err != nil {
			entry.Error = errs.Cause(result.Err)
		}
		if i < len(archiveKeys) {
			entry.ArchiveKey = archiveKeys[i]
		}
		imported = imported || len(result.Tables) > 0
		response.Files = append(response.Files, entry)
		response.Notifications = append(response.Notifications, result.Notifications()...)
	}

	if imported {
		warmQuestions(r.Context(), deps, state, current)
	}
	writeJSON(w, http.StatusOK, response)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func archiveUploads(ctx context.Context, deps Dependencies, sessionID string, files []ingest.File) []string {
	keys := make([]string, len(files))
	if deps.Archive == nil {
		return keys
	}
	now := time.Now()
	for i, file := range files {
		key, err := storage.UploadKey(sessionID, uuid.NewString(), file.Name, now)
		if err == nil {
			_, err = deps.Archive.Put(ctx, key, file.Data, contentTypeFor(file.Name))
		}
		if err != nil {
			deps.Logger.WarnContext(ctx, "archive upload failed", "file", file.Name, "error", err)
			continue
		}
		keys[i] = key
	}
	return keys
}

func contentTypeFor(fileName string) string {
	kind, err := ingest.KindOf(fileName)
	if err == nil && kind == ingest.KindDelimited {
		return "text/csv"
	}
	if err == nil && kind == ingest.KindContainer {
		return "application/vnd.sqlite3"
	}
	return "application/octet-stream"
}

func warmQuestions(ctx context.Context, deps Dependencies, state *session.State, current schema.Schema) {
	if !deps.WarmQuestions || deps.Suggester == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := deps.Suggester.Suggest(ctx, state.Questions, current); err != nil {
			deps.Logger.WarnContext(ctx, "background question suggestion failed",
				"session_id", observability.SessionIDFromContext(ctx), "error", err)
		}
	}()
}
