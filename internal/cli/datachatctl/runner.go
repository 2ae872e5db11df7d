package datachatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const sessionHeader = "X-Datachat-Session"

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type call struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	output string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("datachatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "datachat API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	sessionID := fs.String("session", defaults.SessionID, "session ID header (empty selects the default session)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	request, err := buildCall(command, rest, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + request.path
	code, responseBody, err := doRequest(ctx, client, request, endpoint, *apiKey, *sessionID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if request.output != "" {
		if request.output == "-" {
			_, _ = stdout.Write(responseBody)
			return 0
		}
		if err := os.WriteFile(request.output, responseBody, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "write %s: %v\n", request.output, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(responseBody), request.output)
		return 0
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildCall(command string, args []string, stderr io.Writer) (call, error) {
	switch command {
	case "health":
		return call{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return call{method: http.MethodGet, path: "/v1/ready"}, nil
	case "session":
		return call{method: http.MethodPost, path: "/v1/sessions"}, nil
	case "end-session":
		if len(args) != 1 {
			return call{}, fmt.Errorf("end-session requires a session id")
		}
		return call{method: http.MethodDelete, path: "/v1/sessions/" + url.PathEscape(args[0])}, nil
	case "schema":
		return call{method: http.MethodGet, path: "/v1/schema"}, nil
	case "questions":
		return call{method: http.MethodGet, path: "/v1/questions"}, nil
	case "latest":
		return call{method: http.MethodGet, path: "/v1/results/latest"}, nil
	case "demos":
		return call{method: http.MethodGet, path: "/v1/demos"}, nil
	case "load-demo":
		if len(args) != 1 {
			return call{}, fmt.Errorf("load-demo requires a demo index")
		}
		return call{method: http.MethodPost, path: "/v1/demos/" + url.PathEscape(args[0]) + "/load"}, nil
	case "ask":
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return call{}, fmt.Errorf("ask requires a question")
		}
		payload, err := json.Marshal(map[string]string{"question": question})
		if err != nil {
			return call{}, err
		}
		return call{method: http.MethodPost, path: "/v1/query", body: bytes.NewReader(payload), contentType: "application/json"}, nil
	case "upload":
		if len(args) == 0 {
			return call{}, fmt.Errorf("upload requires at least one file")
		}
		body, contentType, err := multipartBody(args)
		if err != nil {
			return call{}, err
		}
		return call{method: http.MethodPost, path: "/v1/uploads", body: body, contentType: contentType}, nil
	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(stderr)
		format := fs.String("format", "csv", "export format (csv or parquet)")
		output := fs.String("o", "", "output file (default datachat.<format>, - for stdout)")
		if err := fs.Parse(args); err != nil {
			return call{}, err
		}
		target := *output
		if target == "" {
			target = "datachat." + strings.ToLower(strings.TrimSpace(*format))
		}
		return call{
			method: http.MethodGet,
			path:   "/v1/results/latest/export?format=" + url.QueryEscape(*format),
			output: target,
		}, nil
	default:
		return call{}, fmt.Errorf("unknown command %q", command)
	}
}

func multipartBody(paths []string) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func doRequest(ctx context.Context, client *http.Client, request call, endpoint, apiKey, sessionID string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, request.method, endpoint, request.body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if request.contentType != "" {
		req.Header.Set("Content-Type", request.contentType)
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(sessionID) != "" {
		req.Header.Set(sessionHeader, strings.TrimSpace(sessionID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: datachatctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  session                     POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  end-session <id>            DELETE /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  upload <file>...            POST /v1/uploads")
	_, _ = fmt.Fprintln(w, "  schema                      GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  questions                   GET /v1/questions")
	_, _ = fmt.Fprintln(w, "  ask <question>              POST /v1/query")
	_, _ = fmt.Fprintln(w, "  latest                      GET /v1/results/latest")
	_, _ = fmt.Fprintln(w, "  export [-format] [-o file]  GET /v1/results/latest/export")
	_, _ = fmt.Fprintln(w, "  demos                       GET /v1/demos")
	_, _ = fmt.Fprintln(w, "  load-demo <index>           POST /v1/demos/{index}/load")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
