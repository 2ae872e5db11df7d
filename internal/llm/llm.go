package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datachat/datachat/internal/errs"
)

type Request struct {
	Purpose     string
	System      string
	User        string
	Schema      json.RawMessage
	Temperature float64
}

type Response struct {
	Content string
	Model   string
}

type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Type)
	}
	return e.Message
}

func CompleteJSON(ctx context.Context, completer Completer, req Request, out any) error {
	if len(req.Schema) == 0 {
		return errs.New(errs.KindCompletion, "structured completion requires a schema")
	}
	resp, err := completer.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Content), out); err != nil {
		return errs.Wrap(err, errs.KindCompletion, "decode structured completion")
	}
	return nil
}
