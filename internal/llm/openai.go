package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/observability"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.complete(ctx, req)
	purpose := req.Purpose
	if purpose == "" {
		purpose = "unspecified"
	}
	observability.ObserveCompletion(purpose, time.Since(start), err)
	return resp, err
}

func (c *OpenAIClient) complete(ctx context.Context, req Request) (Response, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
	}
	if len(req.Schema) > 0 {
		payload.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: "response", Strict: true, Schema: req.Schema},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, errs.Wrap(err, errs.KindCompletion, "marshal chat payload")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, errs.Wrap(err, errs.KindCompletion, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, errs.Wrap(err, errs.KindCompletion, "request chat completion")
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, errs.Wrap(err, errs.KindCompletion, "read chat response body")
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if decodeErr == nil && parsed.Error != nil {
		apiErr := &APIError{StatusCode: httpResp.StatusCode, Message: parsed.Error.Message, Type: parsed.Error.Type}
		if parsed.Error.Code != nil {
			apiErr.Code = fmt.Sprint(parsed.Error.Code)
		}
		return Response{}, errs.Wrap(apiErr, errs.KindCompletion, "")
	}
	if httpResp.StatusCode >= 400 {
		return Response{}, errs.Wrap(&APIError{
			StatusCode: httpResp.StatusCode,
			Message:    fmt.Sprintf("chat completion failed status=%d body=%s", httpResp.StatusCode, strings.TrimSpace(string(raw))),
		}, errs.KindCompletion, "")
	}
	if decodeErr != nil {
		return Response{}, errs.Wrap(decodeErr, errs.KindCompletion, "decode chat completion response")
	}
	if len(parsed.Choices) == 0 {
		return Response{}, errs.New(errs.KindCompletion, "empty chat completion choices")
	}
	message := parsed.Choices[0].Message
	if message.Content == "" && message.Refusal != "" {
		return Response{}, errs.Wrap(&APIError{StatusCode: httpResp.StatusCode, Message: message.Refusal, Type: "refusal"}, errs.KindCompletion, "")
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return Response{Content: message.Content, Model: model}, nil
}
