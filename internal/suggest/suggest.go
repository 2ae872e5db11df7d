package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/llm"
	"github.com/datachat/datachat/internal/observability"
	"github.com/datachat/datachat/internal/schema"
)

const DefaultCount = 5

var questionsSchema = json.RawMessage(`{"type":"object","properties":{"questions":{"type":"array","items":{"type":"string"}}},"required":["questions"],"additionalProperties":false}`)

type Suggester struct {
	completer llm.Completer
	count     int
	logger    *slog.Logger
	group     singleflight.Group
}

func New(completer llm.Completer, count int, logger *slog.Logger) *Suggester {
	if count <= 0 {
		count = DefaultCount
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Suggester{completer: completer, count: count, logger: logger}
}

func (s *Suggester) Suggest(ctx context.Context, cache *Cache, current schema.Schema) ([]string, error) {
	fingerprint := current.Fingerprint()
	if questions, ok := cache.Lookup(fingerprint); ok {
		observability.ObserveQuestionCache(true)
		return questions, nil
	}
	observability.ObserveQuestionCache(false)

	if len(current) == 0 {
		cache.Store(fingerprint, nil)
		return nil, nil
	}

	key := fmt.Sprintf("%p:%s", cache, fingerprint)
	value, err, _ := s.group.Do(key, func() (any, error) {
		if questions, ok := cache.Lookup(fingerprint); ok {
			return questions, nil
		}
		questions, err := s.request(ctx, current)
		if err != nil {
			cache.Fail(err)
			return nil, err
		}
		cache.Store(fingerprint, questions)
		return questions, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "question suggestion failed", "error", err, "tables", len(current))
		return nil, err
	}
	s.logger.DebugContext(ctx, "questions suggested", "tables", len(current), "fingerprint", fingerprint[:12])
	return value.([]string), nil
}

func (s *Suggester) request(ctx context.Context, current schema.Schema) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	err := llm.CompleteJSON(ctx, s.completer, llm.Request{
		Purpose: "suggest",
		System:  fmt.Sprintf("Suggest %d diverse, useful questions that a user can answer from this dataset using SQL", s.count),
		User:    current.Prompt(),
		Schema:  questionsSchema,
	}, &out)
	if err != nil {
		return nil, err
	}
	questions := make([]string, 0, len(out.Questions))
	for _, question := range out.Questions {
		if trimmed := strings.TrimSpace(question); trimmed != "" {
			questions = append(questions, trimmed)
		}
	}
	if len(questions) == 0 {
		return nil, errs.New(errs.KindCompletion, "completion returned no questions")
	}
	return questions, nil
}
