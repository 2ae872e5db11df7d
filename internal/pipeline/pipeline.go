package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/llm"
	"github.com/datachat/datachat/internal/observability"
	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/session"
)

type State string

const (
	StateIdle               State = "idle"
	StatePrompting          State = "prompting"
	StateAwaitingCompletion State = "awaiting_completion"
	StateExtracting         State = "extracting"
	StateExecuting          State = "executing"
	StateRendered           State = "rendered"
	StateFailed             State = "failed"
)

type SchemaSource interface {
	Describe(ctx context.Context) (schema.Schema, error)
}

type Config struct {
	Schemas      SchemaSource
	Completer    llm.Completer
	Engine       query.Engine
	DialectLabel string
	Logger       *slog.Logger
}

type Pipeline struct {
	schemas      SchemaSource
	completer    llm.Completer
	engine       query.Engine
	dialectLabel string
	logger       *slog.Logger
}

func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	label := cfg.DialectLabel
	if label == "" {
		label = "SQL"
	}
	return &Pipeline{
		schemas:      cfg.Schemas,
		completer:    cfg.Completer,
		engine:       cfg.Engine,
		dialectLabel: label,
		logger:       logger,
	}
}

// Outcome is the terminal state of one run. FailedFrom names the state that failed when State is
// StateFailed. Empty marks a successful run that returned no rows.
type Outcome struct {
	State      State
	FailedFrom State
	Question   string
	Response   string
	SQL        string
	Result     query.Result
	Empty      bool
	Err        error
}

type run struct {
	p       *Pipeline
	ctx     context.Context
	outcome Outcome
	state   State
}

func (r *run) enter(next State) {
	r.p.logger.DebugContext(r.ctx, "pipeline transition", "from", r.state, "to", next)
	r.state = next
}

func (r *run) fail(err error) Outcome {
	r.outcome.FailedFrom = r.state
	r.outcome.Err = err
	r.enter(StateFailed)
	r.outcome.State = StateFailed
	return r.outcome
}

func (p *Pipeline) Run(ctx context.Context, state *session.State, question string) Outcome {
	start := time.Now()
	r := &run{p: p, ctx: ctx, state: StateIdle, outcome: Outcome{Question: question}}
	outcome := r.execute(state)

	failedFrom := ""
	if outcome.State == StateFailed {
		failedFrom = string(outcome.FailedFrom)
		p.logger.WarnContext(ctx, "question failed", "failed_from", failedFrom, "error", outcome.Err)
	} else {
		p.logger.InfoContext(ctx, "question answered", "rows", len(outcome.Result.Rows), "duration_ms", time.Since(start).Milliseconds())
	}
	observability.ObservePipeline(string(outcome.State), failedFrom, time.Since(start))
	return outcome
}

func (r *run) execute(state *session.State) Outcome {
	r.enter(StatePrompting)
	current, err := r.p.schemas.Describe(r.ctx)
	if err != nil {
		return r.fail(err)
	}
	system := BuildPrompt(current, r.p.dialectLabel)

	r.enter(StateAwaitingCompletion)
	resp, err := r.p.completer.Complete(r.ctx, llm.Request{
		Purpose:     "query",
		System:      system,
		User:        r.outcome.Question,
		Temperature: 0,
	})
	if err != nil {
		return r.fail(err)
	}
	r.outcome.Response = resp.Content

	r.enter(StateExtracting)
	sqlText := ExtractSQL(resp.Content)
	r.outcome.SQL = sqlText
	if strings.TrimSpace(sqlText) == "" {
		return r.fail(errs.New(errs.KindCompletion, "completion contained no SQL"))
	}

	r.enter(StateExecuting)
	result, err := r.p.engine.Execute(r.ctx, query.Request{SQL: sqlText})
	if err != nil {
		return r.fail(err)
	}
	r.outcome.Result = result
	r.outcome.Empty = result.Empty()

	r.enter(StateRendered)
	r.outcome.State = StateRendered
	if !r.outcome.Empty && state != nil {
		state.SetLatest(session.Latest{Question: r.outcome.Question, SQL: sqlText, Result: result})
	}
	return r.outcome
}
