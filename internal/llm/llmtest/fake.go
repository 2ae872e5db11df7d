package llmtest

import (
	"context"
	"sync"

	"github.com/datachat/datachat/internal/llm"
)

type Reply struct {
	Content string
	Err     error
}

type Fake struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

func New(replies ...Reply) *Fake {
	return &Fake{replies: replies}
}

func (f *Fake) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if len(f.replies) == 0 {
		return llm.Response{}, nil
	}
	index := len(f.requests) - 1
	if index >= len(f.replies) {
		index = len(f.replies) - 1
	}
	reply := f.replies[index]
	if reply.Err != nil {
		return llm.Response{}, reply.Err
	}
	return llm.Response{Content: reply.Content, Model: "fake"}, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *Fake) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}
