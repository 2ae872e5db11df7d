package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/suggest"
)

const DefaultID = "default"

type Latest struct {
	Question   string
	SQL        string
	Result     query.Result
	RenderedAt time.Time
}

type State struct {
	ID        string
	CreatedAt time.Time
	Questions *suggest.Cache

	latest atomic.Pointer[Latest]
}

func newState(id string) *State {
	return &State{ID: id, CreatedAt: time.Now().UTC(), Questions: suggest.NewCache()}
}

func (s *State) Latest() (Latest, bool) {
	latest := s.latest.Load()
	if latest == nil {
		return Latest{}, false
	}
	return *latest, true
}

func (s *State) SetLatest(latest Latest) {
	if latest.RenderedAt.IsZero() {
		latest.RenderedAt = time.Now().UTC()
	}
	s.latest.Store(&latest)
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*State{}}
}

func (r *Registry) Create() *State {
	state := newState(uuid.NewString())
	r.mu.Lock()
	r.sessions[state.ID] = state
	r.mu.Unlock()
	return state
}

func (r *Registry) Default() *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[DefaultID]
	if !ok {
		state = newState(DefaultID)
		r.sessions[DefaultID] = state
	}
	return state
}

// Get resolves id to the default session or to a session issued by Create.
func (r *Registry) Get(id string) (*State, bool) {
	id = strings.TrimSpace(id)
	if id == "" || id == DefaultID {
		return r.Default(), true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[id]
	return state, ok
}

func (r *Registry) End(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
