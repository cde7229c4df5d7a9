// Package llmtest provides scripted text-generation providers for tests
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/factline/internal/llm"
)

// ErrScriptExhausted is returned when a Scripted provider runs out of replies
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Reply is one scripted outcome
type Reply struct {
	Text string
	Err  error
}

// Scripted replays a fixed sequence of replies and records every request.
// When the script is exhausted, Handler (if set) answers instead.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request

	// Handler answers requests once the scripted replies are used up
	Handler func(ctx context.Context, req llm.Request) (string, error)
}

// NewScripted returns a provider that answers with texts in order
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Func returns a provider backed entirely by fn
func Func(fn func(ctx context.Context, req llm.Request) (string, error)) *Scripted {
	return &Scripted{Handler: fn}
}

// Push appends replies to the script
func (s *Scripted) Push(replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
	return s
}

// Name returns the provider name
func (s *Scripted) Name() string { return "scripted" }

// IsAvailable always reports true
func (s *Scripted) IsAvailable(ctx context.Context) bool { return true }

// Complete returns the next scripted reply
func (s *Scripted) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	var next *Reply
	if len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		next = &r
	}
	handler := s.Handler
	s.mu.Unlock()

	if next == nil {
		if handler == nil {
			return nil, ErrScriptExhausted
		}
		text, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Text: text, Model: "scripted"}, nil
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &llm.Response{Text: next.Text, Model: "scripted"}, nil
}

// Requests returns a copy of every request seen so far
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of requests seen so far
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
