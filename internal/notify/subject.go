// Package notify implements a small typed publish/subscribe subject.
//
// Subscribers register a callback and receive a token used to unregister.
// Publish delivers synchronously in registration order; a panicking callback
// is recovered and logged so the remaining subscribers still see the event.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

// Token identifies a registration.
type Token uint64

type subscriber[T any] struct {
	token Token
	fn    func(T)
}

type Subject[T any] struct {
	mu     sync.Mutex
	next   Token
	subs   []subscriber[T]
	logger logging.Logger
}

func NewSubject[T any](logger logging.Logger) *Subject[T] {
	return &Subject[T]{logger: logger}
}

func (s *Subject[T]) Register(fn func(T)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.subs = append(s.subs, subscriber[T]{token: s.next, fn: fn})
	return s.next
}

// Unregister removes the registration. Unknown tokens are ignored.
func (s *Subject[T]) Unregister(t Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.token == t {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registrations.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Subject[T]) Publish(ctx context.Context, v T) {
	s.mu.Lock()
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(ctx, sub, v)
	}
}

func (s *Subject[T]) deliver(ctx context.Context, sub subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "subscriber panicked", "token", sub.token, "panic", fmt.Sprint(r))
		}
	}()
	sub.fn(v)
}
