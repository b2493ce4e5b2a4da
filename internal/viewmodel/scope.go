// Package viewmodel holds per-screen state: each holder subscribes to the
// repository, derives the state its screen renders and exposes the screen's
// mutations. Holders live inside a Scope and never publish once it is closed.
package viewmodel

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"budget/internal/live"
)

// Scope bounds the lifetime of a screen's work.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Active reports whether the scope still accepts work.
func (s *Scope) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.ctx.Err() == nil
}

// Go runs fn in the scope. It returns false if the scope is already closed.
func (s *Scope) Go(fn func(ctx context.Context) error) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.g.Go(func() error { return fn(s.ctx) })
	return true
}

// Publish runs fn unless the scope is closed; fn must not block.
func (s *Scope) Publish(fn func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// Close cancels in-flight work and waits for it to return.
func (s *Scope) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return s.g.Wait()
}

// follow feeds every snapshot of stream to fn until the scope closes.
func follow[T any](s *Scope, stream live.Stream[T], fn func(live.Snapshot[T])) {
	s.Go(func(ctx context.Context) error {
		for snap := range stream.Subscribe(ctx) {
			snap := snap
			s.Publish(func() { fn(snap) })
		}
		return nil
	})
}
