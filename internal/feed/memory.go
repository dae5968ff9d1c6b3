/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package feed

import (
	"context"
	"errors"
	"sync"
	"time"
)

const bufferSize = 16

// ErrClosed is returned when publishing to or subscribing on a closed feed.
var ErrClosed = errors.New("feed closed")

type subscriber struct {
	ch chan Event
}

// Memory is an in-process Feed. Slow subscribers miss events rather than
// blocking publishers.
type Memory struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		subs: make(map[*subscriber]struct{}),
	}
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	for s := range m.subs {
		select {
		case s.ch <- ev:
		default:
			// Channel full, skip slow subscriber.
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (*Subscription, error) {
	s := &subscriber{ch: make(chan Event, bufferSize)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		m.remove(s)
	}()

	return &Subscription{
		events: s.ch,
		errors: make(chan error),
		cancel: cancel,
	}, nil
}

func (m *Memory) remove(s *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[s]; ok {
		delete(m.subs, s)
		close(s.ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Close ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for s := range m.subs {
		delete(m.subs, s)
		close(s.ch)
	}
	return nil
}
