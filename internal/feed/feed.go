/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package feed delivers row-level change notifications between the request
// handlers and the websocket hub, in-process or across instances via Redis.
package feed

import (
	"context"
	"sync"
	"time"
)

// Tables that publish changes.
const (
	Users            = "users"
	PhotoSubmissions = "photo_submissions"
	BingoSubmissions = "bingo_submissions"
	GameState        = "game_state"
)

// Operations on a table.
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

// Event is a single change notification.
type Event struct {
	Table string    `json:"table"`
	Op    string    `json:"op"`
	At    time.Time `json:"at"`
}

// Feed publishes events to every current subscriber.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (*Subscription, error)
	Close() error
}

// Subscription is an active subscription to a Feed.
// Caller must call Close() when done; context cancellation also ends it.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of events. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns non-fatal delivery errors; the subscription continues after them.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close ends the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
