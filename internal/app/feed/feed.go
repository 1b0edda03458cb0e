/*
Package feed delivers row change notifications from the backend.

A Feed opens one Channel per Topic. Every channel owns a single goroutine that calls the
deliver function serially, in the order the backend emitted the events. Three drivers
exist: Postgres LISTEN/NOTIFY, a websocket realtime gateway, and an in-process
broadcaster used by the fakes and the tests.
*/
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// OpInsert is the only change type the chat core listens for.
const OpInsert = "INSERT"

// Topic selects the INSERT events of Table whose Column equals Value.
type Topic struct {
	// Name identifies the channel on the wire, e.g. "room:<id>".
	Name   string
	Table  string
	Column string
	Value  string
}

// Filter renders the topic filter in column=eq.value form.
func (t Topic) Filter() string {
	return fmt.Sprintf("%s=eq.%s", t.Column, t.Value)
}

// Event is one row change.
type Event struct {
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

// ErrChannelClosed reports a channel ended by the backend rather than by Close.
var ErrChannelClosed = errors.New("feed channel closed by the backend")

// Channel is a live subscription to a Topic.
type Channel interface {
	// Close stops delivery and returns once the delivering goroutine has exited.
	// It is safe to call more than once.
	Close()

	// Done is closed once the delivering goroutine has exited, after Close or because the
	// backend connection failed.
	Done() <-chan struct{}

	// Err is nil while Done is open and when the channel was ended by Close. Otherwise it
	// is the failure that stopped the channel.
	Err() error
}

// termination records how a channel ended. The embedding driver calls finish exactly once
// when its delivering goroutine exits.
type termination struct {
	once sync.Once
	done chan struct{}
	err  error
}

func (t *termination) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (t *termination) Done() <-chan struct{} {
	return t.done
}

func (t *termination) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Feed opens channels. deliver is never called after Close returns.
type Feed interface {
	Subscribe(ctx context.Context, topic Topic, deliver func(Event)) (Channel, error)
}

// Matches reports whether ev is an insert on the topic table with the topic filter value.
func (t Topic) Matches(ev Event) bool {
	if ev.Type != OpInsert || ev.Table != t.Table {
		return false
	}

	var record map[string]any
	if err := json.Unmarshal(ev.Record, &record); err != nil {
		return false
	}

	value, ok := record[t.Column]
	if !ok || value == nil {
		return false
	}
	return fmt.Sprint(value) == t.Value
}

// TokenFunc supplies the bearer token used by drivers that authenticate per channel.
type TokenFunc func(ctx context.Context) (string, error)
