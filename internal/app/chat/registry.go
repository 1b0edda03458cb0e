/*
Package chat keeps the live message subscriptions of the client, at most one per room.

This file defines the Registry, which opens feed channels for rooms, remembers the live
Subscription of each room and tears the previous one down when a room is subscribed again.
*/
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

// MessagesTable is the table whose inserts are streamed to room subscribers.
const MessagesTable = "messages"

// Registry maps room ids to their live Subscription.
type Registry struct {
	feed   feed.Feed
	subs   map[string]*Subscription
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewRegistry(f feed.Feed) *Registry {
	return &Registry{
		feed:   f,
		subs:   make(map[string]*Subscription),
		logger: logx.Component("chat.registry"),
	}
}

// RoomTopic is the feed topic carrying the inserts of one room.
func RoomTopic(roomID string) feed.Topic {
	return feed.Topic{
		Name:   "room:" + roomID,
		Table:  MessagesTable,
		Column: "room_id",
		Value:  roomID,
	}
}

// Subscribe tears down the current subscription of roomID, if any, and opens a new one.
// The returned subscription also ends when ctx is cancelled or the feed channel fails.
func (r *Registry) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	if current := r.Get(roomID); current != nil {
		r.logger.Info().Str("room_id", roomID).Msg("Replacing existing room subscription")
		current.Unsubscribe()
	}

	sub := newSubscription(roomID, r)

	channel, err := r.feed.Subscribe(ctx, RoomTopic(roomID), sub.deliver)
	if err != nil {
		sub.abort()
		return nil, fmt.Errorf("failed to open channel for room %s: %w", roomID, err)
	}
	sub.channel = channel

	r.mu.Lock()
	raced := r.subs[roomID]
	r.subs[roomID] = sub
	r.mu.Unlock()

	metrics.RealtimeChannels.Inc()

	// A concurrent Subscribe for the same room may have stored its subscription while
	// the channel was opening; only the newest one stays live.
	if raced != nil {
		raced.Unsubscribe()
	}

	go r.watch(ctx, sub)

	r.logger.Debug().Str("room_id", roomID).Msg("Room subscription opened")
	return sub, nil
}

// watch ends sub when ctx is cancelled or its channel terminates on its own.
func (r *Registry) watch(ctx context.Context, sub *Subscription) {
	select {
	case <-ctx.Done():
		sub.Unsubscribe()
	case <-sub.channel.Done():
		sub.end(sub.channel.Err())
	case <-sub.done:
	}
}

// Get returns the live subscription of roomID, or nil.
func (r *Registry) Get(roomID string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[roomID]
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// remove deletes the entry of roomID only while it still points at sub, so a stale
// subscription never evicts its replacement.
func (r *Registry) remove(roomID string, sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[roomID] != sub {
		return false
	}
	delete(r.subs, roomID)
	return true
}

// Shutdown unsubscribes every room.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	r.logger.Info().Int("closed", len(subs)).Msg("Registry shutdown complete")
}
