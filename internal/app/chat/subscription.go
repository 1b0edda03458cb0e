package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

// subscriberBuffer is how many decoded messages may wait for a slow consumer before the
// feed goroutine blocks.
const subscriberBuffer = 32

// Subscription is the live message stream of one room.
type Subscription struct {
	roomID   string
	registry *Registry
	channel  feed.Channel
	messages chan domain.Message

	once   sync.Once
	done   chan struct{}
	err    error
	logger zerolog.Logger
}

var _ domain.MessageStream = (*Subscription)(nil)

func newSubscription(roomID string, registry *Registry) *Subscription {
	return &Subscription{
		roomID:   roomID,
		registry: registry,
		messages: make(chan domain.Message, subscriberBuffer),
		done:     make(chan struct{}),
		logger:   registry.logger.With().Str("room_id", roomID).Logger(),
	}
}

func (s *Subscription) RoomID() string {
	return s.roomID
}

// Messages yields the inserted messages in feed order. It is closed by Unsubscribe or
// when the feed channel fails.
func (s *Subscription) Messages() <-chan domain.Message {
	return s.messages
}

// Done is closed as soon as the subscription starts ending.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err is nil while the subscription is live and after Unsubscribe. When the feed channel
// failed it returns a persistence error wrapping the cause.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Unsubscribe closes the feed channel, forgets the subscription if it is still the live
// one of its room and closes Messages. Only the first call has an effect.
func (s *Subscription) Unsubscribe() {
	s.end(nil)
}

// end tears the subscription down once. A non-nil cause is kept for Err.
func (s *Subscription) end(cause error) {
	s.once.Do(func() {
		if cause != nil {
			s.err = errs.Wrap(errs.ErrPersistence, cause)
		}
		close(s.done)
		s.channel.Close()
		if s.registry.remove(s.roomID, s) {
			s.logger.Debug().Msg("Room subscription closed")
		}
		metrics.RealtimeChannels.Dec()
		if cause != nil {
			s.logger.Warn().Err(cause).Msg("Room subscription lost its feed channel")
		}
		close(s.messages)
	})
}

// abort releases a subscription whose channel never opened.
func (s *Subscription) abort() {
	s.once.Do(func() {
		close(s.done)
		close(s.messages)
	})
}

// deliver runs on the feed goroutine of the channel.
func (s *Subscription) deliver(ev feed.Event) {
	msg, err := DecodeMessageRecord(ev.Record)
	if err != nil {
		metrics.FeedEventsDropped.Inc()
		s.logger.Warn().Err(err).Msg("Discarding undecodable message event")
		return
	}

	select {
	case s.messages <- msg:
		metrics.MessagesDelivered.Inc()
	case <-s.done:
	}
}
