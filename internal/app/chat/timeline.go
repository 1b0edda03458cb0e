package chat

import (
	"sync"

	"github.com/higgyo/app-dam/internal/domain"
)

// Timeline emits a room history snapshot followed by the live stream, skipping live
// messages that were already part of the snapshot.
type Timeline struct {
	live domain.MessageStream
	out  chan domain.Message

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var _ domain.MessageStream = (*Timeline)(nil)

// NewTimeline starts forwarding. live must have been opened before history was fetched,
// otherwise inserts landing between the two are lost.
func NewTimeline(history []domain.Message, live domain.MessageStream) *Timeline {
	t := &Timeline{
		live: live,
		out:  make(chan domain.Message, subscriberBuffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go t.run(history)

	return t
}

func (t *Timeline) Messages() <-chan domain.Message {
	return t.out
}

// Err reports why the live stream ended, as Subscription.Err does.
func (t *Timeline) Err() error {
	return t.live.Err()
}

// Unsubscribe ends the live stream and closes Messages. Safe to call more than once.
func (t *Timeline) Unsubscribe() {
	t.stopOnce.Do(func() {
		close(t.stop)
		t.live.Unsubscribe()
	})
	<-t.done
}

func (t *Timeline) run(history []domain.Message) {
	defer close(t.done)
	defer close(t.out)

	pending := make(map[string]struct{}, len(history))
	for _, m := range history {
		pending[m.ID()] = struct{}{}
		if !t.emit(m) {
			return
		}
	}

	live := t.live.Messages()
	for {
		select {
		case <-t.stop:
			return
		case m, ok := <-live:
			if !ok {
				return
			}
			if _, dup := pending[m.ID()]; dup {
				delete(pending, m.ID())
				continue
			}
			if !t.emit(m) {
				return
			}
		}
	}
}

func (t *Timeline) emit(m domain.Message) bool {
	select {
	case t.out <- m:
		return true
	case <-t.stop:
		return false
	}
}
