package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/pkg/logx"
)

const memoryQueueSize = 64

// Memory is an in-process Feed. Publish fans events out to the matching channels.
type Memory struct {
	mu       sync.Mutex
	channels map[*memoryChannel]struct{}
	logger   zerolog.Logger
}

var _ Feed = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		channels: make(map[*memoryChannel]struct{}),
		logger:   logx.Component("feed.memory"),
	}
}

// Subscribe registers a channel; ctx is not retained.
func (m *Memory) Subscribe(_ context.Context, topic Topic, deliver func(Event)) (Channel, error) {
	c := &memoryChannel{
		termination: termination{done: make(chan struct{})},
		owner:       m,
		topic:       topic,
		deliver:     deliver,
		queue:       make(chan Event, memoryQueueSize),
		closed:      make(chan struct{}),
	}

	m.mu.Lock()
	m.channels[c] = struct{}{}
	m.mu.Unlock()

	go c.run()

	m.logger.Debug().Str("topic", topic.Name).Msg("Channel opened")
	return c, nil
}

// Publish emits an INSERT of record into table. It blocks while a matching channel's
// queue is full.
func (m *Memory) Publish(table string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	ev := Event{Table: table, Type: OpInsert, Record: raw}

	m.mu.Lock()
	targets := make([]*memoryChannel, 0, len(m.channels))
	for c := range m.channels {
		if c.topic.Matches(ev) {
			targets = append(targets, c)
		}
	}
	m.mu.Unlock()

	for _, c := range targets {
		c.enqueue(ev)
	}
	return nil
}

// Open returns the number of open channels.
func (m *Memory) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// Drop ends every open channel with err, the way a lost backend connection would.
func (m *Memory) Drop(err error) {
	m.mu.Lock()
	open := make([]*memoryChannel, 0, len(m.channels))
	for c := range m.channels {
		open = append(open, c)
	}
	m.mu.Unlock()

	for _, c := range open {
		c.stop(err)
	}
	m.logger.Warn().Err(err).Int("channels", len(open)).Msg("Dropped all channels")
}

func (m *Memory) remove(c *memoryChannel) {
	m.mu.Lock()
	delete(m.channels, c)
	m.mu.Unlock()
}

type memoryChannel struct {
	termination

	owner   *Memory
	topic   Topic
	deliver func(Event)
	queue   chan Event

	closeOnce sync.Once
	closed    chan struct{}
	stopErr   error
}

func (c *memoryChannel) enqueue(ev Event) {
	select {
	case c.queue <- ev:
	case <-c.closed:
	}
}

func (c *memoryChannel) run() {
	// stopErr is written before closed is closed, and run only returns after that.
	defer func() { c.finish(c.stopErr) }()

	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.queue:
			c.deliver(ev)
		}
	}
}

func (c *memoryChannel) stop(err error) {
	c.closeOnce.Do(func() {
		c.stopErr = err
		close(c.closed)
		c.owner.remove(c)
	})
}

func (c *memoryChannel) Close() {
	c.stop(nil)
	<-c.done
}
