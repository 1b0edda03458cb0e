package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

const (
	// timeout for a single websocket write.
	writeWait = 10 * time.Second

	// how long Subscribe waits for the join reply when ctx has no deadline.
	joinWait = 10 * time.Second

	// DefaultHeartbeat is the gateway heartbeat period.
	DefaultHeartbeat = 25 * time.Second

	// maximum size of an inbound frame.
	maxFrameSize = 1 << 20
)

// Realtime is a Feed speaking the phoenix channel protocol of a realtime gateway over
// websocket. Each channel owns its own connection.
type Realtime struct {
	endpoint  string
	apiKey    string
	token     TokenFunc
	heartbeat time.Duration
	dialer    *websocket.Dialer
	logger    zerolog.Logger
}

var _ Feed = (*Realtime)(nil)

type RealtimeOption func(*Realtime)

// WithHeartbeat overrides DefaultHeartbeat.
func WithHeartbeat(d time.Duration) RealtimeOption {
	return func(r *Realtime) { r.heartbeat = d }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) RealtimeOption {
	return func(r *Realtime) { r.dialer = d }
}

// NewRealtime builds a driver for the gateway at endpoint (ws:// or wss://).
// token may be nil for anonymous gateways.
func NewRealtime(endpoint, apiKey string, token TokenFunc, opts ...RealtimeOption) *Realtime {
	r := &Realtime{
		endpoint:  endpoint,
		apiKey:    apiKey,
		token:     token,
		heartbeat: DefaultHeartbeat,
		dialer:    websocket.DefaultDialer,
		logger:    logx.Component("feed.realtime"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe dials the gateway, joins the topic and waits for the join to be acknowledged.
func (r *Realtime) Subscribe(ctx context.Context, topic Topic, deliver func(Event)) (Channel, error) {
	target, err := r.socketURL()
	if err != nil {
		return nil, err
	}

	var accessToken string
	if r.token != nil {
		if accessToken, err = r.token(ctx); err != nil {
			return nil, fmt.Errorf("failed to obtain realtime token: %w", err)
		}
	}

	conn, _, err := r.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime gateway: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	c := &realtimeChannel{
		termination: termination{done: make(chan struct{})},
		conn:        conn,
		topic:       topic,
		wireTopic:   TopicPrefix + topic.Name,
		deliver:     deliver,
		heartbeat:   r.heartbeat,
		stop:        make(chan struct{}),
		writeDone:   make(chan struct{}),
		logger:      r.logger.With().Str("topic", topic.Name).Logger(),
	}

	if err := c.join(ctx, accessToken); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go func() { c.finish(c.readPump()) }()
	go c.writePump()

	c.logger.Debug().Msg("Joined realtime channel")
	return c, nil
}

func (r *Realtime) socketURL() (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid realtime endpoint: %w", err)
	}
	q := u.Query()
	if r.apiKey != "" {
		q.Set("apikey", r.apiKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type realtimeChannel struct {
	termination

	conn      *websocket.Conn
	topic     Topic
	wireTopic string
	deliver   func(Event)
	heartbeat time.Duration
	ref       atomic.Int64

	closeOnce sync.Once
	stop      chan struct{}
	writeDone chan struct{}
	logger    zerolog.Logger
}

func (c *realtimeChannel) nextRef() string {
	return strconv.FormatInt(c.ref.Add(1), 10)
}

func (c *realtimeChannel) write(f Frame) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}

// join runs before the pumps start, so it may read and write the connection directly.
func (c *realtimeChannel) join(ctx context.Context, accessToken string) error {
	var payload JoinPayload
	payload.AccessToken = accessToken
	payload.Config.PostgresChanges = []ChangeFilter{{
		Event:  OpInsert,
		Schema: "public",
		Table:  c.topic.Table,
		Filter: c.topic.Filter(),
	}}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode join payload: %w", err)
	}

	ref := c.nextRef()
	if err := c.write(Frame{Topic: c.wireTopic, Event: EventJoin, Payload: raw, Ref: ref}); err != nil {
		return fmt.Errorf("failed to send join: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(joinWait)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("failed to read join reply: %w", err)
		}
		if f.Event != EventReply || f.Ref != ref {
			continue
		}

		var reply ReplyPayload
		if err := json.Unmarshal(f.Payload, &reply); err != nil {
			return fmt.Errorf("failed to decode join reply: %w", err)
		}
		if reply.Status != ReplyOK {
			return fmt.Errorf("realtime join rejected: %s %s", reply.Status, string(reply.Response))
		}
		return nil
	}
}

// readPump is the only goroutine that calls deliver. It returns nil after Close and the
// reason the channel died otherwise.
func (c *realtimeChannel) readPump() error {
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.stop:
				return nil
			default:
			}
			c.logger.Warn().Err(err).Msg("Realtime connection lost")
			return fmt.Errorf("realtime connection lost: %w", err)
		}

		switch f.Event {
		case EventChanges:
			var payload ChangesPayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				metrics.FeedEventsDropped.Inc()
				c.logger.Warn().Err(err).Msg("Discarding undecodable change")
				continue
			}
			if c.topic.Matches(payload.Data) {
				c.deliver(payload.Data)
			}
		case EventError, EventClose:
			if f.Topic == c.wireTopic {
				c.logger.Warn().Str("event", f.Event).Str("payload", string(f.Payload)).Msg("Realtime channel closed by gateway")
				return fmt.Errorf("%w: %s %s", ErrChannelClosed, f.Event, string(f.Payload))
			}
		}
	}
}

// writePump owns every write after join: heartbeats, then the leave frame on Close.
func (c *realtimeChannel) writePump() {
	defer close(c.writeDone)

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hb := Frame{Topic: HeartbeatTopic, Event: EventHeartbeat, Payload: json.RawMessage(`{}`), Ref: c.nextRef()}
			if err := c.write(hb); err != nil {
				c.logger.Warn().Err(err).Msg("Heartbeat failed")
				// Unblocks readPump, which reports the failure.
				_ = c.conn.Close()
				return
			}
		case <-c.stop:
			leave := Frame{Topic: c.wireTopic, Event: EventLeave, Payload: json.RawMessage(`{}`), Ref: c.nextRef()}
			if err := c.write(leave); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug().Err(err).Msg("Failed to send leave")
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *realtimeChannel) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.writeDone
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Realtime connection close error")
		}
	})
	<-c.done
}
