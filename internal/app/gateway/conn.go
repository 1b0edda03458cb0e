package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

const (
	// timeout duration for writing to the websocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed between two frames or pongs from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size of an inbound frame.
	maxFrameSize = 1 << 16

	sendBuffer = 256

	// CloseCodeSlowConsumer tells a client it fell too far behind and was disconnected.
	CloseCodeSlowConsumer = 4001
)

// conn is one websocket client. readPump is the only goroutine that joins and leaves
// channels; writePump is the only one that writes to ws.
type conn struct {
	gw *Gateway
	ws *websocket.Conn

	send      chan []byte
	done      chan struct{}
	doneOnce  sync.Once
	writeDone chan struct{}
	closeCode atomic.Int32

	mu       sync.Mutex
	channels map[string]feed.Channel

	logger zerolog.Logger
}

func newConn(gw *Gateway, ws *websocket.Conn) *conn {
	c := &conn{
		gw:        gw,
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
		channels:  make(map[string]feed.Channel),
		logger:    gw.logger.With().Str("remote", ws.RemoteAddr().String()).Logger(),
	}
	c.closeCode.Store(websocket.CloseNormalClosure)
	return c
}

func (c *conn) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// kick disconnects the client with code once the queued frames are gone.
func (c *conn) kick(code int, reason string) {
	c.logger.Warn().Int("close_code", code).Str("reason", reason).Msg("Disconnecting client")
	c.closeCode.Store(int32(code))
	c.closeDone()
}

func (c *conn) readPump(ctx context.Context) {
	defer c.shutdown()

	c.ws.SetReadLimit(maxFrameSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f feed.Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Client connection lost")
			}
			return
		}
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		c.handle(ctx, f)
	}
}

func (c *conn) handle(ctx context.Context, f feed.Frame) {
	switch f.Event {
	case feed.EventHeartbeat:
		c.reply(f, feed.ReplyOK, struct{}{})
	case feed.EventJoin:
		c.join(ctx, f)
	case feed.EventLeave:
		c.leave(f.Topic)
		c.reply(f, feed.ReplyOK, struct{}{})
	default:
		c.reply(f, feed.ReplyError, reason("unsupported event "+f.Event))
	}
}

type reason string

func (r reason) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"reason": string(r)})
}

// join subscribes before acknowledging, so every insert committed after the client saw
// the reply is delivered. Events are held back until the reply is queued.
func (c *conn) join(ctx context.Context, f feed.Frame) {
	var payload feed.JoinPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil || len(payload.Config.PostgresChanges) != 1 {
		c.reply(f, feed.ReplyError, reason("expected exactly one change filter"))
		return
	}

	topic, err := feed.ParseTopic(f.Topic, payload.Config.PostgresChanges[0])
	if err != nil {
		c.reply(f, feed.ReplyError, reason(err.Error()))
		return
	}

	if err := c.gw.authorize(ctx, payload.AccessToken, topic); err != nil {
		c.logger.Info().Err(err).Str("topic", topic.Name).Msg("Join rejected")
		c.reply(f, feed.ReplyError, reason(err.Error()))
		return
	}

	c.leave(f.Topic)

	ready := make(chan struct{})
	wireTopic := f.Topic
	ch, err := c.gw.feed.Subscribe(ctx, topic, func(ev feed.Event) {
		select {
		case <-ready:
		case <-c.done:
			return
		}
		c.push(wireTopic, ev)
	})
	if err != nil {
		c.logger.Error().Err(err).Str("topic", topic.Name).Msg("Failed to open feed channel")
		c.reply(f, feed.ReplyError, reason("subscription unavailable"))
		return
	}

	c.mu.Lock()
	c.channels[wireTopic] = ch
	c.mu.Unlock()
	metrics.GatewayChannels.Inc()

	c.reply(f, feed.ReplyOK, struct{}{})
	close(ready)
	go c.watch(wireTopic, ch)

	c.logger.Debug().Str("topic", topic.Name).Msg("Channel joined")
}

func (c *conn) leave(wireTopic string) {
	c.mu.Lock()
	ch, ok := c.channels[wireTopic]
	delete(c.channels, wireTopic)
	c.mu.Unlock()

	if ok {
		ch.Close()
		metrics.GatewayChannels.Dec()
	}
}

// watch tells the client when ch fails on its own. Channels closed by leave or shutdown
// end without an error and are ignored.
func (c *conn) watch(wireTopic string, ch feed.Channel) {
	select {
	case <-c.done:
		return
	case <-ch.Done():
	}
	cause := ch.Err()
	if cause == nil {
		return
	}

	c.mu.Lock()
	current, ok := c.channels[wireTopic]
	if ok && current == ch {
		delete(c.channels, wireTopic)
	} else {
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	ch.Close()
	metrics.GatewayChannels.Dec()
	c.logger.Warn().Err(cause).Str("topic", wireTopic).Msg("Feed channel failed")

	payload, err := json.Marshal(reason("feed channel failed"))
	if err != nil {
		return
	}
	c.enqueue(feed.Frame{Topic: wireTopic, Event: feed.EventError, Payload: payload})
}

func (c *conn) push(wireTopic string, ev feed.Event) {
	payload, err := json.Marshal(feed.ChangesPayload{Data: ev})
	if err != nil {
		metrics.FeedEventsDropped.Inc()
		c.logger.Warn().Err(err).Msg("Failed to encode change")
		return
	}
	c.enqueue(feed.Frame{Topic: wireTopic, Event: feed.EventChanges, Payload: payload})
}

func (c *conn) reply(f feed.Frame, status string, response any) {
	out, err := feed.Reply(f.Topic, f.Ref, status, response)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build reply")
		return
	}
	c.enqueue(out)
}

// enqueue never blocks. A client whose queue is full is disconnected rather than
// silently missing frames.
func (c *conn) enqueue(f feed.Frame) bool {
	b, err := json.Marshal(f)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode frame")
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- b:
		return true
	case <-c.done:
		return false
	default:
		c.kick(CloseCodeSlowConsumer, "send queue full")
		return false
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		close(c.writeDone)
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				c.closeDone()
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				c.closeDone()
				return
			}

		case <-c.done:
			c.drain()
			msg := websocket.FormatCloseMessage(int(c.closeCode.Load()), "")
			c.write(websocket.CloseMessage, msg)
			return
		}
	}
}

// drain flushes frames queued before done was closed, such as a final reply.
func (c *conn) drain() {
	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(messageType int, data []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Msg("Write failed")
		return false
	}
	return true
}

// shutdown leaves every channel and waits for the writer to close the socket.
func (c *conn) shutdown() {
	c.closeDone()

	c.mu.Lock()
	channels := c.channels
	c.channels = make(map[string]feed.Channel)
	c.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
		metrics.GatewayChannels.Dec()
	}

	<-c.writeDone
}
