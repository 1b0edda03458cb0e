/*
Package gateway is the server side of the realtime protocol.

Clients open one websocket, join channels by sending a change filter and an access token,
and receive every matching row insert as a postgres_changes frame. Events come from a
feed.Feed, normally the Postgres LISTEN/NOTIFY driver.
*/
package gateway

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

// Authorizer decides whether the holder of accessToken may watch topic. The error text is
// sent back to the client in the join reply.
type Authorizer func(ctx context.Context, accessToken string, topic feed.Topic) error

type Gateway struct {
	feed      feed.Feed
	authorize Authorizer
	logger    zerolog.Logger
}

func New(f feed.Feed, authorize Authorizer) *Gateway {
	return &Gateway{
		feed:      f,
		authorize: authorize,
		logger:    logx.Component("gateway"),
	}
}

// Serve runs the connection until the client leaves or ctx ends. The connection is closed
// when Serve returns.
func (g *Gateway) Serve(ctx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := newConn(g, ws)

	metrics.GatewayConnections.Inc()
	defer metrics.GatewayConnections.Dec()

	go c.writePump()

	stop := context.AfterFunc(ctx, c.closeDone)
	defer stop()

	c.readPump(ctx)
}
