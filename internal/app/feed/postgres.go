package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

// DefaultNotifyChannel is the channel the row triggers of the migrations publish on.
const DefaultNotifyChannel = "appdam_changes"

// Postgres is a Feed backed by LISTEN/NOTIFY. Each channel holds a dedicated connection
// taken out of the pool.
//
// Notifications carry only the key columns of the inserted row (NOTIFY payloads are capped
// at 8000 bytes); the channel loads the full row by id before delivering it.
type Postgres struct {
	pool          *pgxpool.Pool
	notifyChannel string
	logger        zerolog.Logger
}

var _ Feed = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool, notifyChannel string) *Postgres {
	if notifyChannel == "" {
		notifyChannel = DefaultNotifyChannel
	}
	return &Postgres{
		pool:          pool,
		notifyChannel: notifyChannel,
		logger:        logx.Component("feed.postgres"),
	}
}

// Subscribe hijacks a pooled connection and issues LISTEN on it before returning, so no
// insert committed after Subscribe returns can be missed.
func (p *Postgres) Subscribe(ctx context.Context, topic Topic, deliver func(Event)) (Channel, error) {
	pooled, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{p.notifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("failed to listen on %s: %w", p.notifyChannel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &postgresChannel{
		termination: termination{done: make(chan struct{})},
		conn:        conn,
		topic:       topic,
		deliver:     deliver,
		loadRow:     "SELECT row_to_json(t)::text FROM " + pgx.Identifier{topic.Table}.Sanitize() + " AS t WHERE t.id::text = $1",
		cancel:      cancel,
		logger:      p.logger.With().Str("topic", topic.Name).Logger(),
	}

	go func() { c.finish(c.run(loopCtx)) }()

	c.logger.Debug().Msg("Listening for notifications")
	return c, nil
}

type postgresChannel struct {
	termination

	conn    *pgx.Conn
	topic   Topic
	deliver func(Event)
	loadRow string

	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    zerolog.Logger
}

// run returns nil when the channel was closed and the connection error otherwise.
func (c *postgresChannel) run(ctx context.Context) error {
	for {
		notification, err := c.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("Notification wait failed, channel stopped")
			return fmt.Errorf("waiting for notification: %w", err)
		}

		var ev Event
		if err := json.Unmarshal([]byte(notification.Payload), &ev); err != nil {
			metrics.FeedEventsDropped.Inc()
			c.logger.Warn().Err(err).Msg("Discarding undecodable notification")
			continue
		}
		if !c.topic.Matches(ev) {
			continue
		}

		record, err := c.load(ctx, ev)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, pgx.ErrNoRows), errors.Is(err, errMissingID):
			metrics.FeedEventsDropped.Inc()
			c.logger.Warn().Err(err).Msg("Discarding notification without a loadable row")
			continue
		default:
			c.logger.Error().Err(err).Msg("Failed to load notified row, channel stopped")
			return fmt.Errorf("loading notified row: %w", err)
		}

		ev.Record = record
		c.deliver(ev)
	}
}

var errMissingID = errors.New("notification record has no id")

// load fetches the full row named by the id of the notification record.
func (c *postgresChannel) load(ctx context.Context, ev Event) (json.RawMessage, error) {
	var key struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(ev.Record, &key); err != nil || key.ID == nil {
		return nil, errMissingID
	}

	var row string
	if err := c.conn.QueryRow(ctx, c.loadRow, fmt.Sprint(key.ID)).Scan(&row); err != nil {
		return nil, err
	}
	return json.RawMessage(row), nil
}

func (c *postgresChannel) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		if err := c.conn.Close(context.Background()); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close listen connection")
		}
	})
	<-c.done
}
