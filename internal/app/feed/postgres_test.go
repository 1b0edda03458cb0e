package feed

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const feedTestTable = "appdam_feed_rows"

func feedTestTopic(roomID string) Topic {
	return Topic{Name: "room:" + roomID, Table: feedTestTable, Column: "room_id", Value: roomID}
}

func newFeedTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+feedTestTable+` (id TEXT PRIMARY KEY, room_id TEXT NOT NULL, content TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE `+feedTestTable)
	require.NoError(t, err)

	return pool
}

func TestPostgres(t *testing.T) {
	pool := newFeedTestPool(t)
	ctx := context.Background()

	insert := func(t *testing.T, id, roomID, content string) {
		t.Helper()
		_, err := pool.Exec(ctx, `INSERT INTO `+feedTestTable+` (id, room_id, content) VALUES ($1, $2, $3)`, id, roomID, content)
		require.NoError(t, err)
	}
	notify := func(t *testing.T, channel, payload string) {
		t.Helper()
		_, err := pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
		require.NoError(t, err)
	}
	keys := func(id, roomID string) string {
		return `{"table":"` + feedTestTable + `","type":"INSERT","record":{"id":"` + id + `","room_id":"` + roomID + `"}}`
	}

	t.Run("should deliver the full row of matching notifications", func(t *testing.T) {
		req := require.New(t)
		channel := "appdam_feed_test"
		pg := NewPostgres(pool, channel)

		var got collector
		ch, err := pg.Subscribe(ctx, feedTestTopic("r1"), got.deliver)
		req.NoError(err)

		large := strings.Repeat("x", 10000)
		insert(t, "1", "r1", large)
		insert(t, "x", "r2", "other room")
		insert(t, "2", "r1", "small")

		notify(t, channel, keys("1", "r1"))
		notify(t, channel, `not json`)
		notify(t, channel, keys("x", "r2"))
		notify(t, channel, keys("ghost", "r1"))
		notify(t, channel, `{"table":"`+feedTestTable+`","type":"INSERT","record":{"room_id":"r1"}}`)
		notify(t, channel, keys("2", "r1"))

		req.Eventually(func() bool { return len(got.ids()) == 2 }, 5*time.Second, 10*time.Millisecond)
		req.Equal([]string{"1", "2"}, got.ids())

		var first struct {
			Content string `json:"content"`
		}
		got.mu.Lock()
		req.NoError(json.Unmarshal(got.events[0].Record, &first))
		got.mu.Unlock()
		req.Equal(large, first.Content)

		req.NoError(ch.Err())
		ch.Close()
		ch.Close()
		req.NoError(ch.Err())
	})

	t.Run("should terminate when the listen connection is killed", func(t *testing.T) {
		req := require.New(t)
		channel := "appdam_feed_kill"
		pg := NewPostgres(pool, channel)

		ch, err := pg.Subscribe(ctx, feedTestTopic("r1"), func(Event) {})
		req.NoError(err)
		defer ch.Close()

		_, err = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
			WHERE query LIKE '%`+channel+`%' AND pid <> pg_backend_pid()`)
		req.NoError(err)

		select {
		case <-ch.Done():
		case <-time.After(5 * time.Second):
			req.Fail("channel did not terminate")
		}
		req.ErrorContains(ch.Err(), "waiting for notification")
	})
}
