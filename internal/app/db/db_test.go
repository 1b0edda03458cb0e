package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestErrorHelpers(t *testing.T) {
	req := require.New(t)

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	req.True(IsUniqueViolation(dup))
	req.Equal("users_email_key", ConstraintName(dup))

	req.False(IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	req.False(IsUniqueViolation(pgx.ErrNoRows))
	req.Equal("", ConstraintName(pgx.ErrNoRows))

	req.True(IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	req.False(IsNotFound(dup))
}

// newTestPool connects to TEST_DATABASE_URL, migrates and truncates every table.
// Tests calling it are skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE messages, room_members, rooms, users CASCADE`)
	require.NoError(t, err)

	return pool
}

func TestQueries(t *testing.T) {
	pool := newTestPool(t)
	q := New(pool)
	ctx := context.Background()

	t.Run("should enforce case insensitive unique emails", func(t *testing.T) {
		req := require.New(t)

		_, err := q.CreateUser(ctx, CreateUserParams{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
		req.NoError(err)

		_, err = q.CreateUser(ctx, CreateUserParams{Name: "Ana", Email: "ANA@example.com", PasswordHash: "h"})
		req.True(IsUniqueViolation(err))

		_, err = q.GetUserByEmail(ctx, "nobody@example.com")
		req.True(IsNotFound(err))
	})

	t.Run("should list messages by creation time then arrival", func(t *testing.T) {
		req := require.New(t)

		user, err := q.CreateUser(ctx, CreateUserParams{Name: "Bia", Email: "bia@example.com", PasswordHash: "h"})
		req.NoError(err)
		room, err := q.CreateRoom(ctx, CreateRoomParams{Name: "Trilha", Code: "abc123", PasswordHash: "h", CreatorID: user.ID})
		req.NoError(err)
		req.NoError(q.AddRoomMember(ctx, room.ID, user.ID))
		req.NoError(q.AddRoomMember(ctx, room.ID, user.ID))

		member, err := q.IsRoomMember(ctx, room.ID, user.ID)
		req.NoError(err)
		req.True(member)
		member, err = q.IsRoomMember(ctx, room.ID, "someone-else")
		req.NoError(err)
		req.False(member)

		rooms, err := q.ListRoomsForUser(ctx, user.ID)
		req.NoError(err)
		req.Len(rooms, 1)

		var inserted []string
		for i := range 3 {
			m, err := q.InsertMessage(ctx, InsertMessageParams{RoomID: room.ID, SenderID: user.ID, Content: fmt.Sprint(i), Type: "text"})
			req.NoError(err)
			inserted = append(inserted, m.ID)
		}

		// Move the first message after the others.
		_, err = pool.Exec(ctx, `UPDATE messages SET created_at = now() + interval '1 minute' WHERE id = $1`, inserted[0])
		req.NoError(err)

		rows, err := q.ListMessagesByRoom(ctx, room.ID)
		req.NoError(err)
		req.Len(rows, 3)
		req.Equal([]string{inserted[1], inserted[2], inserted[0]}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
		req.True(rows[2].CreatedAt.After(time.Now().Add(30 * time.Second)))
	})

	t.Run("should notify only the key columns of large messages", func(t *testing.T) {
		req := require.New(t)
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		user, err := q.CreateUser(ctx, CreateUserParams{Name: "Caio", Email: "caio@example.com", PasswordHash: "h"})
		req.NoError(err)
		room, err := q.CreateRoom(ctx, CreateRoomParams{Name: "Longa", Code: "big001", PasswordHash: "h", CreatorID: user.ID})
		req.NoError(err)

		listener, err := pool.Acquire(ctx)
		req.NoError(err)
		defer listener.Release()
		_, err = listener.Exec(ctx, "LISTEN appdam_changes")
		req.NoError(err)
		defer func() { _, _ = listener.Exec(context.Background(), "UNLISTEN *") }()

		content := strings.Repeat("a", 10000)
		m, err := q.InsertMessage(ctx, InsertMessageParams{RoomID: room.ID, SenderID: user.ID, Content: content, Type: "text"})
		req.NoError(err)
		req.Equal(content, m.Content)

		n, err := listener.Conn().WaitForNotification(waitCtx)
		req.NoError(err)
		req.Less(len(n.Payload), 512)

		var payload struct {
			Table  string `json:"table"`
			Type   string `json:"type"`
			Record struct {
				ID     string `json:"id"`
				RoomID string `json:"room_id"`
				Seq    int64  `json:"seq"`
			} `json:"record"`
		}
		req.NoError(json.Unmarshal([]byte(n.Payload), &payload))
		req.Equal("messages", payload.Table)
		req.Equal("INSERT", payload.Type)
		req.Equal(m.ID, payload.Record.ID)
		req.Equal(room.ID, payload.Record.RoomID)
		req.Positive(payload.Record.Seq)
	})
}
