package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the statements of the application against a DBTX.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// --- users ---

type UserRow struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Latitude     *float64
	Longitude    *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const userColumns = `id, name, email, password_hash, latitude, longitude, created_at, updated_at`

func scanUser(row pgx.Row) (UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Latitude, &u.Longitude, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type CreateUserParams struct {
	// ID is optional; the database generates one when empty.
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Latitude     *float64
	Longitude    *float64
}

const createUser = `
INSERT INTO users (id, name, email, password_hash, latitude, longitude)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (UserRow, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.ID, arg.Name, arg.Email, arg.PasswordHash, arg.Latitude, arg.Longitude))
}

const upsertUser = `
INSERT INTO users (id, name, email, password_hash, latitude, longitude)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    email = EXCLUDED.email,
    password_hash = COALESCE(NULLIF(EXCLUDED.password_hash, ''), users.password_hash),
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    updated_at = now()`

// UpsertUser inserts or overwrites a user. An empty hash keeps the stored one.
func (q *Queries) UpsertUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.Exec(ctx, upsertUser,
		arg.ID, arg.Name, arg.Email, arg.PasswordHash, arg.Latitude, arg.Longitude)
	return err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id string) (UserRow, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

type UpdateUserParams struct {
	ID    string
	Name  string
	Email string
	// PasswordHash replaces the stored hash when non-nil.
	PasswordHash *string
	Latitude     *float64
	Longitude    *float64
}

const updateUser = `
UPDATE users SET
    name = $2,
    email = $3,
    password_hash = COALESCE($4, password_hash),
    latitude = $5,
    longitude = $6,
    updated_at = now()
WHERE id = $1`

// UpdateUser returns the number of updated rows.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateUser,
		arg.ID, arg.Name, arg.Email, arg.PasswordHash, arg.Latitude, arg.Longitude)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteUser returns the number of deleted rows.
func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- rooms ---

type RoomRow struct {
	ID           string
	Name         string
	Code         string
	PasswordHash string
	CreatorID    string
	CreatedAt    time.Time
}

const roomColumns = `r.id, r.name, r.code, r.password_hash, r.creator_id, r.created_at`

func scanRoom(row pgx.Row) (RoomRow, error) {
	var r RoomRow
	err := row.Scan(&r.ID, &r.Name, &r.Code, &r.PasswordHash, &r.CreatorID, &r.CreatedAt)
	return r, err
}

type CreateRoomParams struct {
	Name         string
	Code         string
	PasswordHash string
	CreatorID    string
}

const createRoom = `
INSERT INTO rooms AS r (name, code, password_hash, creator_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + roomColumns

func (q *Queries) CreateRoom(ctx context.Context, arg CreateRoomParams) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, createRoom, arg.Name, arg.Code, arg.PasswordHash, arg.CreatorID))
}

const getRoomByCode = `SELECT ` + roomColumns + ` FROM rooms r WHERE r.code = $1`

func (q *Queries) GetRoomByCode(ctx context.Context, code string) (RoomRow, error) {
	return scanRoom(q.db.QueryRow(ctx, getRoomByCode, code))
}

const addRoomMember = `
INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
ON CONFLICT (room_id, user_id) DO NOTHING`

// AddRoomMember is idempotent.
func (q *Queries) AddRoomMember(ctx context.Context, roomID, userID string) error {
	_, err := q.db.Exec(ctx, addRoomMember, roomID, userID)
	return err
}

const listRoomsForUser = `
SELECT ` + roomColumns + `
FROM rooms r
JOIN room_members m ON m.room_id = r.id
WHERE m.user_id = $1
ORDER BY m.joined_at`

func (q *Queries) ListRoomsForUser(ctx context.Context, userID string) ([]RoomRow, error) {
	rows, err := q.db.Query(ctx, listRoomsForUser, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RoomRow, error) {
		return scanRoom(row)
	})
}

const isRoomMember = `SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`

func (q *Queries) IsRoomMember(ctx context.Context, roomID, userID string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, isRoomMember, roomID, userID).Scan(&ok)
	return ok, err
}

// --- messages ---

type MessageRow struct {
	ID        string
	Seq       int64
	RoomID    string
	SenderID  string
	Content   string
	Type      string
	FileURL   *string
	CreatedAt time.Time
}

const messageColumns = `id, seq, room_id, sender_id, content, type, file_url, created_at`

func scanMessage(row pgx.Row) (MessageRow, error) {
	var m MessageRow
	err := row.Scan(&m.ID, &m.Seq, &m.RoomID, &m.SenderID, &m.Content, &m.Type, &m.FileURL, &m.CreatedAt)
	return m, err
}

type InsertMessageParams struct {
	RoomID   string
	SenderID string
	Content  string
	Type     string
	FileURL  *string
}

const insertMessage = `
INSERT INTO messages (room_id, sender_id, content, type, file_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + messageColumns

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (MessageRow, error) {
	return scanMessage(q.db.QueryRow(ctx, insertMessage, arg.RoomID, arg.SenderID, arg.Content, arg.Type, arg.FileURL))
}

const listMessagesByRoom = `
SELECT ` + messageColumns + `
FROM messages
WHERE room_id = $1
ORDER BY created_at ASC, seq ASC`

func (q *Queries) ListMessagesByRoom(ctx context.Context, roomID string) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, listMessagesByRoom, roomID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MessageRow, error) {
		return scanMessage(row)
	})
}
