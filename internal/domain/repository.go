package domain

import "context"

//go:generate mockgen -source=repository.go -destination=mocks/repository.go -package=mocks

// UserRepository abstracts the authentication service and the users table.
// Finders return a nil user and a nil error when nothing matches.
type UserRepository interface {
	// Login fails with an auth error when the credentials do not match.
	Login(ctx context.Context, email Email, password Password) (User, error)
	// Register fails with a conflict error when the e-mail is already taken.
	Register(ctx context.Context, name string, email Email, password Password) (User, error)
	Logout(ctx context.Context) error
	// CurrentUser returns the user of the persisted session, or nil.
	CurrentUser(ctx context.Context) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, user User) error
	// Update fails with a not found error for unknown ids.
	Update(ctx context.Context, user User) error
	// Delete fails with a not found error for unknown ids.
	Delete(ctx context.Context, id string) error
}

// RoomRepository abstracts room creation and membership. The caller identity comes from
// the current session.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name string, password Password) (Room, error)
	// EnterRoom fails with an auth error when the code is unknown or the password wrong.
	EnterRoom(ctx context.Context, code string, password Password) (Room, error)
	GetRoomsList(ctx context.Context) ([]Room, error)
}

// Media is a file picked by the user, identified by the URI it was read from.
type Media struct {
	URI  string
	Data []byte
}

// SendMessageParams is the input of MessageRepository.SendMessage.
type SendMessageParams struct {
	Content  string
	RoomID   string
	SenderID string
	Type     MessageType
	Media    *Media
}

// MessageStream is a live feed of the messages inserted into one room.
// Unsubscribe closes the channel returned by Messages and may be called any number of times.
// Messages is also closed when the underlying feed fails; Err then returns a
// PersistenceError. After Unsubscribe, Err returns nil.
type MessageStream interface {
	Messages() <-chan Message
	Err() error
	Unsubscribe()
}

// MessageRepository abstracts message rows, their media and the change feed.
type MessageRepository interface {
	SendMessage(ctx context.Context, params SendMessageParams) (Message, error)
	// GetMessagesByRoom returns the room history ordered by creation time, oldest first.
	GetMessagesByRoom(ctx context.Context, roomID string) ([]Message, error)
	// SubscribeToMessages replaces any live stream for the room with a new one.
	SubscribeToMessages(ctx context.Context, roomID string) (MessageStream, error)
	// MediaURL turns a stored file reference into a time limited download URL.
	MediaURL(ctx context.Context, fileURL string) (string, error)
}
