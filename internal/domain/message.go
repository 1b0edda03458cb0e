package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

// MessageType tells how Content and FileURL of a message are interpreted.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
)

// ParseMessageType maps the wire value onto a MessageType. Empty means text.
func ParseMessageType(raw string) (MessageType, error) {
	switch t := MessageType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return MessageText, nil
	case MessageText, MessageImage, MessageVideo:
		return t, nil
	default:
		return "", errs.NewError(errs.ErrInvalidMessageType, raw)
	}
}

// IsMedia reports whether messages of this type carry an uploaded file.
func (t MessageType) IsMedia() bool {
	return t == MessageImage || t == MessageVideo
}

// MessageParams carries the fields of a Message.
type MessageParams struct {
	ID        string
	Content   string
	RoomID    string
	SenderID  string
	CreatedAt time.Time
	Type      MessageType
	FileURL   string
}

// Message is an immutable chat entry belonging to exactly one room and one sender.
type Message struct {
	id        string
	content   string
	roomID    string
	senderID  string
	createdAt time.Time
	kind      MessageType
	fileURL   string
}

// NewMessage builds a Message. Content may be empty only when a file is attached;
// whitespace counts as content.
// A zero CreatedAt is stamped with the current UTC time.
func NewMessage(p MessageParams) (Message, error) {
	if strings.TrimSpace(p.RoomID) == "" {
		return Message{}, errs.NewError(errs.ErrRoomIDRequired)
	}
	if strings.TrimSpace(p.SenderID) == "" {
		return Message{}, errs.NewError(errs.ErrSenderIDRequired)
	}
	if p.Content == "" && p.FileURL == "" {
		return Message{}, errs.NewError(errs.ErrMessageEmpty)
	}

	kind, err := ParseMessageType(string(p.Type))
	if err != nil {
		return Message{}, err
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return Message{
		id:        id,
		content:   p.Content,
		roomID:    p.RoomID,
		senderID:  p.SenderID,
		createdAt: createdAt,
		kind:      kind,
		fileURL:   p.FileURL,
	}, nil
}

func (m Message) ID() string { return m.id }
func (m Message) Content() string { return m.content }
func (m Message) RoomID() string { return m.roomID }
func (m Message) SenderID() string { return m.senderID }
func (m Message) CreatedAt() time.Time { return m.createdAt }
func (m Message) Type() MessageType { return m.kind }
func (m Message) FileURL() string { return m.fileURL }

// HasMedia reports whether the message carries a file that must be uploaded first.
func (p SendMessageParams) HasMedia() bool {
	return p.Type.IsMedia() && p.Media != nil
}

// Validate checks the params as a message would, counting attached media as its file.
func (p SendMessageParams) Validate() error {
	draft := MessageParams{
		Content:  p.Content,
		RoomID:   p.RoomID,
		SenderID: p.SenderID,
		Type:     p.Type,
	}
	if p.HasMedia() {
		draft.FileURL = p.Media.URI
		if draft.FileURL == "" {
			draft.FileURL = "media"
		}
	}
	_, err := NewMessage(draft)
	return err
}
