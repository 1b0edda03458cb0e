package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/higgyo/app-dam/internal/domain"
)

// MessageRecord is the row shape of the messages table as it travels in change events.
type MessageRecord struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	FileURL   *string   `json:"file_url"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int64     `json:"seq,omitempty"`
}

// ToDomain rebuilds the domain message of the row.
func (r MessageRecord) ToDomain() (domain.Message, error) {
	params := domain.MessageParams{
		ID:        r.ID,
		Content:   r.Content,
		RoomID:    r.RoomID,
		SenderID:  r.SenderID,
		CreatedAt: r.CreatedAt,
		Type:      domain.MessageType(r.Type),
	}
	if r.FileURL != nil {
		params.FileURL = *r.FileURL
	}
	return domain.NewMessage(params)
}

// RecordFromDomain is the inverse of ToDomain; seq is left for the store to assign.
func RecordFromDomain(m domain.Message) MessageRecord {
	rec := MessageRecord{
		ID:        m.ID(),
		Content:   m.Content(),
		RoomID:    m.RoomID(),
		SenderID:  m.SenderID(),
		Type:      string(m.Type()),
		CreatedAt: m.CreatedAt(),
	}
	if url := m.FileURL(); url != "" {
		rec.FileURL = &url
	}
	return rec
}

// DecodeMessageRecord maps the raw record of a change event to a domain message.
func DecodeMessageRecord(raw json.RawMessage) (domain.Message, error) {
	var rec MessageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode message record: %w", err)
	}
	if rec.ID == "" {
		return domain.Message{}, fmt.Errorf("message record without id")
	}
	return rec.ToDomain()
}
