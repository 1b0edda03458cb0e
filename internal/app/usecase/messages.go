package usecase

import (
	"context"

	"github.com/higgyo/app-dam/internal/app/chat"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/validate"
)

type SendMessageParams struct {
	Content  string
	RoomID   string `validate:"required"`
	SenderID string `validate:"required"`
	Type     string
	// MediaURI and MediaData describe the picked file of image and video messages.
	MediaURI  string
	MediaData []byte
}

type Messages struct {
	repo domain.MessageRepository
}

func NewMessages(repo domain.MessageRepository) *Messages {
	return &Messages{repo: repo}
}

// Send posts a message. Text messages need content; media messages need a file.
func (m *Messages) Send(ctx context.Context, p SendMessageParams) (domain.Message, error) {
	if customErr := validate.Struct(p); customErr != nil {
		return domain.Message{}, customErr
	}

	msgType, err := domain.ParseMessageType(p.Type)
	if err != nil {
		return domain.Message{}, err
	}

	params := domain.SendMessageParams{
		Content:  p.Content,
		RoomID:   p.RoomID,
		SenderID: p.SenderID,
		Type:     msgType,
	}
	if msgType.IsMedia() && (p.MediaURI != "" || len(p.MediaData) > 0) {
		params.Media = &domain.Media{URI: p.MediaURI, Data: p.MediaData}
	}

	if err := params.Validate(); err != nil {
		return domain.Message{}, err
	}
	return m.repo.SendMessage(ctx, params)
}

// History returns the messages of roomID, oldest first.
func (m *Messages) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	if roomID == "" {
		return nil, errs.NewError(errs.ErrRoomIDRequired)
	}
	return m.repo.GetMessagesByRoom(ctx, roomID)
}

// Subscribe streams the messages inserted into roomID from now on.
func (m *Messages) Subscribe(ctx context.Context, roomID string) (domain.MessageStream, error) {
	if roomID == "" {
		return nil, errs.NewError(errs.ErrRoomIDRequired)
	}
	return m.repo.SubscribeToMessages(ctx, roomID)
}

// Watch streams the history of roomID followed by every new message, each exactly once.
// The live subscription is opened before the history is read so nothing inserted in
// between is missed.
func (m *Messages) Watch(ctx context.Context, roomID string) (domain.MessageStream, error) {
	live, err := m.Subscribe(ctx, roomID)
	if err != nil {
		return nil, err
	}

	history, err := m.repo.GetMessagesByRoom(ctx, roomID)
	if err != nil {
		live.Unsubscribe()
		return nil, err
	}

	return chat.NewTimeline(history, live), nil
}

// MediaURL returns a temporary download link for the file of a media message.
func (m *Messages) MediaURL(ctx context.Context, fileURL string) (string, error) {
	if fileURL == "" {
		return "", errs.NewError(errs.ErrMediaNotFound)
	}
	return m.repo.MediaURL(ctx, fileURL)
}
