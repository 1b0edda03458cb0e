package postgres

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/chat"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/app/storage"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

// MessageRepository stores message rows with pgx, media in the blob store, and serves live
// streams from a chat.Registry over the configured feed.
type MessageRepository struct {
	messages  MessageStore
	identity  Identity
	blobs     storage.BlobStore
	registry  *chat.Registry
	signedTTL time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

var _ domain.MessageRepository = (*MessageRepository)(nil)

type MessageOption func(*MessageRepository)

// WithSignedURLTTL sets how long MediaURL links stay valid.
func WithSignedURLTTL(d time.Duration) MessageOption {
	return func(r *MessageRepository) {
		if d > 0 {
			r.signedTTL = d
		}
	}
}

func NewMessageRepository(messages MessageStore, identity Identity, blobs storage.BlobStore, f feed.Feed, opts ...MessageOption) *MessageRepository {
	r := &MessageRepository{
		messages:  messages,
		identity:  identity,
		blobs:     blobs,
		registry:  chat.NewRegistry(f),
		signedTTL: storage.DefaultSignedURLTTL,
		now:       time.Now,
		logger:    logx.Component("repository.postgres"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendMessage uploads attached media on behalf of the signed-in caller, then inserts the
// row. When the insert fails the uploaded object is removed again.
func (r *MessageRepository) SendMessage(ctx context.Context, p domain.SendMessageParams) (domain.Message, error) {
	if err := p.Validate(); err != nil {
		return domain.Message{}, err
	}

	msgType, _ := domain.ParseMessageType(string(p.Type))
	params := db.InsertMessageParams{
		RoomID:   p.RoomID,
		SenderID: p.SenderID,
		Content:  p.Content,
		Type:     string(msgType),
	}

	if p.HasMedia() {
		key, err := r.upload(ctx, *p.Media)
		if err != nil {
			return domain.Message{}, err
		}
		params.FileURL = &key
	}

	row, err := r.messages.InsertMessage(ctx, params)
	if err != nil {
		if params.FileURL != nil {
			r.discard(*params.FileURL)
		}
		return domain.Message{}, errs.Wrap(errs.ErrPersistence, err)
	}

	metrics.MessagesSent.WithLabelValues(row.Type).Inc()
	return messageFromRow(row)
}

func (r *MessageRepository) upload(ctx context.Context, media domain.Media) (string, error) {
	callerID, err := r.identity.CurrentUserID(ctx)
	if errs.IsKind(err, errs.KindAuth) {
		return "", errs.NewError(errs.ErrUploadUnauthenticated)
	}
	if err != nil {
		return "", err
	}
	return storage.UploadMedia(ctx, r.blobs, callerID, media, r.now())
}

// discard deletes an orphaned upload. It runs detached from the request context, which
// may already be cancelled.
func (r *MessageRepository) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.blobs.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove orphaned media")
	}
}

// GetMessagesByRoom skips rows that no longer form a valid message instead of failing the
// whole history.
func (r *MessageRepository) GetMessagesByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	rows, err := r.messages.ListMessagesByRoom(ctx, roomID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		m, err := messageFromRow(row)
		if err != nil {
			metrics.FeedEventsDropped.Inc()
			r.logger.Warn().Err(err).Str("message_id", row.ID).Msg("Skipping invalid message row")
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *MessageRepository) SubscribeToMessages(ctx context.Context, roomID string) (domain.MessageStream, error) {
	sub, err := r.registry.Subscribe(ctx, roomID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}
	return sub, nil
}

func (r *MessageRepository) MediaURL(ctx context.Context, fileURL string) (string, error) {
	return storage.SignedURL(ctx, r.blobs, fileURL, r.signedTTL)
}

// Close tears down every live subscription.
func (r *MessageRepository) Close() {
	r.registry.Shutdown()
}

func messageFromRow(row db.MessageRow) (domain.Message, error) {
	return chat.MessageRecord{
		ID:        row.ID,
		Content:   row.Content,
		RoomID:    row.RoomID,
		SenderID:  row.SenderID,
		FileURL:   row.FileURL,
		Type:      row.Type,
		CreatedAt: row.CreatedAt,
		Seq:       row.Seq,
	}.ToDomain()
}
