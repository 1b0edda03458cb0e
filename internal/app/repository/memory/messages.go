package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/higgyo/app-dam/internal/app/chat"
	"github.com/higgyo/app-dam/internal/app/storage"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
)

// MessageRepository is the in-memory domain.MessageRepository. Live streams are served by
// a chat.Registry over the store's feed.
type MessageRepository struct {
	store     *Store
	registry  *chat.Registry
	signedTTL time.Duration
	logger    zerolog.Logger
}

var _ domain.MessageRepository = (*MessageRepository)(nil)

func NewMessageRepository(store *Store) *MessageRepository {
	return &MessageRepository{
		store:     store,
		registry:  chat.NewRegistry(store.Feed()),
		signedTTL: storage.DefaultSignedURLTTL,
		logger:    logx.Component("repository.memory"),
	}
}

func (r *MessageRepository) SendMessage(ctx context.Context, p domain.SendMessageParams) (domain.Message, error) {
	if err := p.Validate(); err != nil {
		return domain.Message{}, err
	}

	msgType, _ := domain.ParseMessageType(string(p.Type))
	rec := chat.MessageRecord{
		Content:  p.Content,
		RoomID:   p.RoomID,
		SenderID: p.SenderID,
		Type:     string(msgType),
	}

	if p.HasMedia() {
		key, err := storage.UploadMedia(ctx, r.store.Blobs(), r.store.CurrentUserID(), *p.Media, r.store.now())
		if err != nil {
			return domain.Message{}, err
		}
		rec.FileURL = &key
	}

	stored, err := r.store.InsertMessage(rec)
	if err != nil {
		if rec.FileURL != nil {
			if delErr := r.store.Blobs().Delete(ctx, *rec.FileURL); delErr != nil {
				r.logger.Warn().Err(delErr).Str("key", *rec.FileURL).Msg("Failed to remove orphaned media")
			}
		}
		return domain.Message{}, errs.Wrap(errs.ErrPersistence, err)
	}

	metrics.MessagesSent.WithLabelValues(stored.Type).Inc()
	return stored.ToDomain()
}

// GetMessagesByRoom skips records that no longer form a valid message.
func (r *MessageRepository) GetMessagesByRoom(_ context.Context, roomID string) ([]domain.Message, error) {
	r.store.mu.RLock()
	records := lo.Filter(r.store.messages, func(rec chat.MessageRecord, _ int) bool {
		return rec.RoomID == roomID
	})
	r.store.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Seq < records[j].Seq
	})

	messages := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		m, err := rec.ToDomain()
		if err != nil {
			metrics.FeedEventsDropped.Inc()
			r.logger.Warn().Err(err).Str("message_id", rec.ID).Msg("Skipping invalid message row")
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
	return storage.SignedURL(ctx, r.store.Blobs(), fileURL, r.signedTTL)
}

// Close tears down every live subscription.
func (r *MessageRepository) Close() {
	r.registry.Shutdown()
}
