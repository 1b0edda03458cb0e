package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/app/repository/memory"
	"github.com/higgyo/app-dam/internal/app/repository/postgres"
	"github.com/higgyo/app-dam/internal/app/session"
	"github.com/higgyo/app-dam/internal/app/storage"
	"github.com/higgyo/app-dam/internal/app/usecase"
	"github.com/higgyo/app-dam/internal/configs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
)

// app is the composition root shared by all subcommands.
type app struct {
	users    *usecase.Users
	rooms    *usecase.Rooms
	messages *usecase.Messages
	session  *session.Session

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openFromEnv(ctx context.Context) (*app, error) {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout carries command output, so logs always go to stderr.
	if cfg.IsDevelopment() {
		logx.InitGlobalLogger(true)
	} else {
		logx.Configure(os.Stderr, zerolog.WarnLevel)
	}

	if cfg.Mode == configs.ModeMemory {
		return newMemoryApp(cfg), nil
	}
	return newRemoteApp(ctx, cfg)
}

func newMemoryApp(cfg *configs.ClientConfig) *app {
	store := memory.NewStore()
	messages := memory.NewMessageRepository(store)

	a := &app{
		users:    usecase.NewUsers(memory.NewUserRepository(store)),
		rooms:    usecase.NewRooms(memory.NewRoomRepository(store)),
		messages: usecase.NewMessages(messages),
		closers:  []func(){messages.Close},
	}
	a.session = session.New(a.users, session.WithAutoLogin(cfg.AutoLoginAfterRegister))
	return a
}

func newRemoteApp(ctx context.Context, cfg *configs.ClientConfig) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var tokens backend.TokenStore = backend.NewMemoryTokenStore()
	if cfg.SessionDir != "" {
		persisted, err := backend.OpenBadgerTokenStore(cfg.SessionDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := persisted.Close(); err != nil {
				logx.Error(err, "Failed to close session store")
			}
		})
		tokens = persisted
	}
	client := backend.NewClient(cfg.BackendURL, tokens, backend.WithTimeout(cfg.BackendTimeout))

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	queries := db.New(pool)

	blobs, err := storage.NewS3(ctx, storage.S3Config{
		Bucket:          cfg.S3BucketName,
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure media storage: %w", err)
	}

	var changes feed.Feed
	switch cfg.FeedDriver {
	case configs.FeedRealtime:
		changes = feed.NewRealtime(cfg.RealtimeURL, cfg.BackendAPIKey, client.AccessToken)
	default:
		changes = feed.NewPostgres(pool, feed.DefaultNotifyChannel)
	}

	messages := postgres.NewMessageRepository(queries, client, blobs, changes,
		postgres.WithSignedURLTTL(cfg.SignedURLTTL))
	a.closers = append(a.closers, messages.Close)

	a.users = usecase.NewUsers(postgres.NewUserRepository(client, queries))
	a.rooms = usecase.NewRooms(postgres.NewRoomRepository(client, queries))
	a.messages = usecase.NewMessages(messages)
	a.session = session.New(a.users, session.WithAutoLogin(cfg.AutoLoginAfterRegister))
	return a, nil
}
