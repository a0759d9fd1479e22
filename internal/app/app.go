// Package app wires the client core from configuration. Screens receive an *App
// instead of reaching for package-level state.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"bookworm/internal/common/config"
	publish "bookworm/internal/features/book"
	"bookworm/internal/features/feed"
	"bookworm/internal/features/session"
	"bookworm/internal/platform/api"
	"bookworm/internal/platform/kv"
)

type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	KV        kv.Store
	Client    *api.Client
	Session   *session.Store
	Books     *api.Books
	Publisher *publish.Publisher
}

// New builds the App. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store, log), nil
}

// NewWithStore builds the App on an already opened store.
func NewWithStore(cfg *config.Config, store kv.Store, log zerolog.Logger) *App {
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log)
	sess := session.NewStore(client, store, log)
	books := api.NewBooks(client, sess)

	return &App{
		Config:    cfg,
		Log:       log,
		KV:        store,
		Client:    client,
		Session:   sess,
		Books:     books,
		Publisher: publish.NewPublisher(books, log),
	}
}

// OpenStore opens the key-value backend named by STORAGE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return kv.NewMemory(), nil
	case config.StorageSQLite:
		path, err := cfg.StoragePath()
		if err != nil {
			return nil, err
		}
		return kv.OpenSQLite(path)
	case config.StorageRedis:
		return kv.OpenRedis(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Storage.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// NewFeed returns a loader for one screen. Loaders are not shared between screens.
func (a *App) NewFeed() *feed.Loader {
	return feed.NewLoader(a.Books, a.Config.Feed.PageSize, a.Log)
}

func (a *App) Close() error {
	return a.KV.Close()
}
