package credstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"breakwatch/internal/config"
	"breakwatch/internal/model"
)

// Store holds the single cached vendor credential between requests
// (and, for the database drivers, across restarts and instances).
type Store interface {
	Init(ctx context.Context) error
	Load(ctx context.Context) (model.Credential, bool, error)
	Save(ctx context.Context, cred model.Credential) error
	Close() error
}

func NewStore(cfg config.CredentialsConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported credentials driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	cred model.Credential
	set  bool
}

func NewMemory() Store {
	return &memoryStore{}
}

func (m *memoryStore) Init(ctx context.Context) error { return nil }

func (m *memoryStore) Load(ctx context.Context) (model.Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, m.set, nil
}

func (m *memoryStore) Save(ctx context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	m.set = true
	return nil
}

func (m *memoryStore) Close() error { return nil }

func nowUTC() time.Time {
	return time.Now().UTC()
}
