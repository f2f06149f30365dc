package credstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"breakwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:breakwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (model.Credential, bool, error) {
	if s.db == nil {
		return model.Credential{}, false, nil
	}
	var token, expires string
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, expires_at FROM credentials WHERE id = 1`).Scan(&token, &expires)
	if err == sql.ErrNoRows {
		return model.Credential{}, false, nil
	}
	if err != nil {
		return model.Credential{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return model.Credential{}, false, err
	}
	return model.Credential{AccessToken: token, ExpiresAt: ts}, true, nil
}

func (s *sqliteStore) Save(ctx context.Context, cred model.Credential) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, access_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		cred.AccessToken,
		cred.ExpiresAt.UTC().Format(time.RFC3339Nano),
		nowUTC().Format(time.RFC3339Nano),
	)
	return err
}
