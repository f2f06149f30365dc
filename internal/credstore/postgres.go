package credstore

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"breakwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/breakwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

func (s *postgresStore) Load(ctx context.Context) (model.Credential, bool, error) {
	if s.db == nil {
		return model.Credential{}, false, nil
	}
	var cred model.Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, expires_at FROM credentials WHERE id = 1`).
		Scan(&cred.AccessToken, &cred.ExpiresAt)
	if err == sql.ErrNoRows {
		return model.Credential{}, false, nil
	}
	if err != nil {
		return model.Credential{}, false, err
	}
	return cred, true, nil
}

func (s *postgresStore) Save(ctx context.Context, cred model.Credential) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, access_token, expires_at, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		cred.AccessToken,
		cred.ExpiresAt.UTC(),
		nowUTC(),
	)
	return err
}
