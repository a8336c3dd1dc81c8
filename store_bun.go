package session

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type sessionRecord struct {
	bun.BaseModel `bun:"table:session_records,alias:rec"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunStore is a Store over a single key-value table, for embedders that
// already carry a bun database.
type BunStore struct {
	db *bun.DB
}

// NewBunStore returns a BunStore over db. Call Init before first use.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// Init creates the backing table if it does not exist.
func (s *BunStore) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*sessionRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to create session table").
			WithTextCode(TextCodeStorageFailure)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, key string) (string, error) {
	record := &sessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrRecordNotFound
		}
		return "", goerrors.Wrap(err, ErrStorageFailure.Category, "failed to read session record").
			WithTextCode(TextCodeStorageFailure)
	}

	return record.Value, nil
}

func (s *BunStore) Set(ctx context.Context, key, value string) error {
	record := &sessionRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to write session record").
			WithTextCode(TextCodeStorageFailure)
	}

	return nil
}

func (s *BunStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to delete session record").
			WithTextCode(TextCodeStorageFailure)
	}
	return nil
}
