// Package sqlstore persists records as JSON documents in a single
// ddmrp_records table on postgres or sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ repository.VersionedStore = (*Store)(nil)

type dialect struct {
	driverName string
	sqlite     bool
	schema     string
	// payloadParam is the placeholder used when writing a JSON payload.
	payloadParam string
	orderBy      string
	lockSuffix   string
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS ddmrp_records (
	collection TEXT NOT NULL,
	record_key TEXT NOT NULL,
	payload JSONB NOT NULL,
	version BIGINT NOT NULL DEFAULT 1,
	seq BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, record_key)
)`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ddmrp_records (
	collection TEXT NOT NULL,
	record_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, record_key)
)`

var postgresDialect = dialect{
	driverName:   "postgres",
	schema:       postgresSchema,
	payloadParam: "CAST(? AS JSONB)",
	orderBy:      "seq",
	lockSuffix:   " FOR UPDATE",
}

var dialects = map[string]dialect{
	"postgres": postgresDialect,
	"pgx": func() dialect {
		d := postgresDialect
		d.driverName = "pgx"
		return d
	}(),
	"sqlite": {
		driverName:   "sqlite",
		sqlite:       true,
		schema:       sqliteSchema,
		payloadParam: "?",
		orderBy:      "rowid",
	},
}

// Store implements repository.VersionedStore over a DB.
type Store struct {
	db *DB
}

// NewStore wraps db and makes sure the records table exists.
func NewStore(ctx context.Context, db *DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, db.dialect.schema); err != nil {
		return nil, fmt.Errorf("create ddmrp_records table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, collection string, filter repository.Filter) ([]repository.Record, error) {
	query := "SELECT payload FROM ddmrp_records WHERE collection = ?"
	args := []interface{}{collection}

	// Postgres narrows by containment; every condition is still checked below.
	pushed := false
	if !s.db.dialect.sqlite && len(filter.Equals) > 0 {
		doc, err := json.Marshal(filter.Equals)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		query += " AND payload @> CAST(? AS JSONB)"
		args = append(args, string(doc))
		pushed = len(filter.In) == 0 && len(filter.Ranges) == 0
	}
	query += " ORDER BY " + s.db.dialect.orderBy
	if pushed && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var out []repository.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		var rec repository.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", collection, err)
		}
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, collection string, records []repository.Record, conflictKey ...string) error {
	fields, err := repository.ConflictKey(collection, conflictKey)
	if err != nil {
		return err
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		if keys[i], err = repository.KeyOf(rec, fields); err != nil {
			return err
		}
	}

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i, rec := range records {
			if err := s.upsertTx(ctx, tx, collection, keys[i], rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) upsertTx(ctx context.Context, tx *sqlx.Tx, collection, key string, rec repository.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO ddmrp_records (collection, record_key, payload, version, created_at, updated_at)
		VALUES (?, ?, %s, 1, ?, ?)
		ON CONFLICT (collection, record_key) DO UPDATE SET
			payload = excluded.payload,
			version = ddmrp_records.version + 1,
			updated_at = excluded.updated_at`, s.db.dialect.payloadParam)
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), collection, key, string(payload), now, now); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, collection string, records []repository.Record) error {
	query := fmt.Sprintf(`INSERT INTO ddmrp_records (collection, record_key, payload, version, created_at, updated_at)
		VALUES (?, ?, %s, 1, ?, ?)`, s.db.dialect.payloadParam)

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(query))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now().UTC()
		for _, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode %s record: %w", collection, err)
			}
			if _, err := stmt.ExecContext(ctx, collection, uuid.NewString(), string(payload), now, now); err != nil {
				return fmt.Errorf("insert %s: %w", collection, err)
			}
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, collection string, filter repository.Filter) (int, error) {
	removed := 0
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := tx.QueryxContext(ctx, tx.Rebind("SELECT record_key, payload FROM ddmrp_records WHERE collection = ?"), collection)
		if err != nil {
			return fmt.Errorf("select %s: %w", collection, err)
		}
		var keys []string
		for rows.Next() {
			var (
				key     string
				payload []byte
			)
			if err := rows.Scan(&key, &payload); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan %s: %w", collection, err)
			}
			var rec repository.Record
			if err := json.Unmarshal(payload, &rec); err != nil {
				_ = rows.Close()
				return fmt.Errorf("decode %s payload: %w", collection, err)
			}
			if filter.Matches(rec) {
				keys = append(keys, key)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM ddmrp_records WHERE collection = ? AND record_key = ?"), collection, key); err != nil {
				return fmt.Errorf("delete %s/%s: %w", collection, key, err)
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}

func (s *Store) CompareAndSwap(ctx context.Context, collection string, record repository.Record, versionField string, expected int64, conflictKey ...string) error {
	fields, err := repository.ConflictKey(collection, conflictKey)
	if err != nil {
		return err
	}
	key, err := repository.KeyOf(record, fields)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var payload []byte
		query := "SELECT payload FROM ddmrp_records WHERE collection = ? AND record_key = ?" + s.db.dialect.lockSuffix
		err := tx.QueryRowxContext(ctx, tx.Rebind(query), collection, key).Scan(&payload)

		var current int64
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if expected != 0 {
				return repository.ErrVersionConflict
			}
			// FOR UPDATE locks nothing when the row is missing; the insert
			// itself decides which concurrent writer wins.
			return s.insertAbsentTx(ctx, tx, collection, key, record)
		case err != nil:
			return fmt.Errorf("select %s/%s: %w", collection, key, err)
		default:
			var stored repository.Record
			if err := json.Unmarshal(payload, &stored); err != nil {
				return fmt.Errorf("decode %s payload: %w", collection, err)
			}
			current = repository.VersionOf(stored, versionField)
		}

		if current != expected {
			return repository.ErrVersionConflict
		}
		return s.upsertTx(ctx, tx, collection, key, record)
	})
}

func (s *Store) insertAbsentTx(ctx context.Context, tx *sqlx.Tx, collection, key string, rec repository.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO ddmrp_records (collection, record_key, payload, version, created_at, updated_at)
		VALUES (?, ?, %s, 1, ?, ?)
		ON CONFLICT (collection, record_key) DO NOTHING`, s.db.dialect.payloadParam)
	res, err := tx.ExecContext(ctx, tx.Rebind(query), collection, key, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, key, err)
	}
	if n == 0 {
		return repository.ErrVersionConflict
	}
	return nil
}
