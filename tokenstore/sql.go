package tokenstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/contentai-pro/dashboard-core/sqlutil"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its configuration in globals
var migrateMu sync.Mutex

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const openTimeout = 10 * time.Second

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore keeps the token in a postgres or sqlite table. The token is encrypted, and the
// row is keyed by a hash of the namespace so several installs can share one database.
type SQLStore struct {
	db        *sqlx.DB
	sealer    sealer
	entryHash string
	Now       func() time.Time
}

// NewSQLStore opens the database and brings its schema up to date. driver is one of
// DriverPostgres or DriverSQLite.
func NewSQLStore(driver, dsn, secret, namespace string) (*SQLStore, error) {
	var dialect string
	switch driver {
	case DriverPostgres:
		dialect = "postgres"
	case DriverSQLite:
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("tokenstore: unsupported driver %q", driver)
	}
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	db, err := sqlutil.Open(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: %w", err)
	}
	if err = migrate(db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{
		db:        db,
		sealer:    newSealer(secret),
		entryHash: hashKey(namespace + ":" + Key),
		Now:       time.Now,
	}, nil
}

func migrate(db *sqlx.DB, dialect string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("tokenstore: goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("tokenstore: migrate: %w", err)
	}
	return nil
}

type tokenRow struct {
	TokenEncrypted string `db:"token_encrypted"`
	ExpiresAt      int64  `db:"expires_at"`
}

func (s *SQLStore) Get(ctx context.Context) (token string, err error) {
	err = sqlutil.WithTransaction(ctx, s.db, func(txn *sqlx.Tx) error {
		var row tokenRow
		err := txn.GetContext(ctx, &row, txn.Rebind(
			`SELECT token_encrypted, expires_at FROM contentai_session_tokens WHERE entry_hash=?`,
		), s.entryHash)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoToken
		}
		if err != nil {
			return err
		}
		if (record{ExpiresAt: row.ExpiresAt}).expired(s.Now()) {
			_, err = txn.ExecContext(ctx, txn.Rebind(
				`DELETE FROM contentai_session_tokens WHERE entry_hash=?`,
			), s.entryHash)
			if err != nil {
				return err
			}
			logger.Debug().Msg("persisted token expired, removed")
			token = ""
			return nil
		}
		token, err = s.sealer.decrypt(row.TokenEncrypted)
		return err
	})
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (s *SQLStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	enc, err := s.sealer.encrypt(token)
	if err != nil {
		return err
	}
	now := s.Now()
	return sqlutil.WithTransaction(ctx, s.db, func(txn *sqlx.Tx) error {
		_, err := txn.ExecContext(ctx, txn.Rebind(
			`DELETE FROM contentai_session_tokens WHERE entry_hash=?`,
		), s.entryHash)
		if err != nil {
			return err
		}
		_, err = txn.ExecContext(ctx, txn.Rebind(
			`INSERT INTO contentai_session_tokens(entry_hash, token_encrypted, expires_at, updated_at)
			VALUES (?, ?, ?, ?)`,
		), s.entryHash, enc, now.Add(ttl).UnixMilli(), now.UnixMilli())
		return err
	})
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM contentai_session_tokens WHERE entry_hash=?`,
	), s.entryHash)
	return err
}

// PurgeExpired deletes every expired entry in the table, whichever namespace wrote it.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM contentai_session_tokens WHERE expires_at <= ?`,
	), s.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
