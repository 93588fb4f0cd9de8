package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Memory opens a private in-memory database instead of a file.
const Memory = ":memory:"

const fileName = "mediahub.db"

type DB struct {
	handler  *sql.DB
	log      zerolog.Logger
	lock     sync.RWMutex
	squirrel sq.StatementBuilderType
}

// NewDB opens mediahub.db inside dir, or an in-memory database when dir is
// Memory, and migrates the schema.
func NewDB(dir string, log zerolog.Logger) (*DB, error) {
	db := &DB{
		log:      log.With().Str("module", "database").Logger(),
		squirrel: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}

	var (
		err error
		DSN = filepath.Join(dir, fileName) + "?_pragma=busy_timeout%3d1000"
	)
	if dir == Memory {
		DSN = "file::memory:?_pragma=busy_timeout%3d1000"
	}

	db.handler, err = sql.Open("sqlite", DSN)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}

	if dir == Memory {
		// every pooled connection would otherwise see its own empty database
		db.handler.SetMaxOpenConns(1)
	} else if _, err = db.handler.Exec(`PRAGMA journal_mode = wal;`); err != nil {
		db.handler.Close()
		return nil, errors.Wrap(err, "unable to enable WAL mode")
	}

	if err := db.Migrate(); err != nil {
		db.handler.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return db, nil
}

// Migrate brings the schema up to date using PRAGMA user_version.
func (db *DB) Migrate() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	var version int
	if err := db.handler.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "failed to query schema version")
	}

	if version == len(migrations) {
		return nil
	} else if version > len(migrations) {
		return errors.Errorf("database schema version (%d) is newer than supported (%d)", version, len(migrations))
	}

	db.log.Info().Msgf("Beginning database schema upgrade from version %v to version: %v", version, len(migrations))

	tx, err := db.handler.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if version == 0 {
		if _, err := tx.Exec(schema); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
		db.log.Info().Msg("Created initial database schema")
	} else {
		for i := version; i < len(migrations); i++ {
			if migrations[i] == "" {
				continue
			}
			db.log.Info().Msgf("Upgrading database schema to version: %v", i+1)
			if _, err := tx.Exec(migrations[i]); err != nil {
				return errors.Wrapf(err, "failed to execute migration #%v", i)
			}
		}
	}

	_, err = tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)))
	if err != nil {
		return errors.Wrap(err, "failed to bump schema version")
	}

	db.log.Info().Msgf("Database schema upgraded to version: %v", len(migrations))
	return tx.Commit()
}

// Version reports the applied schema version.
func (db *DB) Version(ctx context.Context) (int, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	var version int
	if err := db.handler.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, errors.Wrap(err, "failed to query schema version")
	}
	return version, nil
}

func (db *DB) Close() error {
	if _, err := db.handler.Exec(`PRAGMA optimize;`); err != nil {
		return errors.Wrap(err, "query planner optimization")
	}

	return db.handler.Close()
}

func (db *DB) Ping() error {
	return db.handler.Ping()
}
