package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
)

// sqliteBusyTimeoutMs is how long a writer waits for a competing lock.
const sqliteBusyTimeoutMs = 5000

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return validationError("sqlite path must not be empty", "output.sqlite.path", "")
	}
	return nil
}

// Open opens the database file in WAL mode and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Output.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				Context("path", dir).
				Build()
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL", path, sqliteBusyTimeoutMs)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		getLogger().Error("failed to open SQLite database",
			logger.String("path", path),
			logger.Error(err))
		return dbError(err, "open", "db_type", "sqlite", "path", path)
	}

	store.DB = db
	if err := performAutoMigration(db, "sqlite", store.metrics); err != nil {
		_ = store.DataStore.Close()
		return err
	}

	getLogger().Info("SQLite database opened", logger.String("path", path))
	return nil
}
