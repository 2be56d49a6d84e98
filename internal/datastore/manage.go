package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
)

// slowQueryThreshold is the duration above which queries are logged at WARN.
const slowQueryThreshold = 200 * time.Millisecond

// gormConfig returns the GORM settings shared by both backends.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.NewGormLoggerAdapter(getLogger().Module("gorm"), slowQueryThreshold),
		TranslateError:         true,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// performAutoMigration creates or updates the scan_records table.
func performAutoMigration(db *gorm.DB, dbType string, rec metrics.Recorder) error {
	migrationStart := time.Now()
	log := getLogger().With(logger.String("db_type", dbType))

	log.Debug("starting database migration")

	tableExisted := db.Migrator().HasTable(&ScanRecord{})
	if err := db.AutoMigrate(&ScanRecord{}); err != nil {
		rec.RecordOperation(metrics.OpMigrate, metrics.StatusError)
		rec.RecordError(metrics.OpMigrate, errorType(err))
		return dbError(err, "auto_migrate", "db_type", dbType)
	}

	action := "updated"
	if !tableExisted {
		action = "created"
	}

	elapsed := time.Since(migrationStart)
	rec.RecordOperation(metrics.OpMigrate, metrics.StatusSuccess)
	rec.RecordDuration(metrics.OpMigrate, elapsed.Seconds())

	log.Info("database migration completed",
		logger.String("table", ScanRecord{}.TableName()),
		logger.String("action", action),
		logger.Duration("duration", elapsed))
	return nil
}
