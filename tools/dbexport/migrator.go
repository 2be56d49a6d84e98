package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/errors"
)

const (
	defaultBatchSize = 1000
	maxBatchSize     = 10000
)

// Migrator copies scan records between two migrated databases.
type Migrator struct {
	Source    *gorm.DB
	Target    *gorm.DB
	BatchSize int
	// Clean deletes every target record first.
	Clean bool
}

// Stats summarizes a copy.
type Stats struct {
	Source   int64
	Copied   int64
	Skipped  int64
	Cleaned  int64
	Duration time.Duration
}

// Print writes a one-table summary.
func (s *Stats) Print(w io.Writer) {
	if s.Cleaned > 0 {
		fmt.Fprintf(w, "cleaned %d existing records\n", s.Cleaned)
	}
	fmt.Fprintf(w, "%-14s %8s %8s %8s %10s\n", "table", "source", "copied", "skipped", "duration")
	fmt.Fprintf(w, "%-14s %8d %8d %8d %10s\n",
		datastore.ScanRecord{}.TableName(), s.Source, s.Copied, s.Skipped, s.Duration.Round(time.Millisecond))
}

// Run copies all source records in primary key order. Rows whose id or code value
// already exists in the target are skipped.
func (m *Migrator) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	target := m.Target.WithContext(ctx)
	source := m.Source.WithContext(ctx)

	if m.Clean {
		res := target.Unscoped().Where("1 = 1").Delete(&datastore.ScanRecord{})
		if res.Error != nil {
			return nil, migrationError(res.Error, "clean_target")
		}
		stats.Cleaned = res.RowsAffected
	}

	if err := source.Model(&datastore.ScanRecord{}).Count(&stats.Source).Error; err != nil {
		return nil, migrationError(err, "count_source")
	}

	var batch []datastore.ScanRecord
	err := source.FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		res := target.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if res.Error != nil {
			return res.Error
		}
		stats.Copied += res.RowsAffected
		stats.Skipped += int64(len(batch)) - res.RowsAffected
		return nil
	}).Error
	if err != nil {
		return stats, migrationError(err, "copy_batch")
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func migrationError(err error, op string) error {
	return errors.New(err).
		Component("dbexport").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}
