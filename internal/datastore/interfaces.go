// Package datastore stores scan records in SQLite or MySQL through GORM.
package datastore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
	"github.com/tphakala/codescan/internal/scanner"
)

// maxCustomNameLength matches the custom_name column size.
const maxCustomNameLength = 255

// Interface abstracts the storage backend for scan records.
type Interface interface {
	Open() error
	Close() error
	// Upsert returns the record for req.CodeValue, creating it when absent.
	// The bool reports whether this call created it.
	Upsert(ctx context.Context, req UpsertRequest) (*ScanRecord, bool, error)
	// Rename sets the custom name; blank input clears it.
	Rename(ctx context.Context, id, newName string) (*ScanRecord, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*ScanRecord, error)
	GetByValue(ctx context.Context, value string) (*ScanRecord, error)
	// List returns all records, newest first.
	List(ctx context.Context) ([]ScanRecord, error)
}

// upsertRecorder is implemented by metrics.DatastoreMetrics.
type upsertRecorder interface {
	RecordUpsertResult(result string)
	RecordLockWait(seconds float64)
}

// DataStore implements the record operations on top of a GORM connection.
// The backend stores embed it and provide Open.
type DataStore struct {
	DB *gorm.DB

	keys    *keyedMutex
	metrics metrics.Recorder
	now     func() time.Time
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithMetrics reports operation counts and durations to r.
func WithMetrics(r metrics.Recorder) Option {
	return func(ds *DataStore) {
		if r != nil {
			ds.metrics = r
		}
	}
}

// WithClock overrides the clock used for ScanDate.
func WithClock(now func() time.Time) Option {
	return func(ds *DataStore) {
		if now != nil {
			ds.now = now
		}
	}
}

func newDataStore(opts ...Option) DataStore {
	ds := DataStore{
		keys:    newKeyedMutex(),
		metrics: metrics.NopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&ds)
	}
	return ds
}

// New returns the store selected by settings. The store must be opened before use.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: newDataStore(opts...), Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: newDataStore(opts...), Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Upsert finds or creates the record for req.CodeValue. An existing record is
// returned unchanged; req.ProductInfo is only stored on creation.
func (ds *DataStore) Upsert(ctx context.Context, req UpsertRequest) (rec *ScanRecord, created bool, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpUpsert, start, err) }()

	if err := validateUpsert(&req); err != nil {
		return nil, false, err
	}
	if err := ds.ready(); err != nil {
		return nil, false, err
	}

	lockStart := time.Now()
	unlock := ds.keys.Lock(req.CodeValue)
	defer unlock()
	ds.recordLockWait(time.Since(lockStart))

	db := ds.DB.WithContext(ctx)

	existing, err := findByValue(db, req.CodeValue)
	switch {
	case err == nil:
		ds.recordUpsertResult(metrics.UpsertExisting)
		return existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, dbError(err, "upsert_find", "code_value", req.CodeValue)
	}

	rec = &ScanRecord{
		ID:          uuid.NewString(),
		CodeValue:   req.CodeValue,
		CodeType:    req.CodeType,
		ScanDate:    ds.now().UTC().Truncate(time.Millisecond),
		RawContent:  req.RawContent,
		ProductInfo: cloneProductInfo(req.ProductInfo),
	}

	// Another process may have inserted the same value since the lookup above.
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code_value"}},
		DoNothing: true,
	}).Create(rec)

	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, false, dbError(res.Error, "upsert_create", "code_value", req.CodeValue)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		ds.recordUpsertResult(metrics.UpsertCreated)
		getLogger().Debug("scan record created",
			logger.String("id", rec.ID),
			logger.String("code_type", string(rec.CodeType)))
		return rec, true, nil
	}

	winner, err := findByValue(db, req.CodeValue)
	if err != nil {
		return nil, false, conflictError(err, "upsert_refetch", "code_value", req.CodeValue)
	}
	ds.recordUpsertResult(metrics.UpsertRaceLost)
	getLogger().Debug("upsert lost insert race, returning existing record",
		logger.String("id", winner.ID))
	return winner, false, nil
}

func validateUpsert(req *UpsertRequest) error {
	if req.CodeValue == "" {
		return validationError("code value must not be empty", "code_value", req.CodeValue)
	}
	if len(req.CodeValue) > MaxCodeValueLength {
		return validationError("code value is too long", "code_value_length", len(req.CodeValue))
	}
	if req.CodeType == "" {
		req.CodeType = scanner.CodeTypeUnknown
	}
	if !req.CodeType.Valid() {
		return validationError("unknown code type", "code_type", req.CodeType)
	}
	if req.RawContent == "" {
		req.RawContent = req.CodeValue
	}
	return nil
}

func cloneProductInfo(p *ProductInfo) *ProductInfo {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Rename trims newName and stores it, or clears the custom name when the
// trimmed value is empty.
func (ds *DataStore) Rename(ctx context.Context, id, newName string) (rec *ScanRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpRename, start, err) }()

	if err := ds.ready(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(newName)
	if len(name) > maxCustomNameLength {
		return nil, validationError("custom name is too long", "name_length", len(name))
	}

	var value any
	if name != "" {
		value = name
	}

	db := ds.DB.WithContext(ctx)
	if _, err := findByID(db, id); err != nil {
		return nil, err
	}
	// RowsAffected is not used: MySQL reports 0 when the value is unchanged.
	if err := db.Model(&ScanRecord{}).Where("id = ?", id).Update("custom_name", value).Error; err != nil {
		return nil, dbError(err, "rename", "id", id)
	}
	return findByID(db, id)
}

// Delete removes the record permanently. The code value may be stored again afterwards.
func (ds *DataStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpDelete, start, err) }()

	if err := ds.ready(); err != nil {
		return err
	}

	res := ds.DB.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&ScanRecord{})
	if res.Error != nil {
		return dbError(res.Error, "delete", "id", id)
	}
	if res.RowsAffected == 0 {
		return notFoundError("scan record", id)
	}
	return nil
}

// Get returns the record with the given id.
func (ds *DataStore) Get(ctx context.Context, id string) (rec *ScanRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpGet, start, err) }()

	if err := ds.ready(); err != nil {
		return nil, err
	}
	return findByID(ds.DB.WithContext(ctx), id)
}

// GetByValue returns the record for a code value.
func (ds *DataStore) GetByValue(ctx context.Context, value string) (rec *ScanRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpGetByValue, start, err) }()

	if err := ds.ready(); err != nil {
		return nil, err
	}

	rec, err = findByValue(ds.DB.WithContext(ctx), value)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("scan record", value)
	}
	if err != nil {
		return nil, dbError(err, "get_by_value", "code_value", value)
	}
	return rec, nil
}

// List returns every record ordered by scan date, newest first.
func (ds *DataStore) List(ctx context.Context) (records []ScanRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpList, start, err) }()

	if err := ds.ready(); err != nil {
		return nil, err
	}

	records = []ScanRecord{}
	if err := ds.DB.WithContext(ctx).Order("scan_date DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, dbError(err, "list")
	}
	return records, nil
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}

func (ds *DataStore) ready() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

func findByValue(db *gorm.DB, value string) (*ScanRecord, error) {
	var rec ScanRecord
	if err := db.Where("code_value = ?", value).Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func findByID(db *gorm.DB, id string) (*ScanRecord, error) {
	var rec ScanRecord
	err := db.Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("scan record", id)
	}
	if err != nil {
		return nil, dbError(err, "get", "id", id)
	}
	return &rec, nil
}

func (ds *DataStore) observe(operation string, start time.Time, err error) {
	ds.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		ds.metrics.RecordOperation(operation, metrics.StatusError)
		ds.metrics.RecordError(operation, errorType(err))
		return
	}
	ds.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

func (ds *DataStore) recordUpsertResult(result string) {
	if r, ok := ds.metrics.(upsertRecorder); ok {
		r.RecordUpsertResult(result)
	}
}

func (ds *DataStore) recordLockWait(d time.Duration) {
	if r, ok := ds.metrics.(upsertRecorder); ok {
		r.RecordLockWait(d.Seconds())
	}
}
