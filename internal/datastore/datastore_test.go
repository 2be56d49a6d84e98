package datastore

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/observability/metrics"
	"github.com/tphakala/codescan/internal/scanner"
)

func sqliteSettings(path string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = path
	return settings
}

// createDatabase opens a SQLite store in a temporary directory and closes it
// when the test finishes.
func createDatabase(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	return openAt(t, t.TempDir()+"/test.db", opts...)
}

func openAt(t *testing.T, path string, opts ...Option) *SQLiteStore {
	t.Helper()

	store, err := New(sqliteSettings(path), opts...)
	require.NoError(t, err)
	require.NoError(t, store.Open(), "failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, store.Close(), "failed to close datastore")
	})

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	return sqliteStore
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func countRows(t *testing.T, store *SQLiteStore, value string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, store.DB.Model(&ScanRecord{}).Where("code_value = ?", value).Count(&count).Error)
	return count
}

func TestNewRequiresBackend(t *testing.T) {
	t.Parallel()

	_, err := New(&conf.Settings{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestOperationsBeforeOpen(t *testing.T) {
	t.Parallel()

	store, err := New(sqliteSettings(t.TempDir() + "/unused.db"))
	require.NoError(t, err)

	_, _, err = store.Upsert(t.Context(), UpsertRequest{CodeValue: "1", CodeType: scanner.CodeTypeBarcode})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.NoError(t, store.Close())
}

func TestUpsertCreatesThenReturnsExisting(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)
	ctx := t.Context()

	product := &ProductInfo{ProductName: "Nutella", Brand: "Ferrero", NutriScore: "e"}
	first, created, err := store.Upsert(ctx, UpsertRequest{
		CodeValue:   "3017620422003",
		CodeType:    scanner.CodeTypeBarcode,
		ProductInfo: product,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "3017620422003", first.RawContent, "raw content defaults to the code value")
	assert.Nil(t, first.CustomName)
	require.NotNil(t, first.ProductInfo)

	// the caller's struct is copied, not aliased
	product.ProductName = "mutated"
	assert.Equal(t, "Nutella", first.ProductInfo.ProductName)

	second, created, err := store.Upsert(ctx, UpsertRequest{
		CodeValue:   "3017620422003",
		CodeType:    scanner.CodeTypeBarcode,
		ProductInfo: &ProductInfo{ProductName: "Something else"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.ScanDate.Equal(second.ScanDate))
	require.NotNil(t, second.ProductInfo)
	assert.Equal(t, "Nutella", second.ProductInfo.ProductName, "product info is only written on creation")
	assert.Equal(t, int64(1), countRows(t, store, "3017620422003"))
}

func TestUpsertWithoutProductKeepsNil(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)

	rec, created, err := store.Upsert(t.Context(), UpsertRequest{
		CodeValue:  "https://example.com",
		CodeType:   scanner.CodeTypeQRCode,
		RawContent: "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, created)

	got, err := store.Get(t.Context(), rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProductInfo)
	assert.Nil(t, got.CustomName)
	assert.Equal(t, scanner.CodeTypeQRCode, got.CodeType)
}

func TestUpsertValidation(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)

	tests := []struct {
		name string
		req  UpsertRequest
	}{
		{"empty value", UpsertRequest{CodeType: scanner.CodeTypeBarcode}},
		{"too long", UpsertRequest{CodeValue: strings.Repeat("x", MaxCodeValueLength+1), CodeType: scanner.CodeTypeQRCode}},
		{"invalid code type", UpsertRequest{CodeValue: "1", CodeType: "hologram"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := store.Upsert(t.Context(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}

	rec, _, err := store.Upsert(t.Context(), UpsertRequest{CodeValue: "no-type"})
	require.NoError(t, err)
	assert.Equal(t, scanner.CodeTypeUnknown, rec.CodeType)
}

func TestConcurrentUpsertSameValue(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)

	const workers = 20
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		ids     = make([]string, workers)
		errs    = make([]error, workers)
	)

	for i := range workers {
		wg.Go(func() {
			rec, c, err := store.Upsert(t.Context(), UpsertRequest{CodeValue: "race", CodeType: scanner.CodeTypeBarcode})
			errs[i] = err
			if err == nil {
				ids[i] = rec.ID
				if c {
					created.Add(1)
				}
			}
		})
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int64(1), countRows(t, store, "race"))
	assert.Zero(t, store.keys.size(), "key locks are released")
}

func TestConcurrentUpsertAcrossStores(t *testing.T) {
	t.Parallel()

	// Two stores on one file do not share the in-process lock, so only the
	// unique index keeps the value from being inserted twice.
	path := t.TempDir() + "/shared.db"
	a := openAt(t, path)
	b := openAt(t, path)

	const rounds = 10
	var wg sync.WaitGroup
	results := make(chan *ScanRecord, 2*rounds)
	for range rounds {
		for _, store := range []*SQLiteStore{a, b} {
			wg.Go(func() {
				rec, _, err := store.Upsert(t.Context(), UpsertRequest{CodeValue: "shared", CodeType: scanner.CodeTypeQRCode})
				if assert.NoError(t, err) {
					results <- rec
				}
			})
		}
	}
	wg.Wait()
	close(results)

	var first string
	for rec := range results {
		if first == "" {
			first = rec.ID
		}
		assert.Equal(t, first, rec.ID)
	}
	assert.Equal(t, int64(1), countRows(t, a, "shared"))
}

func TestRename(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)
	ctx := t.Context()

	rec, _, err := store.Upsert(ctx, UpsertRequest{CodeValue: "5000112637922", CodeType: scanner.CodeTypeBarcode})
	require.NoError(t, err)

	renamed, err := store.Rename(ctx, rec.ID, "  Cola  ")
	require.NoError(t, err)
	require.NotNil(t, renamed.CustomName)
	assert.Equal(t, "Cola", *renamed.CustomName)

	// same name again still succeeds
	_, err = store.Rename(ctx, rec.ID, "Cola")
	require.NoError(t, err)

	for _, blank := range []string{"", "   ", "\t\n"} {
		cleared, err := store.Rename(ctx, rec.ID, blank)
		require.NoError(t, err)
		assert.Nil(t, cleared.CustomName, "blank name %q clears the custom name", blank)
	}

	_, err = store.Rename(ctx, "missing", "x")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = store.Rename(ctx, rec.ID, strings.Repeat("n", 256))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDeleteIsPermanent(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)
	ctx := t.Context()

	rec, _, err := store.Upsert(ctx, UpsertRequest{CodeValue: "delete-me", CodeType: scanner.CodeTypeQRCode})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, rec.ID))

	_, err = store.Get(ctx, rec.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, int64(0), countRows(t, store, "delete-me"))

	again, created, err := store.Upsert(ctx, UpsertRequest{CodeValue: "delete-me", CodeType: scanner.CodeTypeQRCode})
	require.NoError(t, err)
	assert.True(t, created, "a deleted value can be stored again")
	assert.NotEqual(t, rec.ID, again.ID)

	err = store.Delete(ctx, rec.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListOrdering(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := createDatabase(t, WithClock(stepClock(start)))
	ctx := t.Context()

	empty, err := store.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, v := range []string{"first", "second", "third"} {
		_, _, err := store.Upsert(ctx, UpsertRequest{CodeValue: v, CodeType: scanner.CodeTypeBarcode})
		require.NoError(t, err)
	}
	// an existing value keeps its original scan date
	_, _, err = store.Upsert(ctx, UpsertRequest{CodeValue: "first", CodeType: scanner.CodeTypeBarcode})
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].CodeValue)
	assert.Equal(t, "second", list[1].CodeValue)
	assert.Equal(t, "first", list[2].CodeValue)
	assert.True(t, list[2].ScanDate.Equal(start.Add(time.Second)))
}

func TestListTieBreaksOnID(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := createDatabase(t, WithClock(func() time.Time { return fixed }))

	for _, v := range []string{"a", "b", "c"} {
		_, _, err := store.Upsert(t.Context(), UpsertRequest{CodeValue: v})
		require.NoError(t, err)
	}

	list, err := store.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1].ID, list[i].ID)
	}
}

func TestGetByValue(t *testing.T) {
	t.Parallel()

	store := createDatabase(t)

	rec, _, err := store.Upsert(t.Context(), UpsertRequest{CodeValue: "lookup", CodeType: scanner.CodeTypeBarcode})
	require.NoError(t, err)

	got, err := store.GetByValue(t.Context(), "lookup")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = store.GetByValue(t.Context(), "absent")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewDatastoreMetrics(reg)
	require.NoError(t, err)

	store := createDatabase(t, WithMetrics(m))
	ctx := t.Context()

	_, _, err = store.Upsert(ctx, UpsertRequest{CodeValue: "m", CodeType: scanner.CodeTypeBarcode})
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, UpsertRequest{CodeValue: "m", CodeType: scanner.CodeTypeBarcode})
	require.NoError(t, err)
	_, err = store.Get(ctx, "missing")
	require.Error(t, err)

	expected := `
# HELP codescan_db_upserts_total Upsert outcomes: created, existing or race_lost
# TYPE codescan_db_upserts_total counter
codescan_db_upserts_total{result="created"} 1
codescan_db_upserts_total{result="existing"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "codescan_db_upserts_total"))

	errCount, err := testutil.GatherAndCount(reg, "codescan_db_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, errCount)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store, err := New(sqliteSettings(""))
	require.NoError(t, err)
	err = store.Open()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
