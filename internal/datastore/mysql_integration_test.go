//go:build integration

package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/scanner"
)

// startMySQL runs a throwaway MySQL container and returns settings pointing at it.
func startMySQL(t *testing.T) *conf.Settings {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Minute)
	defer cancel()

	container, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("codescan"),
		tcmysql.WithUsername("scan"),
		tcmysql.WithPassword("scan"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL = conf.MySQLSettings{
		Enabled:  true,
		Host:     host,
		Port:     port.Port(),
		Username: "scan",
		Password: "scan",
		Database: "codescan",
	}
	return settings
}

func TestMySQLStoreIntegration(t *testing.T) {
	settings := startMySQL(t)

	store, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	ctx := t.Context()

	t.Run("concurrent upsert keeps one row", func(t *testing.T) {
		const workers = 16
		ids := make([]string, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Go(func() {
				rec, _, err := store.Upsert(ctx, UpsertRequest{CodeValue: "4006381333931", CodeType: scanner.CodeTypeBarcode})
				if assert.NoError(t, err) {
					ids[i] = rec.ID
				}
			})
		}
		wg.Wait()
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("rename to the same value succeeds", func(t *testing.T) {
		rec, err := store.GetByValue(ctx, "4006381333931")
		require.NoError(t, err)

		_, err = store.Rename(ctx, rec.ID, "Marker")
		require.NoError(t, err)
		renamed, err := store.Rename(ctx, rec.ID, "Marker")
		require.NoError(t, err)
		require.NotNil(t, renamed.CustomName)
		assert.Equal(t, "Marker", *renamed.CustomName)

		cleared, err := store.Rename(ctx, rec.ID, " ")
		require.NoError(t, err)
		assert.Nil(t, cleared.CustomName)
	})

	t.Run("product info round trips", func(t *testing.T) {
		rec, created, err := store.Upsert(ctx, UpsertRequest{
			CodeValue:   "3017620422003",
			CodeType:    scanner.CodeTypeBarcode,
			ProductInfo: &ProductInfo{ProductName: "Nutella", NutriScore: "e"},
		})
		require.NoError(t, err)
		require.True(t, created)

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ProductInfo)
		assert.Equal(t, "Nutella", got.ProductInfo.ProductName)
		assert.True(t, rec.ScanDate.Equal(got.ScanDate))
	})

	t.Run("list and delete", func(t *testing.T) {
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "3017620422003", list[0].CodeValue)

		require.NoError(t, store.Delete(ctx, list[0].ID))
		list, err = store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
