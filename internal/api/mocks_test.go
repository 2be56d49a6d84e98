package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/pipeline"
	"github.com/tphakala/codescan/internal/scanner"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Rename(ctx context.Context, id, newName string) (*datastore.ScanRecord, error) {
	args := m.Called(ctx, id, newName)
	rec, _ := args.Get(0).(*datastore.ScanRecord)
	return rec, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Get(ctx context.Context, id string) (*datastore.ScanRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*datastore.ScanRecord)
	return rec, args.Error(1)
}

func (m *mockStore) List(ctx context.Context) ([]datastore.ScanRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]datastore.ScanRecord)
	return recs, args.Error(1)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, det scanner.Detection) (pipeline.Result, error) {
	args := m.Called(ctx, det)
	return args.Get(0).(pipeline.Result), args.Error(1)
}
