package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/enrichment"
)

// memStore is an in-memory Store keyed by code value.
type memStore struct {
	mu      sync.Mutex
	records map[string]*datastore.ScanRecord
	err     error
	calls   atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*datastore.ScanRecord)}
}

func (s *memStore) Upsert(ctx context.Context, req datastore.UpsertRequest) (*datastore.ScanRecord, bool, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, false, s.err
	}
	if rec, ok := s.records[req.CodeValue]; ok {
		c := *rec
		return &c, false, nil
	}
	rec := &datastore.ScanRecord{
		ID:          uuid.NewString(),
		CodeValue:   req.CodeValue,
		CodeType:    req.CodeType,
		ScanDate:    time.Now().UTC(),
		RawContent:  req.RawContent,
		ProductInfo: req.ProductInfo,
	}
	s.records[req.CodeValue] = rec
	c := *rec
	return &c, true, nil
}

func (s *memStore) has(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[value]
	return ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// stubLookuper returns a fixed outcome, optionally waiting on release first.
type stubLookuper struct {
	outcome enrichment.Outcome
	release chan struct{}
	calls   atomic.Int32
}

func (l *stubLookuper) Lookup(ctx context.Context, _ string) enrichment.Outcome {
	l.calls.Add(1)
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return enrichment.Unavailable(ctx.Err().Error())
		}
	}
	return l.outcome
}

// recordingAction stores every result it sees.
type recordingAction struct {
	mu      sync.Mutex
	results []Result
	err     error
	onRun   func(Result)
}

func (a *recordingAction) GetDescription() string { return "recording" }

func (a *recordingAction) Execute(_ context.Context, res Result) error {
	if a.onRun != nil {
		a.onRun(res)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, res)
	return a.err
}

func (a *recordingAction) seen() []Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Result(nil), a.results...)
}

// fakePublisher records published payloads.
type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	topics    []string
	payloads  [][]byte
	err       error
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

// fakeNotifier records sent alerts.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Send(_ context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, title+": "+message)
	return nil
}
