// Package pipeline turns decoder detections into stored scan records.
//
// A detection is validated, passed through the deduplication gate and
// classified under the session lock. Barcodes are then enriched from Open Food
// Facts, and every admitted detection is upserted into the store before the
// result is emitted to the configured actions.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/enrichment"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
	"github.com/tphakala/codescan/internal/scanner"
)

// resultBuffer is the capacity of the channel returned by Run.
const resultBuffer = 16

// DefaultStoreTimeout bounds the store write and the actions of one admitted
// detection. Both run detached from the caller's cancellation.
const DefaultStoreTimeout = 5 * time.Second

// Status is the terminal state of one detection.
type Status string

const (
	// StatusEmitted means the record was stored and handed to the actions.
	StatusEmitted Status = "emitted"
	// StatusSuppressed means the deduplication gate rejected the detection.
	StatusSuppressed Status = "suppressed"
	// StatusRejected means the detection failed validation.
	StatusRejected Status = "rejected"
	// StatusFailed means the record was not stored. Err carries
	// CategoryCancellation when the caller went away before the write.
	StatusFailed Status = "failed"
)

// Result is the outcome of processing one detection.
type Result struct {
	Status     Status
	Detection  scanner.Detection
	Record     *datastore.ScanRecord
	Created    bool
	CodeType   scanner.CodeType
	Enrichment enrichment.OutcomeKind
	Err        error
}

// Store is the part of datastore.Interface the pipeline writes to.
type Store interface {
	Upsert(ctx context.Context, req datastore.UpsertRequest) (*datastore.ScanRecord, bool, error)
}

// Pipeline runs detections through the scan session. It is safe for
// concurrent use; gate decisions are serialized.
type Pipeline struct {
	store   Store
	lookup  enrichment.Lookuper
	actions []Action
	metrics *metrics.PipelineMetrics
	logger  logger.Logger
	now     func() time.Time

	storeTimeout time.Duration

	mu   sync.Mutex // guards gate
	gate *scanner.DeduplicationGate

	lifecycle  sync.RWMutex // guards closed and inflight.Add
	closed     bool
	inflight   sync.WaitGroup
	workCtx    context.Context
	cancelWork context.CancelFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLookuper enables product enrichment for barcodes.
func WithLookuper(l enrichment.Lookuper) Option {
	return func(p *Pipeline) { p.lookup = l }
}

// WithCooldown sets the duplicate suppression window.
func WithCooldown(d time.Duration) Option {
	return func(p *Pipeline) { p.gate = scanner.NewDeduplicationGate(d) }
}

// WithActions sets the actions run after every emitted or failed result.
func WithActions(actions ...Action) Option {
	return func(p *Pipeline) { p.actions = append(p.actions, actions...) }
}

// WithMetrics enables pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock sets the clock used when a detection carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithStoreTimeout bounds the detached store write and actions.
func WithStoreTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.storeTimeout = d }
}

// WithLogger overrides the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline writing to store.
func New(store Store, opts ...Option) *Pipeline {
	workCtx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		store:        store,
		gate:         scanner.NewDeduplicationGate(scanner.DefaultCooldown),
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
		workCtx:      workCtx,
		cancelWork:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Global().Module("pipeline")
	}
	return p
}

// Process handles one detection synchronously. The returned error is non-nil
// for validation failures and storage faults; enrichment problems never fail
// a detection.
func (p *Pipeline) Process(ctx context.Context, det scanner.Detection) (Result, error) {
	det = det.Normalize()
	if p.isClosed() {
		return Result{Status: StatusRejected, Detection: det}, errClosed()
	}

	res, admitted := p.admit(det)
	if !admitted {
		return res, res.Err
	}

	if !p.begin() {
		return Result{Status: StatusRejected, Detection: det}, errClosed()
	}
	defer p.inflight.Done()

	res = p.complete(ctx, det, res.CodeType)
	return res, res.Err
}

// Run consumes detections until in is closed or ctx is cancelled and returns
// a channel of results. Barcode enrichment runs in the background so the next
// detection is gated without waiting for the lookup. The channel is closed
// after every started detection has finished; callers must drain it.
func (p *Pipeline) Run(ctx context.Context, in <-chan scanner.Detection) <-chan Result {
	out := make(chan Result, resultBuffer)
	if p.isClosed() {
		close(out)
		return out
	}

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
		}()

		for {
			var det scanner.Detection
			var ok bool
			select {
			case <-ctx.Done():
				return
			case det, ok = <-in:
				if !ok {
					return
				}
			}
			det = det.Normalize()

			res, admitted := p.admit(det)
			if !admitted {
				p.send(out, res)
				continue
			}

			if !p.begin() {
				return
			}
			if res.CodeType == scanner.CodeTypeBarcode && p.lookup != nil {
				codeType := res.CodeType
				wg.Go(func() {
					defer p.inflight.Done()
					p.send(out, p.complete(p.workCtx, det, codeType))
				})
				continue
			}

			res = p.complete(p.workCtx, det, res.CodeType)
			p.inflight.Done()
			p.send(out, res)
		}
	}()

	return out
}

// begin registers one unit of in-flight work. It fails once Close has started.
func (p *Pipeline) begin() bool {
	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

func (p *Pipeline) isClosed() bool {
	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()
	return p.closed
}

// send delivers res unless the pipeline has been closed.
func (p *Pipeline) send(out chan<- Result, res Result) {
	select {
	case out <- res:
	case <-p.workCtx.Done():
	}
}

// admit validates det and runs it through the gate and classifier under the
// session lock. It reports whether processing should continue.
func (p *Pipeline) admit(det scanner.Detection) (Result, bool) {
	codeType := scanner.Classify(det.Symbology)
	res := Result{Detection: det, CodeType: codeType}

	if err := det.Validate(); err != nil {
		p.recordDetection(metrics.DecisionRejected, codeType)
		res.Status = StatusRejected
		res.Err = err
		return res, false
	}

	observed := det.ObservedAt
	if observed.IsZero() {
		observed = p.now()
	}

	p.mu.Lock()
	admitted := p.gate.Admit(det.Value, observed)
	p.mu.Unlock()

	if !admitted {
		p.recordDetection(metrics.DecisionSuppressed, codeType)
		p.logger.Debug("duplicate detection suppressed",
			logger.String("code_type", string(codeType)),
			logger.Duration("cooldown", p.gate.Cooldown()))
		res.Status = StatusSuppressed
		return res, false
	}

	p.recordDetection(metrics.DecisionAdmitted, codeType)
	return res, true
}

// detach returns a context that outlives ctx's cancellation but not the
// store timeout. An admitted detection has already consumed its gate slot, so
// the write must not be dropped because the caller left.
func (p *Pipeline) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.storeTimeout)
}

// complete enriches and stores an admitted detection, then runs the actions.
// Enrichment follows ctx; the store write and actions do not.
func (p *Pipeline) complete(ctx context.Context, det scanner.Detection, codeType scanner.CodeType) Result {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.WorkStarted()
		defer p.metrics.WorkFinished()
	}

	outcome := enrichment.Skipped()
	if codeType == scanner.CodeTypeBarcode && p.lookup != nil {
		outcome = p.lookup.Lookup(ctx, det.Value)
	}

	res := Result{
		Detection:  det,
		CodeType:   codeType,
		Enrichment: outcome.Kind,
	}

	storeCtx, cancel := p.detach(ctx)
	defer cancel()

	rec, created, err := p.store.Upsert(storeCtx, datastore.UpsertRequest{
		CodeValue:   det.Value,
		CodeType:    codeType,
		RawContent:  det.Value,
		ProductInfo: productInfo(outcome),
	})
	if err != nil {
		res.Status = StatusFailed
		res.Err = storeError(err, codeType)
		if errors.IsCategory(res.Err, errors.CategoryCancellation) {
			p.logger.Warn("scan not stored, cancelled",
				logger.String("code_type", string(codeType)),
				logger.Error(err))
		} else {
			if p.metrics != nil {
				p.metrics.RecordStorageFault()
			}
			p.logger.Error("failed to store scan",
				logger.String("code_type", string(codeType)),
				logger.Error(err))
		}
		p.runActions(storeCtx, &res)
		return res
	}

	res.Status = StatusEmitted
	res.Record = rec
	res.Created = created

	if p.metrics != nil {
		p.metrics.RecordEmitted(string(codeType), string(outcome.Kind), created, time.Since(start))
	}
	p.runActions(storeCtx, &res)
	return res
}

func (p *Pipeline) runActions(ctx context.Context, res *Result) {
	for _, action := range p.actions {
		if err := action.Execute(ctx, *res); err != nil {
			if p.metrics != nil {
				p.metrics.RecordActionError(action.GetDescription())
			}
			p.logger.Warn("action failed",
				logger.String("action", action.GetDescription()),
				logger.Error(err))
		}
	}
}

func (p *Pipeline) recordDetection(decision string, codeType scanner.CodeType) {
	if p.metrics != nil {
		p.metrics.RecordDetection(decision, string(codeType))
	}
}

// Reset clears the deduplication gate, e.g. when the scanner view closes.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate.Reset()
}

// Close stops accepting detections, resets the gate and waits for in-flight
// work until ctx is done. After that pending lookups are cancelled and Close
// returns once their units have unwound, so the store can be closed safely.
func (p *Pipeline) Close(ctx context.Context) error {
	p.lifecycle.Lock()
	p.closed = true
	p.lifecycle.Unlock()
	p.Reset()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelWork()
		return nil
	case <-ctx.Done():
		p.cancelWork()
		p.logger.Warn("cancelling in-flight lookups on shutdown", logger.Error(ctx.Err()))
		<-done
		return errors.New(ctx.Err()).
			Component("pipeline").
			Category(errors.CategoryTimeout).
			Context("operation", "close").
			Build()
	}
}

func productInfo(out enrichment.Outcome) *datastore.ProductInfo {
	if out.Kind != enrichment.OutcomeFound || out.Product == nil {
		return nil
	}
	return &datastore.ProductInfo{
		ProductName: out.Product.Name,
		Brand:       out.Product.Brand,
		Ingredients: out.Product.Ingredients,
		NutriScore:  string(out.Product.NutriScore),
	}
}

// storeError wraps an Upsert failure. A plain context cancellation is the
// caller going away, not a persistence fault.
func storeError(err error, codeType scanner.CodeType) error {
	category := errors.CategoryDatabase
	if errors.Is(err, context.Canceled) {
		category = errors.CategoryCancellation
	}
	return errors.New(err).
		Component("pipeline").
		Category(category).
		Context("operation", "store_scan").
		Context("code_type", string(codeType)).
		Build()
}

func errClosed() error {
	return errors.Newf("pipeline is closed").
		Component("pipeline").
		Category(errors.CategoryState).
		Build()
}
