// Package query implements the fetch orchestrator: a cache of query slots
// addressed by endpoint and serialized parameters, each with its own
// Idle/Loading/Success/Error state machine.
//
// Identical concurrent queries share one in-flight request. A manual refetch
// starts a new request; if an older response for the same slot arrives after
// a newer one was applied it is discarded. The orchestrator never retries a
// failed fetch on its own: failures land in the Error state until a caller
// asks for a retry.
package query

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"
	"github.com/boddenberg/wallet-activity-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("wallet-activity-bfa/query")

// IssueNotAnObject is reported for list entries that could not be decoded at all.
const IssueNotAnObject = "not_an_object"

// State is the lifecycle state of one query slot.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Result is the normalized payload of one successful fetch. It is shared
// between readers and never modified after it is stored.
type Result struct {
	Records   []domain.CanonicalTransaction
	Summary   *domain.RawSummary
	Ranges    []domain.RawRange
	Issues    map[string][]string
	FetchedAt time.Time
}

// Snapshot is a read-only view of one slot.
type Snapshot struct {
	Key      string          `json:"key"`
	Endpoint domain.Endpoint `json:"endpoint"`
	Params   domain.Params   `json:"params,omitempty"`
	State    State           `json:"state"`
	// Result is the last applied payload. It is kept while a refetch is
	// loading or after a refetch failed.
	Result    *Result   `json:"-"`
	Count     int       `json:"count"`
	Fresh     bool      `json:"fresh"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Records returns the records of the last applied result, if any.
func (s Snapshot) Records() []domain.CanonicalTransaction {
	if s.Result == nil {
		return nil
	}
	return s.Result.Records
}

// Selector picks slots for bulk operations. A nil Selector matches all.
type Selector func(Snapshot) bool

type slot struct {
	key       string
	endpoint  domain.Endpoint
	params    domain.Params
	state     State
	result    *Result
	err       error
	started   uint64
	applied   uint64
	updatedAt time.Time
	touched   time.Time
}

// Orchestrator owns the query slots. It is safe for concurrent use.
type Orchestrator struct {
	source  port.DataSource
	cache   port.Cache[*Result]
	flights singleflight.Group
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	slots map[string]*slot

	now func() time.Time
}

// New creates an Orchestrator. The cache decides how long a successful result
// is served without refetching; fetchTimeout bounds one fetch.
func New(source port.DataSource, cache port.Cache[*Result], fetchTimeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Orchestrator {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Orchestrator{
		source:  source,
		cache:   cache,
		timeout: fetchTimeout,
		metrics: metrics,
		logger:  logger,
		slots:   make(map[string]*slot),
		now:     time.Now,
	}
}

// Query returns the slot for (endpoint, params), fetching when no fresh
// result is cached. Concurrent callers for the same slot share one request.
//
// The returned error is only ever ctx.Err(): fetch failures are reported in
// the snapshot's Error state. When ctx ends first the fetch keeps running for
// the other callers and the snapshot shows Loading.
func (o *Orchestrator) Query(ctx context.Context, endpoint domain.Endpoint, params domain.Params) (Snapshot, error) {
	key := domain.QueryKey(endpoint, params)
	if res, ok := o.cache.Get(key); ok {
		o.metrics.IncrCacheHit(string(endpoint))
		o.mu.Lock()
		s := o.slotLocked(key, endpoint, params)
		if s.result == nil {
			s.result = res
			s.updatedAt = res.FetchedAt
			o.transitionLocked(s, StateSuccess)
		}
		snap := o.snapshotLocked(s)
		o.mu.Unlock()
		return snap, nil
	}
	o.metrics.IncrCacheMiss(string(endpoint))
	return o.run(ctx, key, endpoint, params, false)
}

// Refetch starts a new request for the slot even when a fresh result is
// cached or another request is in flight. The older request is not cancelled;
// its response is discarded if it arrives after this one.
func (o *Orchestrator) Refetch(ctx context.Context, endpoint domain.Endpoint, params domain.Params) (Snapshot, error) {
	return o.run(ctx, domain.QueryKey(endpoint, params), endpoint, params, true)
}

// Detail runs the dependent detail query for a selected transaction id.
// An empty id leaves the query Idle and fetches nothing.
func (o *Orchestrator) Detail(ctx context.Context, id string, params domain.Params) (Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Snapshot{Endpoint: domain.EndpointDetail, State: StateIdle}, nil
	}
	return o.Query(ctx, domain.EndpointDetail, detailParams(id, params))
}

// ClearDetail deselects a transaction: its detail slot returns to Idle and a
// response still in flight for it will be discarded.
func (o *Orchestrator) ClearDetail(id string, params domain.Params) {
	key := domain.QueryKey(domain.EndpointDetail, detailParams(id, params))

	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[key]
	if !ok {
		return
	}
	s.started++
	s.applied = s.started
	s.result = nil
	s.err = nil
	o.cache.Delete(key)
	// A later selection of the same id must not join the discarded flight.
	o.flights.Forget(key)
	o.transitionLocked(s, StateIdle)
}

func detailParams(id string, params domain.Params) domain.Params {
	p := make(domain.Params, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p["id"] = id
	return p
}

// Snapshot returns the current view of one slot. Unknown slots are Idle.
func (o *Orchestrator) Snapshot(endpoint domain.Endpoint, params domain.Params) Snapshot {
	key := domain.QueryKey(endpoint, params)

	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.slots[key]; ok {
		return o.snapshotLocked(s)
	}
	return Snapshot{Key: key, Endpoint: endpoint, Params: copyParams(params), State: StateIdle}
}

// Snapshots returns the selected slots ordered by key.
func (o *Orchestrator) Snapshots(sel Selector) []Snapshot {
	o.mu.Lock()
	out := make([]Snapshot, 0, len(o.slots))
	for _, s := range o.slots {
		snap := o.snapshotLocked(s)
		if sel == nil || sel(snap) {
			out = append(out, snap)
		}
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// RefreshAll refetches every selected non-idle list query concurrently.
// Detail queries are left alone, including ones in flight.
func (o *Orchestrator) RefreshAll(ctx context.Context, sel Selector) ([]Snapshot, error) {
	return o.refetchEach(ctx, o.Snapshots(func(s Snapshot) bool {
		return s.State != StateIdle && s.Endpoint != domain.EndpointDetail && (sel == nil || sel(s))
	}))
}

// RetryFailed refetches every selected slot that is in the Error state.
func (o *Orchestrator) RetryFailed(ctx context.Context, sel Selector) ([]Snapshot, error) {
	return o.refetchEach(ctx, o.Snapshots(func(s Snapshot) bool {
		return s.State == StateError && (sel == nil || sel(s))
	}))
}

func (o *Orchestrator) refetchEach(ctx context.Context, targets []Snapshot) ([]Snapshot, error) {
	out := make([]Snapshot, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			snap, err := o.Refetch(gctx, t.Endpoint, t.Params)
			out[i] = snap
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prune drops settled slots nobody has read for maxAge and returns how many
// were removed. Loading slots are kept.
func (o *Orchestrator) Prune(maxAge time.Duration) int {
	cutoff := o.now().Add(-maxAge)

	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for k, s := range o.slots {
		if s.state != StateLoading && s.touched.Before(cutoff) {
			delete(o.slots, k)
			n++
		}
	}
	return n
}

// PruneLoop calls Prune every interval until ctx is done.
func (o *Orchestrator) PruneLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.Prune(maxAge); n > 0 {
				o.logger.Debug("pruned idle query slots", zap.Int("count", n))
			}
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, key string, endpoint domain.Endpoint, params domain.Params, force bool) (Snapshot, error) {
	o.mu.Lock()
	o.slotLocked(key, endpoint, params)
	o.mu.Unlock()

	if force {
		o.flights.Forget(key)
	}
	// The fetch outlives any single caller so joiners still get a result.
	fetchCtx := context.WithoutCancel(ctx)
	ch := o.flights.DoChan(key, func() (any, error) {
		o.fetch(fetchCtx, key, endpoint, params)
		return nil, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			o.metrics.IncrDeduped(string(endpoint))
		}
		return o.current(key, endpoint, params), nil
	case <-ctx.Done():
		return o.current(key, endpoint, params), ctx.Err()
	}
}

func (o *Orchestrator) fetch(ctx context.Context, key string, endpoint domain.Endpoint, params domain.Params) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "Orchestrator.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("query.key", key))

	o.mu.Lock()
	s := o.slotLocked(key, endpoint, params)
	s.started++
	seq := s.started
	o.transitionLocked(s, StateLoading)
	o.mu.Unlock()

	start := time.Now()
	resp, err := o.source.Fetch(ctx, endpoint, params)
	o.metrics.RecordFetch(string(endpoint), time.Since(start), err)

	var res *Result
	if err == nil {
		res = o.normalize(endpoint, resp)
		span.SetAttributes(attribute.Int("query.records", len(res.Records)))
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if seq <= s.applied {
		o.metrics.IncrSuperseded(string(endpoint))
		o.logger.Debug("dropping superseded response",
			zap.String("key", key),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", s.applied),
		)
		return
	}
	s.applied = seq
	s.updatedAt = o.now()
	latest := seq == s.started

	if err != nil {
		s.err = err
		o.logger.Warn("fetch failed", zap.String("key", key), zap.Error(err))
		if latest {
			o.transitionLocked(s, StateError)
		}
		return
	}

	s.result = res
	s.err = nil
	o.cache.Set(key, res)
	if latest {
		o.transitionLocked(s, StateSuccess)
	}
}

func (o *Orchestrator) normalize(endpoint domain.Endpoint, resp *domain.RawResponse) *Result {
	if resp == nil {
		resp = &domain.RawResponse{}
	}
	records, issues := pipeline.NormalizeAll(resp.Records)
	for id, list := range issues {
		o.logger.Debug("recovered malformed record",
			zap.String("endpoint", string(endpoint)),
			zap.String("id", id),
			zap.Strings("issues", list),
		)
		for _, issue := range list {
			o.metrics.IncrMalformed(issue)
		}
	}
	if resp.Dropped > 0 {
		o.logger.Warn("skipped undecodable records",
			zap.String("endpoint", string(endpoint)),
			zap.Int("count", resp.Dropped),
		)
		for range resp.Dropped {
			o.metrics.IncrMalformed(IssueNotAnObject)
		}
	}
	return &Result{
		Records:   records,
		Summary:   resp.Summary,
		Ranges:    resp.Ranges,
		Issues:    issues,
		FetchedAt: o.now(),
	}
}

func (o *Orchestrator) current(key string, endpoint domain.Endpoint, params domain.Params) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked(o.slotLocked(key, endpoint, params))
}

func (o *Orchestrator) slotLocked(key string, endpoint domain.Endpoint, params domain.Params) *slot {
	s, ok := o.slots[key]
	if !ok {
		s = &slot{key: key, endpoint: endpoint, params: copyParams(params), state: StateIdle}
		o.slots[key] = s
	}
	s.touched = o.now()
	return s
}

func (o *Orchestrator) snapshotLocked(s *slot) Snapshot {
	snap := Snapshot{
		Key:       s.key,
		Endpoint:  s.endpoint,
		Params:    copyParams(s.params),
		State:     s.state,
		Result:    s.result,
		Err:       s.err,
		UpdatedAt: s.updatedAt,
	}
	if s.result != nil {
		snap.Count = len(s.result.Records)
		cached, ok := o.cache.Get(s.key)
		snap.Fresh = ok && cached == s.result
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (o *Orchestrator) transitionLocked(s *slot, to State) {
	from := s.state
	s.state = to
	o.metrics.IncrTransition(string(to))
	o.logger.Debug("query state",
		zap.String("key", s.key),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func copyParams(p domain.Params) domain.Params {
	if p == nil {
		return nil
	}
	out := make(domain.Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
