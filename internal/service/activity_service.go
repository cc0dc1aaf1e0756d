package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"
	"github.com/boddenberg/wallet-activity-bfa/internal/query"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/activity")

// ActivityService composes the fetch orchestrator with the pipeline: it loads
// every record endpoint for a customer, merges the results and derives the
// list, chart, summary and detail views.
type ActivityService struct {
	orch     *query.Orchestrator
	logger   *zap.Logger
	loc      *time.Location
	pageSize int
	pageStep int
	now      func() time.Time
}

// Options tune the service. Zero values fall back to defaults.
type Options struct {
	// Location anchors the Day/Week/Month chart windows and custom range dates.
	Location *time.Location
	PageSize int
	PageStep int
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewActivityService creates the activity service with all dependencies injected.
func NewActivityService(orch *query.Orchestrator, logger *zap.Logger, opts Options) *ActivityService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ActivityService{
		orch:     orch,
		logger:   logger,
		loc:      opts.Location,
		pageSize: opts.PageSize,
		pageStep: opts.PageStep,
		now:      opts.Now,
	}
}

// RangeInput is a custom chart range exactly as typed by the user.
type RangeInput struct {
	Start string
	End   string
}

// List returns the customer's merged activity, filtered and cut to window
// records. A window of 0 means the initial page size.
func (s *ActivityService) List(ctx context.Context, customerID string, filter domain.Filter, window int) (*ActivityList, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.List")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}
	if window < 0 {
		return nil, &domain.ErrValidation{Field: "window", Message: "must not be negative"}
	}

	records, qerrs, err := s.loadRecords(ctx, customerID)
	if err != nil {
		return nil, err
	}

	pager := pipeline.NewPager(s.pageSize, s.pageStep).WithFilter(filter)
	if window > pager.Window {
		pager.Window = window
	}
	view := pager.View(records)

	out := &ActivityList{
		Items:   NewTransactionViews(view.Visible),
		HasMore: view.HasMore,
		Window:  view.Window,
		Total:   view.Total,
		Filter:  filter,
		Errors:  qerrs,
	}
	if view.HasMore {
		out.NextWindow = pager.LoadMore().Window
	}
	return out, nil
}

// Chart buckets the filtered activity for the period. Custom ranges are
// validated before anything is fetched.
func (s *ActivityService) Chart(ctx context.Context, customerID string, filter domain.Filter, period domain.Period, rng *RangeInput) (*ChartView, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.Chart")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.String("chart.period", string(period)),
	)

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}

	req := domain.ChartRequest{Period: period, Now: s.now().In(s.loc)}
	if period == domain.PeriodCustom {
		r, err := s.parseRange(rng)
		if err != nil {
			return nil, err
		}
		req.Range = &r
	}

	records, qerrs, err := s.loadRecords(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if req.Range != nil {
		req.SubRanges = s.subRanges(ctx, customerID, *req.Range)
	}

	out, err := NewChartView(pipeline.Apply(records, filter), filter, req)
	if err != nil {
		return nil, err
	}
	out.Errors = qerrs
	return out, nil
}

// Summary totals the filtered activity. The data source's own totals win
// when the view is the plain per-currency one they describe; any status,
// category or text predicate means only a local sum can match the list.
func (s *ActivityService) Summary(ctx context.Context, customerID string, filter domain.Filter) (*SummaryView, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}

	records, qerrs, err := s.loadRecords(ctx, customerID)
	if err != nil {
		return nil, err
	}
	filtered := pipeline.Apply(records, filter)

	var totals domain.SummaryTotals
	if pipeline.SourceComparable(filter) {
		params := customerParams(customerID)
		if isSet(filter.Currency) {
			params["currency"] = strings.ToUpper(strings.TrimSpace(filter.Currency))
		}
		snap, qerr := s.orch.Query(ctx, domain.EndpointSummary, params)
		if qerr != nil {
			return nil, qerr
		}
		var src *domain.RawSummary
		if snap.Result != nil {
			src = snap.Result.Summary
		}
		if snap.State == query.StateError {
			qerrs = append(qerrs, QueryError{Endpoint: domain.EndpointSummary, Message: snap.Error})
		}
		totals = pipeline.SummarizeWithSource(filtered, src)
	} else {
		totals = pipeline.Summarize(filtered)
	}
	if totals.Currency == "" {
		totals.Currency = SingleCurrency(filter, filtered)
	}

	out := &SummaryView{TotalsView: NewTotalsView(totals), Filter: filter, Errors: qerrs}
	if !isSet(filter.Currency) {
		for _, t := range pipeline.SummarizeByCurrency(filtered) {
			out.ByCurrency = append(out.ByCurrency, NewTotalsView(t))
		}
	}
	return out, nil
}

// Detail resolves one transaction through the dependent detail query. A
// record already held in a list slot is returned when the detail endpoint
// fails, with the failure attached.
func (s *ActivityService) Detail(ctx context.Context, customerID, transactionID string) (*DetailView, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.Detail")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.String("transaction.id", transactionID),
	)

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, &domain.ErrValidation{Field: "transactionId", Message: "required"}
	}

	local, hasLocal := s.lookupLocal(customerID, transactionID)

	snap, err := s.orch.Detail(ctx, transactionID, customerParams(customerID))
	if err != nil {
		return nil, err
	}

	if snap.State == query.StateSuccess {
		if recs := snap.Records(); len(recs) > 0 {
			return &DetailView{TransactionView: NewTransactionView(recs[0]), State: snap.State}, nil
		}
	}
	if hasLocal {
		return &DetailView{TransactionView: NewTransactionView(local), State: snap.State, DetailError: snap.Error}, nil
	}
	if snap.Err != nil {
		return nil, snap.Err
	}
	return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
}

// ReleaseDetail deselects a transaction; its detail query returns to Idle.
func (s *ActivityService) ReleaseDetail(customerID, transactionID string) error {
	if err := validateCustomer(customerID); err != nil {
		return err
	}
	s.orch.ClearDetail(transactionID, customerParams(customerID))
	return nil
}

// Refresh refetches every list query currently held for the customer.
// Detail queries in flight are not touched.
func (s *ActivityService) Refresh(ctx context.Context, customerID string) ([]query.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.Refresh")
	defer span.End()

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}
	snaps, err := s.orch.RefreshAll(ctx, forCustomer(customerID))
	if err != nil {
		return nil, err
	}
	s.logger.Info("activity refreshed",
		zap.String("customer_id", customerID),
		zap.Int("queries", len(snaps)),
	)
	return snaps, nil
}

// Retry refetches the customer's queries that are in the Error state.
func (s *ActivityService) Retry(ctx context.Context, customerID string) ([]query.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "ActivityService.Retry")
	defer span.End()

	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}
	return s.orch.RetryFailed(ctx, forCustomer(customerID))
}

// QueryStates lists the customer's query slots and their states.
func (s *ActivityService) QueryStates(customerID string) ([]query.Snapshot, error) {
	if err := validateCustomer(customerID); err != nil {
		return nil, err
	}
	return s.orch.Snapshots(forCustomer(customerID)), nil
}

// loadRecords queries every record endpoint concurrently and merges the
// results. Failed endpoints are reported alongside the records that did
// load; only when every endpoint failed is the first failure returned.
func (s *ActivityService) loadRecords(ctx context.Context, customerID string) ([]domain.CanonicalTransaction, []QueryError, error) {
	params := customerParams(customerID)
	snaps := make([]query.Snapshot, len(domain.RecordEndpoints))

	g, gCtx := errgroup.WithContext(ctx)
	for i, e := range domain.RecordEndpoints {
		g.Go(func() error {
			snap, err := s.orch.Query(gCtx, e, params)
			snaps[i] = snap
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		lists    [][]domain.CanonicalTransaction
		qerrs    []QueryError
		firstErr error
	)
	for _, snap := range snaps {
		if snap.State == query.StateError {
			qerrs = append(qerrs, QueryError{Endpoint: snap.Endpoint, Message: snap.Error})
			if firstErr == nil {
				firstErr = snap.Err
			}
		}
		if recs := snap.Records(); recs != nil {
			lists = append(lists, recs)
		}
	}
	if len(qerrs) == len(snaps) && firstErr != nil {
		s.logger.Error("all activity endpoints failed",
			zap.String("customer_id", customerID),
			zap.Error(firstErr),
		)
		return nil, nil, firstErr
	}
	if len(qerrs) > 0 {
		s.logger.Warn("activity partially loaded",
			zap.String("customer_id", customerID),
			zap.Int("failed", len(qerrs)),
		)
	}
	return mergeRecords(lists...), qerrs, nil
}

// mergeRecords concatenates record lists, keeps the first record seen for
// each id and orders the result newest first. Records with an unknown time
// go last.
func mergeRecords(lists ...[]domain.CanonicalTransaction) []domain.CanonicalTransaction {
	seen := make(map[string]bool)
	var out []domain.CanonicalTransaction
	for _, list := range lists {
		for _, r := range list {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasTime() != b.HasTime() {
			return a.HasTime()
		}
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (s *ActivityService) parseRange(rng *RangeInput) (domain.DateRange, error) {
	if rng == nil || strings.TrimSpace(rng.Start) == "" || strings.TrimSpace(rng.End) == "" {
		return domain.DateRange{}, &domain.ErrValidation{Field: "range", Message: "custom period requires start and end"}
	}
	start, err := pipeline.ParseRangeDate("start", rng.Start, s.loc)
	if err != nil {
		return domain.DateRange{}, err
	}
	end, err := pipeline.ParseRangeDate("end", rng.End, s.loc)
	if err != nil {
		return domain.DateRange{}, err
	}
	return pipeline.SwapRange(domain.DateRange{Start: start, End: end}), nil
}

// subRanges asks the data source how it slices a custom range. A failed or
// empty answer yields no sub-ranges and the range becomes a single bucket.
func (s *ActivityService) subRanges(ctx context.Context, customerID string, r domain.DateRange) []domain.DateRange {
	params := customerParams(customerID)
	params["period"] = string(domain.PeriodCustom)
	params["from"] = r.Start.Format("2006-01-02")
	params["to"] = r.End.Format("2006-01-02")

	snap, err := s.orch.Query(ctx, domain.EndpointSummary, params)
	if err != nil {
		return nil
	}
	if snap.Err != nil {
		s.logger.Warn("custom range slices unavailable", zap.String("customer_id", customerID), zap.Error(snap.Err))
	}
	if snap.Result == nil {
		return nil
	}

	ranges, skipped := pipeline.ParseSubRanges(snap.Result.Ranges, s.loc)
	if skipped > 0 {
		s.logger.Debug("skipped unreadable sub-ranges", zap.Int("count", skipped))
	}
	return ranges
}

func (s *ActivityService) lookupLocal(customerID, transactionID string) (domain.CanonicalTransaction, bool) {
	for _, snap := range s.orch.Snapshots(forCustomer(customerID)) {
		if snap.Endpoint == domain.EndpointDetail {
			continue
		}
		for _, r := range snap.Records() {
			if r.ID == transactionID || r.Reference == transactionID {
				return r, true
			}
		}
	}
	return domain.CanonicalTransaction{}, false
}

func validateCustomer(customerID string) error {
	if strings.TrimSpace(customerID) == "" {
		return &domain.ErrValidation{Field: "customerId", Message: "required"}
	}
	return nil
}

func customerParams(customerID string) domain.Params {
	return domain.Params{"customer": customerID}
}

func forCustomer(customerID string) query.Selector {
	return func(s query.Snapshot) bool { return s.Params["customer"] == customerID }
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, domain.FilterAll)
}

// SingleCurrency names the currency of a view when the filter or the records
// pin exactly one, and is empty otherwise.
func SingleCurrency(f domain.Filter, records []domain.CanonicalTransaction) string {
	if isSet(f.Currency) {
		return strings.ToUpper(strings.TrimSpace(f.Currency))
	}
	code := ""
	for _, r := range records {
		switch {
		case code == "":
			code = r.Currency
		case code != r.Currency:
			return ""
		}
	}
	return code
}
