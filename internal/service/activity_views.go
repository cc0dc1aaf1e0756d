package service

import (
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"
	"github.com/boddenberg/wallet-activity-bfa/internal/query"

	"github.com/shopspring/decimal"
)

// ============================================================
// Display-ready views returned to the rendering surface
// ============================================================

// TransactionView is a canonical record plus its display strings.
type TransactionView struct {
	ID              string           `json:"id"`
	Category        domain.Category  `json:"category"`
	CategoryLabel   string           `json:"categoryLabel"`
	Status          domain.Status    `json:"status"`
	Direction       domain.Direction `json:"direction"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	FormattedAmount string           `json:"formattedAmount"`
	Fee             *decimal.Decimal `json:"fee,omitempty"`
	FormattedFee    string           `json:"formattedFee,omitempty"`
	TotalAmount     *decimal.Decimal `json:"totalAmount,omitempty"`
	OccurredAt      *time.Time       `json:"occurredAt"`
	Counterpart     string           `json:"counterpart"`
	Network         string           `json:"network,omitempty"`
	Reference       string           `json:"reference"`
	Description     string           `json:"description,omitempty"`
	Details         domain.Details   `json:"details,omitempty"`
}

// QueryError reports one failed upstream query so the client can offer a retry.
type QueryError struct {
	Endpoint domain.Endpoint `json:"endpoint"`
	Message  string          `json:"message"`
}

// ActivityList is the filtered, windowed transaction list.
type ActivityList struct {
	Items      []TransactionView `json:"items"`
	HasMore    bool              `json:"hasMore"`
	Window     int               `json:"window"`
	NextWindow int               `json:"nextWindow,omitempty"`
	Total      int               `json:"total"`
	Filter     domain.Filter     `json:"filter"`
	Errors     []QueryError      `json:"errors,omitempty"`
}

// BucketView is one chart bucket with its formatted total.
type BucketView struct {
	Label     string          `json:"label"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Total     decimal.Decimal `json:"total"`
	Formatted string          `json:"formatted,omitempty"`
	Peak      bool            `json:"peak"`
}

// CurrencySeriesView is the chart series of one currency.
type CurrencySeriesView struct {
	Currency string       `json:"currency"`
	Buckets  []BucketView `json:"buckets"`
}

// ChartView is the chart series for one period. When the records span
// several currencies Buckets is the zero-filled skeleton and ByCurrency holds
// one series per currency.
type ChartView struct {
	Period     domain.Period        `json:"period"`
	Currency   string               `json:"currency,omitempty"`
	Buckets    []BucketView         `json:"buckets"`
	ByCurrency []CurrencySeriesView `json:"byCurrency,omitempty"`
	Errors     []QueryError         `json:"errors,omitempty"`
}

// TotalsView is one set of incoming/outgoing totals.
type TotalsView struct {
	Currency          string          `json:"currency,omitempty"`
	Incoming          decimal.Decimal `json:"incoming"`
	Outgoing          decimal.Decimal `json:"outgoing"`
	FormattedIncoming string          `json:"formattedIncoming,omitempty"`
	FormattedOutgoing string          `json:"formattedOutgoing,omitempty"`
	IncomingSource    string          `json:"incomingSource"`
	OutgoingSource    string          `json:"outgoingSource"`
}

// SummaryView holds the totals for the active filter and, when no single
// currency is selected, a per-currency breakdown.
type SummaryView struct {
	TotalsView
	ByCurrency []TotalsView  `json:"byCurrency,omitempty"`
	Filter     domain.Filter `json:"filter"`
	Errors     []QueryError  `json:"errors,omitempty"`
}

// DetailView is a single transaction resolved for the detail screen.
type DetailView struct {
	TransactionView
	State       query.State `json:"state"`
	DetailError string      `json:"detailError,omitempty"`
}

// NewTransactionView adds display strings to a canonical record.
func NewTransactionView(t domain.CanonicalTransaction) TransactionView {
	v := TransactionView{
		ID:              t.ID,
		Category:        t.Category,
		CategoryLabel:   t.Category.Label(),
		Status:          t.Status,
		Direction:       t.Direction,
		Amount:          t.Amount,
		Currency:        t.Currency,
		FormattedAmount: pipeline.Format(t.Amount, t.Currency),
		Fee:             t.Fee,
		TotalAmount:     t.TotalAmount,
		Counterpart:     t.Counterpart,
		Network:         t.Network,
		Reference:       t.Reference,
		Description:     t.Description,
		Details:         t.Details,
	}
	if t.Fee != nil {
		v.FormattedFee = pipeline.Format(*t.Fee, t.Currency)
	}
	if t.HasTime() {
		at := t.OccurredAt
		v.OccurredAt = &at
	}
	return v
}

// NewTransactionViews converts records in order.
func NewTransactionViews(records []domain.CanonicalTransaction) []TransactionView {
	out := make([]TransactionView, 0, len(records))
	for _, r := range records {
		out = append(out, NewTransactionView(r))
	}
	return out
}

// NewChartView buckets already filtered records for req. Amounts of
// different currencies never share a bucket.
func NewChartView(records []domain.CanonicalTransaction, filter domain.Filter, req domain.ChartRequest) (*ChartView, error) {
	currency := SingleCurrency(filter, records)
	out := &ChartView{Period: req.Period, Currency: currency}

	if currency != "" || len(records) == 0 {
		buckets, err := pipeline.Bucketize(records, req)
		if err != nil {
			return nil, err
		}
		out.Buckets = newBucketViews(buckets, currency)
		return out, nil
	}

	skeleton, err := pipeline.Bucketize(nil, req)
	if err != nil {
		return nil, err
	}
	out.Buckets = newBucketViews(skeleton, "")

	codes, groups := pipeline.GroupByCurrency(records)
	for _, code := range codes {
		buckets, err := pipeline.Bucketize(groups[code], req)
		if err != nil {
			return nil, err
		}
		out.ByCurrency = append(out.ByCurrency, CurrencySeriesView{Currency: code, Buckets: newBucketViews(buckets, code)})
	}
	return out, nil
}

func newBucketViews(buckets []domain.ChartBucket, currency string) []BucketView {
	out := make([]BucketView, 0, len(buckets))
	for _, b := range buckets {
		bv := BucketView{Label: b.Label, Start: b.Start, End: b.End, Total: b.Total, Peak: b.Peak}
		if currency != "" {
			bv.Formatted = pipeline.Format(b.Total, currency)
		}
		out = append(out, bv)
	}
	return out
}

// NewTotalsView formats totals when their currency is known.
func NewTotalsView(t domain.SummaryTotals) TotalsView {
	v := TotalsView{
		Currency:       t.Currency,
		Incoming:       t.Incoming,
		Outgoing:       t.Outgoing,
		IncomingSource: t.IncomingSource,
		OutgoingSource: t.OutgoingSource,
	}
	if t.Currency != "" {
		v.FormattedIncoming = pipeline.Format(t.Incoming, t.Currency)
		v.FormattedOutgoing = pipeline.Format(t.Outgoing, t.Currency)
	}
	return v
}
