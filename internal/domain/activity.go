package domain

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Endpoints & parameters
// ============================================================

// Endpoint names one wallet API resource.
type Endpoint string

const (
	EndpointFiatDeposits      Endpoint = "deposits/fiat"
	EndpointFiatWithdrawals   Endpoint = "withdrawals/fiat"
	EndpointCryptoDeposits    Endpoint = "deposits/crypto"
	EndpointCryptoWithdrawals Endpoint = "withdrawals/crypto"
	EndpointBillPayments      Endpoint = "bills"
	EndpointP2POrders         Endpoint = "p2p/orders"
	EndpointConversions       Endpoint = "conversions"
	EndpointSummary           Endpoint = "transactions/summary"
	EndpointDetail            Endpoint = "transactions/detail"
)

// RecordEndpoints are the endpoints that return transaction lists.
var RecordEndpoints = []Endpoint{
	EndpointFiatDeposits,
	EndpointFiatWithdrawals,
	EndpointCryptoDeposits,
	EndpointCryptoWithdrawals,
	EndpointBillPayments,
	EndpointP2POrders,
	EndpointConversions,
}

var endpointHints = map[Endpoint]Category{
	EndpointFiatDeposits:      CategoryFundDeposit,
	EndpointFiatWithdrawals:   CategoryWithdrawal,
	EndpointCryptoDeposits:    CategoryCryptoDeposit,
	EndpointCryptoWithdrawals: CategoryCryptoWithdrawal,
	EndpointBillPayments:      CategoryBillPayment,
	EndpointP2POrders:         CategoryP2PTrade,
	EndpointConversions:       CategoryConversion,
}

// Hint is the category records from this endpoint default to. Empty for
// endpoints that mix categories.
func (e Endpoint) Hint() Category {
	return endpointHints[e]
}

// Params are the request parameters of one query.
type Params map[string]string

// Encode serializes params deterministically (sorted keys, empty values dropped).
func (p Params) Encode() string {
	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := url.Values{}
	for _, k := range keys {
		vals.Set(k, p[k])
	}
	return vals.Encode()
}

// QueryKey addresses one cache slot: endpoint plus serialized params.
func QueryKey(e Endpoint, p Params) string {
	enc := p.Encode()
	if enc == "" {
		return string(e)
	}
	return string(e) + "?" + enc
}

// ============================================================
// Charts
// ============================================================

// Period selects chart bucket granularity.
type Period string

const (
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodCustom Period = "custom"
)

// ParsePeriod accepts the period names case-insensitively.
func ParsePeriod(s string) (Period, bool) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodCustom:
		return p, true
	}
	return "", false
}

// DateRange is a closed date interval. End is inclusive to the end of its day.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label,omitempty"`
}

// ChartRequest is the input of the bucketing engine.
type ChartRequest struct {
	Period Period
	// Range is required for PeriodCustom and ignored otherwise.
	Range *DateRange
	// SubRanges are upstream-supplied slices of a custom range.
	SubRanges []DateRange
	// Now anchors the Day/Week/Month windows; its location is used for bucketing.
	Now time.Time
}

// ChartBucket is one slot of a chart series.
type ChartBucket struct {
	Label string          `json:"label"`
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Total decimal.Decimal `json:"total"`
	Peak  bool            `json:"peak"`
}

// ============================================================
// Summaries
// ============================================================

// Summary total origins.
const (
	SourceUpstream = "source"
	SourceLocal    = "local"
	// SourceMixed marks a side left at zero because the records span several
	// currencies; the per-currency totals carry the amounts.
	SourceMixed = "mixed"
)

// SummaryTotals holds incoming/outgoing totals for one currency context.
type SummaryTotals struct {
	Currency       string          `json:"currency,omitempty"`
	Incoming       decimal.Decimal `json:"incoming"`
	Outgoing       decimal.Decimal `json:"outgoing"`
	IncomingSource string          `json:"incomingSource,omitempty"`
	OutgoingSource string          `json:"outgoingSource,omitempty"`
}

// ============================================================
// Filtering & paging
// ============================================================

// FilterAll is the sentinel for an unset predicate.
const FilterAll = "All"

// Filter is the list predicate selected on the rendering surface.
// Empty or FilterAll fields match everything.
type Filter struct {
	Currency string `json:"currency,omitempty"`
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	Query    string `json:"query,omitempty"`
}

// PageView is the visible slice of a filtered list.
type PageView struct {
	Visible []CanonicalTransaction `json:"visible"`
	HasMore bool                   `json:"hasMore"`
	Window  int                    `json:"window"`
	Total   int                    `json:"total"`
}
