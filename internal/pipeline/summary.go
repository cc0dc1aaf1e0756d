package pipeline

import (
	"sort"
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// Summarize totals the records that credit or debit the wallet.
//
// Incoming: fund and crypto deposits, plus successful inbound P2P trades and
// conversion legs. Outgoing: withdrawals, sends, bill payments and crypto
// withdrawals. Transfer-fallback records count toward neither side.
//
// Amounts are never added across currencies: when the records span several,
// both sides stay zero with source SourceMixed and SummarizeByCurrency holds
// the figures.
func Summarize(records []domain.CanonicalTransaction) domain.SummaryTotals {
	totals := domain.SummaryTotals{
		Incoming:       decimal.Zero,
		Outgoing:       decimal.Zero,
		IncomingSource: domain.SourceLocal,
		OutgoingSource: domain.SourceLocal,
	}
	codes, _ := GroupByCurrency(records)
	switch {
	case len(codes) > 1:
		totals.IncomingSource = domain.SourceMixed
		totals.OutgoingSource = domain.SourceMixed
		return totals
	case len(codes) == 1:
		totals.Currency = codes[0]
	}
	for _, r := range records {
		switch {
		case isCredit(r):
			totals.Incoming = totals.Incoming.Add(r.Amount)
		case isDebit(r):
			totals.Outgoing = totals.Outgoing.Add(r.Amount)
		}
	}
	return totals
}

// SummarizeByCurrency runs Summarize once per currency, sorted by code.
func SummarizeByCurrency(records []domain.CanonicalTransaction) []domain.SummaryTotals {
	codes, groups := GroupByCurrency(records)
	out := make([]domain.SummaryTotals, 0, len(codes))
	for _, c := range codes {
		out = append(out, Summarize(groups[c]))
	}
	return out
}

// GroupByCurrency splits records by currency code, keeping input order within
// each group. Codes come back sorted.
func GroupByCurrency(records []domain.CanonicalTransaction) ([]string, map[string][]domain.CanonicalTransaction) {
	groups := make(map[string][]domain.CanonicalTransaction)
	for _, r := range records {
		groups[r.Currency] = append(groups[r.Currency], r)
	}
	codes := make([]string, 0, len(groups))
	for c := range groups {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes, groups
}

// SummarizeWithSource prefers the totals the data source computed. Each side
// is taken whole from the source when the source value is present and
// numeric, otherwise whole from the local sum; the two are never mixed. A
// local side over several currencies stays zero as in Summarize.
func SummarizeWithSource(records []domain.CanonicalTransaction, src *domain.RawSummary) domain.SummaryTotals {
	totals := Summarize(records)
	if src == nil {
		return totals
	}
	if v, ok := sourceTotal(src.Incoming); ok {
		totals.Incoming = v
		totals.IncomingSource = domain.SourceUpstream
	}
	if v, ok := sourceTotal(src.Outgoing); ok {
		totals.Outgoing = v
		totals.OutgoingSource = domain.SourceUpstream
	}
	if src.Currency != "" {
		totals.Currency = strings.ToUpper(src.Currency)
	}
	return totals
}

func sourceTotal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isCredit(r domain.CanonicalTransaction) bool {
	switch r.Category {
	case domain.CategoryFundDeposit, domain.CategoryCryptoDeposit:
		return true
	case domain.CategoryP2PTrade, domain.CategoryConversion:
		return r.Direction == domain.DirectionInbound && r.Status == domain.StatusSuccessful
	}
	return false
}

func isDebit(r domain.CanonicalTransaction) bool {
	switch r.Category {
	case domain.CategoryWithdrawal, domain.CategorySendTransfer, domain.CategoryBillPayment, domain.CategoryCryptoWithdrawal:
		return true
	}
	return false
}
