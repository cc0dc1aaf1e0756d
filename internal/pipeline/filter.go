package pipeline

import (
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
)

// Default list window sizes.
const (
	DefaultWindow = 20
	DefaultStep   = 20
)

// Apply returns the records matching every set predicate of f, in input
// order. The input slice is not modified.
func Apply(records []domain.CanonicalTransaction, f domain.Filter) []domain.CanonicalTransaction {
	out := make([]domain.CanonicalTransaction, 0, len(records))
	for _, r := range records {
		if Matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r satisfies f. The free-text query matches the
// counterpart, the currency code and the crypto network, ignoring case.
func Matches(r domain.CanonicalTransaction, f domain.Filter) bool {
	if isSet(f.Currency) && !strings.EqualFold(r.Currency, strings.TrimSpace(f.Currency)) {
		return false
	}
	if isSet(f.Status) && !strings.EqualFold(string(r.Status), strings.TrimSpace(f.Status)) {
		return false
	}
	if isSet(f.Category) {
		c, ok := domain.ParseCategory(f.Category)
		if !ok || r.Category != c {
			return false
		}
	}
	if isSet(f.Query) {
		q := strings.ToLower(strings.TrimSpace(f.Query))
		if !strings.Contains(strings.ToLower(r.Counterpart), q) &&
			!strings.Contains(strings.ToLower(r.Currency), q) &&
			!strings.Contains(strings.ToLower(r.Network), q) {
			return false
		}
	}
	return true
}

// SourceComparable reports whether f selects the records a data source's own
// totals describe: at most a currency, no status, category or text predicate.
func SourceComparable(f domain.Filter) bool {
	return !isSet(f.Status) && !isSet(f.Category) && !isSet(f.Query)
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, domain.FilterAll)
}

// Page returns the first window records and whether more remain.
func Page(records []domain.CanonicalTransaction, window int) domain.PageView {
	if window < 0 {
		window = 0
	}
	n := min(window, len(records))
	return domain.PageView{
		Visible: records[:n:n],
		HasMore: len(records) > window,
		Window:  window,
		Total:   len(records),
	}
}

// Pager is the list state of one screen session: the active filter and the
// visible window size. It is a value; every method returns a new Pager.
type Pager struct {
	Filter  domain.Filter
	Window  int
	Initial int
	Step    int
}

// NewPager starts a session with the given initial window and load-more step.
// Non-positive sizes fall back to the defaults.
func NewPager(initial, step int) Pager {
	if initial <= 0 {
		initial = DefaultWindow
	}
	if step <= 0 {
		step = DefaultStep
	}
	return Pager{Window: initial, Initial: initial, Step: step}
}

// LoadMore grows the window by one step. The window never shrinks.
func (p Pager) LoadMore() Pager {
	p.Window += p.Step
	return p
}

// WithFilter switches to f. Any change resets the window to its initial size.
func (p Pager) WithFilter(f domain.Filter) Pager {
	if f != p.Filter {
		p.Filter = f
		p.Window = p.Initial
	}
	return p
}

// View filters records and cuts the current window. HasMore is computed
// against the filtered count.
func (p Pager) View(records []domain.CanonicalTransaction) domain.PageView {
	return Page(Apply(records, p.Filter), p.Window)
}
