package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedRecords() []domain.CanonicalTransaction {
	var out []domain.CanonicalTransaction
	for i := range 5 {
		r := rec(fmt.Sprintf("ngn-%d", i), domain.CategorySendTransfer, domain.StatusSuccessful, "100", "NGN")
		r.Counterpart = "Ada Lovelace"
		out = append(out, r)
	}
	for i := range 3 {
		r := rec(fmt.Sprintf("btc-%d", i), domain.CategoryCryptoDeposit, domain.StatusPending, "0.01", "BTC")
		r.Network = "Bitcoin"
		r.Counterpart = "bc1q…abcd"
		out = append(out, r)
	}
	return out
}

func TestApply_AllSentinelMatchesEverything(t *testing.T) {
	records := mixedRecords()
	got := pipeline.Apply(records, domain.Filter{Currency: "All", Status: "all", Category: "", Query: ""})
	assert.Len(t, got, len(records))
}

func TestApply_Conjunctive(t *testing.T) {
	records := mixedRecords()

	assert.Len(t, pipeline.Apply(records, domain.Filter{Currency: "btc"}), 3)
	assert.Len(t, pipeline.Apply(records, domain.Filter{Currency: "BTC", Status: "pending"}), 3)
	assert.Empty(t, pipeline.Apply(records, domain.Filter{Currency: "BTC", Status: "successful"}))
	assert.Len(t, pipeline.Apply(records, domain.Filter{Category: "SendTransfer"}), 5)
	assert.Empty(t, pipeline.Apply(records, domain.Filter{Category: "not-a-category"}))
}

func TestApply_QueryMatchesCounterpartCurrencyAndNetwork(t *testing.T) {
	records := mixedRecords()

	assert.Len(t, pipeline.Apply(records, domain.Filter{Query: "lovelace"}), 5)
	assert.Len(t, pipeline.Apply(records, domain.Filter{Query: "btc"}), 3)
	assert.Len(t, pipeline.Apply(records, domain.Filter{Query: "bitcoin"}), 3)
	assert.Empty(t, pipeline.Apply(records, domain.Filter{Query: "ethereum"}))
}

func TestPager_BTCFilterHasMore(t *testing.T) {
	records := mixedRecords()

	p := pipeline.NewPager(2, 2).WithFilter(domain.Filter{Currency: "BTC"})
	view := p.View(records)
	require.Len(t, view.Visible, 2)
	assert.True(t, view.HasMore)
	assert.Equal(t, 3, view.Total)
	for _, r := range view.Visible {
		assert.Equal(t, "BTC", r.Currency)
	}

	p = p.LoadMore()
	view = p.View(records)
	assert.Len(t, view.Visible, 3)
	assert.Equal(t, 4, view.Window)
	assert.False(t, view.HasMore)
}

func TestPager_FilterChangeResetsWindow(t *testing.T) {
	p := pipeline.NewPager(10, 5).LoadMore().LoadMore()
	require.Equal(t, 20, p.Window)

	same := p.WithFilter(domain.Filter{})
	assert.Equal(t, 20, same.Window)

	for _, f := range []domain.Filter{
		{Currency: "NGN"},
		{Status: "failed"},
		{Category: "bill_payment"},
		{Query: "ada"},
	} {
		assert.Equal(t, 10, p.WithFilter(f).Window, "filter %+v", f)
	}
}

func TestPager_WindowNeverShrinks(t *testing.T) {
	p := pipeline.NewPager(0, 0)
	assert.Equal(t, pipeline.DefaultWindow, p.Window)

	prev := p.Window
	for range 5 {
		p = p.LoadMore()
		assert.Greater(t, p.Window, prev)
		prev = p.Window
	}
}

func TestPage_Bounds(t *testing.T) {
	records := mixedRecords()

	view := pipeline.Page(records, 100)
	assert.Len(t, view.Visible, len(records))
	assert.False(t, view.HasMore)

	view = pipeline.Page(records, len(records))
	assert.False(t, view.HasMore)

	view = pipeline.Page(nil, 20)
	assert.Empty(t, view.Visible)
	assert.False(t, view.HasMore)
}
