package pipeline_test

import (
	"testing"

	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1234567.5", "NGN", "₦1,234,567.50"},
		{"999", "USD", "$999.00"},
		{"-250.5", "usd", "-$250.50"},
		{"123456", "NGN", "₦123,456.00"},
		{"1500", "GBP", "GBP 1,500.00"},
		{"0.00012000", "BTC", "BTC 0.00012"},
		{"1.123456789", "ETH", "ETH 1.12345679"},
		{"0", "BTC", "BTC 0"},
		{"2500.1", "USDT", "USDT 2,500.1"},
		{"0", "NGN", "₦0.00"},
	}

	for _, tt := range tests {
		got := pipeline.Format(decimal.RequireFromString(tt.amount), tt.currency)
		assert.Equal(t, tt.want, got, "%s %s", tt.amount, tt.currency)
	}
}

func TestFormatASCII(t *testing.T) {
	assert.Equal(t, "N1,000.00", pipeline.FormatASCII(decimal.NewFromInt(1000), "NGN"))
	assert.Equal(t, "$5.00", pipeline.FormatASCII(decimal.NewFromInt(5), "USD"))
}
