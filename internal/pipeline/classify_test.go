package pipeline_test

import (
	"testing"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/pipeline"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Rules(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.RawTransaction
		want domain.Category
	}{
		{"normalized type wins", domain.RawTransaction{NormalizedType: "CryptoDeposit", Type: "withdraw"}, domain.CategoryCryptoDeposit},
		{"unknown normalized type ignored", domain.RawTransaction{NormalizedType: "mystery", Type: "deposit", Currency: "NGN"}, domain.CategoryFundDeposit},
		{"fiat deposit", domain.RawTransaction{Type: "DEPOSIT", Currency: "NGN"}, domain.CategoryFundDeposit},
		{"wallet funding", domain.RawTransaction{Type: "wallet_funding", Currency: "NGN"}, domain.CategoryFundDeposit},
		{"crypto deposit", domain.RawTransaction{Type: "deposit", Currency: "BTC"}, domain.CategoryCryptoDeposit},
		{"bank withdrawal", domain.RawTransaction{Type: "withdrawal", Currency: "NGN", Metadata: map[string]any{"bankName": "GTBank"}}, domain.CategoryWithdrawal},
		{"withdrawal to user", domain.RawTransaction{Type: "withdrawal", Currency: "NGN", Metadata: map[string]any{"recipientName": "Ada"}}, domain.CategorySendTransfer},
		{"send", domain.RawTransaction{Type: "send", Currency: "NGN"}, domain.CategorySendTransfer},
		{"crypto send", domain.RawTransaction{Type: "send", Currency: "usdt"}, domain.CategoryCryptoWithdrawal},
		{"past tense sent", domain.RawTransaction{Description: "Money sent to Ada", Currency: "NGN"}, domain.CategorySendTransfer},
		{"crypto sent", domain.RawTransaction{Type: "sent", Currency: "BTC"}, domain.CategoryCryptoWithdrawal},
		{"transfer out", domain.RawTransaction{Type: "Transfer Out", Currency: "NGN"}, domain.CategoryWithdrawal},
		{"bill", domain.RawTransaction{Type: "BILL_PAYMENT"}, domain.CategoryBillPayment},
		{"p2p beats send", domain.RawTransaction{Type: "p2p_send"}, domain.CategoryP2PTrade},
		{"exchange", domain.RawTransaction{Type: "exchange"}, domain.CategoryConversion},
		{"convert", domain.RawTransaction{Type: "convert"}, domain.CategoryConversion},
		{"withdraw funds", domain.RawTransaction{Type: "withdraw funds", Currency: "NGN"}, domain.CategoryWithdrawal},
		{"description fallback", domain.RawTransaction{Description: "Airtime purchase"}, domain.CategoryBillPayment},
		{"endpoint hint", domain.RawTransaction{SourceHint: domain.CategoryP2PTrade}, domain.CategoryP2PTrade},
		{"fiat hint on crypto record", domain.RawTransaction{SourceHint: domain.CategoryFundDeposit, Currency: "ETH"}, domain.CategoryCryptoDeposit},
		{"crypto endpoint without currency", domain.RawTransaction{Type: "withdraw", SourceHint: domain.CategoryCryptoWithdrawal}, domain.CategoryCryptoWithdrawal},
		{"nothing to go on", domain.RawTransaction{}, domain.CategoryTransfer},
		{"unrecognized type", domain.RawTransaction{Type: "reversal"}, domain.CategoryTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pipeline.Classify(tt.raw))
		})
	}
}

func TestClassify_IsTotal(t *testing.T) {
	known := make(map[domain.Category]bool)
	for _, c := range domain.Categories {
		known[c] = true
	}

	types := []string{"", "deposit", "withdraw", "send", "bill", "p2p", "convert", "???", "fund", "refund", "SWAP"}
	currencies := []string{"", "NGN", "USD", "BTC", "xyz"}
	hints := []domain.Category{"", domain.CategoryConversion, domain.CategoryWithdrawal, "bogus"}

	for _, typ := range types {
		for _, cur := range currencies {
			for _, hint := range hints {
				got := pipeline.Classify(domain.RawTransaction{Type: typ, Currency: cur, SourceHint: hint})
				assert.True(t, known[got], "type=%q currency=%q hint=%q gave %q", typ, cur, hint, got)
			}
		}
	}
}

func TestIsCrypto(t *testing.T) {
	assert.True(t, pipeline.IsCrypto("btc"))
	assert.True(t, pipeline.IsCrypto(" USDT "))
	assert.False(t, pipeline.IsCrypto("NGN"))
	assert.False(t, pipeline.IsCrypto(""))
}
