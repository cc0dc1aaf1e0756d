// Package pipeline turns raw wallet records into canonical transactions and
// derives the display structures the app renders from them: chart series,
// incoming/outgoing totals and filtered, paged lists.
//
// Everything here is synchronous and free of side effects.
package pipeline

import (
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
)

var cryptoCurrencies = map[string]bool{
	"BTC": true, "ETH": true, "USDT": true, "USDC": true, "BNB": true,
	"SOL": true, "TRX": true, "LTC": true, "XRP": true, "DOGE": true,
	"MATIC": true, "POL": true, "BUSD": true, "DAI": true, "TON": true,
	"ADA": true, "AVAX": true, "SHIB": true, "BCH": true, "DOT": true,
}

// IsCrypto reports whether the currency code is a crypto asset.
func IsCrypto(currency string) bool {
	return cryptoCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
}

type rule struct {
	keywords []string
	resolve  func(raw domain.RawTransaction, text string) domain.Category
}

// Order matters: "p2p send" is a P2P trade, "bill" beats "pay", and a
// withdraw/send keyword beats "fund" in "withdraw funds".
var rules = []rule{
	{[]string{"p2p", "peer"}, fixed(domain.CategoryP2PTrade)},
	{[]string{"bill", "airtime", "utility", "cable", "electricity"}, fixed(domain.CategoryBillPayment)},
	{[]string{"convert", "conversion", "exchange", "swap"}, fixed(domain.CategoryConversion)},
	{[]string{"withdraw", "send", "sent", "transfer_out", "transfer out", "transfer-out", "payout"}, outbound},
	{[]string{"deposit", "fund", "top_up", "topup", "top-up", "receive"}, inbound},
}

// isCryptoRecord treats a record as crypto-denominated when its currency is a
// crypto asset or it came from a crypto endpoint.
func isCryptoRecord(raw domain.RawTransaction) bool {
	switch raw.SourceHint {
	case domain.CategoryCryptoDeposit, domain.CategoryCryptoWithdrawal:
		return true
	}
	return IsCrypto(raw.Currency)
}

func fixed(c domain.Category) func(domain.RawTransaction, string) domain.Category {
	return func(domain.RawTransaction, string) domain.Category { return c }
}

func outbound(raw domain.RawTransaction, text string) domain.Category {
	if isCryptoRecord(raw) {
		return domain.CategoryCryptoWithdrawal
	}
	if strings.Contains(text, "send") || strings.Contains(text, "sent") || hasRecipient(raw) {
		return domain.CategorySendTransfer
	}
	return domain.CategoryWithdrawal
}

func inbound(raw domain.RawTransaction, _ string) domain.Category {
	if isCryptoRecord(raw) {
		return domain.CategoryCryptoDeposit
	}
	return domain.CategoryFundDeposit
}

// hasRecipient is the secondary discriminator between an internal send and a
// bank withdrawal: sends name another wallet user, withdrawals a bank account.
func hasRecipient(raw domain.RawTransaction) bool {
	if raw.Meta("bankName", "bank_name", "accountNumber", "account_number", "bank.accountNumber") != "" {
		return false
	}
	return raw.Meta("recipient.name", "recipientName", "recipient_name", "recipientUsername", "recipient.username", "recipientTag") != ""
}

// Classify maps a raw record to exactly one category. It never fails: input
// no rule recognizes falls back to the endpoint hint and then to Transfer.
//
// Precedence: normalizedType (trusted when it names a known category), then
// the type field, then the description, then the endpoint hint.
func Classify(raw domain.RawTransaction) domain.Category {
	if c, ok := domain.ParseCategory(raw.NormalizedType); ok {
		return c
	}
	for _, text := range []string{raw.Type, raw.Description} {
		if c, ok := matchRules(raw, text); ok {
			return c
		}
	}
	if raw.SourceHint != "" {
		return adjustHint(raw)
	}
	return domain.CategoryTransfer
}

func matchRules(raw domain.RawTransaction, text string) (domain.Category, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.resolve(raw, text), true
			}
		}
	}
	return "", false
}

// adjustHint moves a fiat endpoint hint to its crypto counterpart when the
// record is crypto-denominated. Crypto hints are kept as they are.
func adjustHint(raw domain.RawTransaction) domain.Category {
	crypto := IsCrypto(raw.Currency)
	switch raw.SourceHint {
	case domain.CategoryFundDeposit:
		if crypto {
			return domain.CategoryCryptoDeposit
		}
	case domain.CategoryWithdrawal, domain.CategorySendTransfer:
		if crypto {
			return domain.CategoryCryptoWithdrawal
		}
		if hasRecipient(raw) {
			return domain.CategorySendTransfer
		}
	}
	if c, ok := domain.ParseCategory(string(raw.SourceHint)); ok {
		return c
	}
	return domain.CategoryTransfer
}
