package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed for records that carry no currency code.
const DefaultCurrency = "NGN"

// Issues found while normalizing a malformed record.
const (
	IssueMissingID       = "missing_id"
	IssueMissingAmount   = "missing_amount"
	IssueInvalidAmount   = "invalid_amount"
	IssueMissingCurrency = "missing_currency"
	IssueUnknownTime     = "unknown_time"
)

// recordNamespace seeds name-based ids for records the wallet API sent without one.
var recordNamespace = uuid.MustParse("6f1c0a52-3d5e-4c4b-9f0e-8a7d2b1c9e34")

// Normalization is the result of normalizing one raw record.
type Normalization struct {
	Transaction domain.CanonicalTransaction
	Issues      []string
}

// Normalize builds the canonical form of raw. Missing or unreadable required
// fields never fail the record; they fall back (amount 0, currency NGN, a
// content-derived id) and are reported as issues.
func Normalize(raw domain.RawTransaction) Normalization {
	var issues []string

	amount, ok := parseAmount(raw.Amount)
	switch {
	case raw.Amount == "":
		issues = append(issues, IssueMissingAmount)
	case !ok:
		issues = append(issues, IssueInvalidAmount)
	}

	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = DefaultCurrency
		issues = append(issues, IssueMissingCurrency)
	}
	// Classification reads the effective currency; Raw keeps what was received.
	eff := raw
	eff.Currency = currency

	id := raw.ID
	if id == "" {
		id = fallbackID(raw)
		issues = append(issues, IssueMissingID)
	}

	created := ParseTimestamp(raw.CreatedAt)
	occurred := ParseTimestamp(raw.CompletedAt)
	if occurred.IsZero() {
		occurred = created
	}
	if occurred.IsZero() {
		issues = append(issues, IssueUnknownTime)
	}

	category := Classify(eff)
	details := detailsFor(category, raw)

	tx := domain.CanonicalTransaction{
		ID:          id,
		Category:    category,
		Status:      NormalizeStatus(raw.Status),
		Direction:   directionOf(category, raw),
		Amount:      amount,
		Currency:    currency,
		Fee:         optionalAmount(raw.Fee),
		TotalAmount: optionalAmount(raw.TotalAmount),
		OccurredAt:  occurred,
		CreatedAt:   created,
		Counterpart: counterpart(category, details, raw),
		Network:     raw.Meta("network", "blockchain", "chain"),
		Reference:   reference(raw, id),
		Description: raw.Description,
		Details:     details,
		Raw:         raw,
	}
	return Normalization{Transaction: tx, Issues: issues}
}

// NormalizeAll normalizes a batch. Issues are keyed by canonical id and
// only present for malformed records.
func NormalizeAll(raws []domain.RawTransaction) ([]domain.CanonicalTransaction, map[string][]string) {
	out := make([]domain.CanonicalTransaction, 0, len(raws))
	issues := make(map[string][]string)
	for _, raw := range raws {
		n := Normalize(raw)
		out = append(out, n.Transaction)
		if len(n.Issues) > 0 {
			issues[n.Transaction.ID] = n.Issues
		}
	}
	return out, issues
}

// parseAmount reads a decimal string as a magnitude. Direction comes from the
// category, so a leading minus is dropped.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Abs(), true
}

func optionalAmount(s string) *decimal.Decimal {
	if d, ok := parseAmount(s); ok {
		return &d
	}
	return nil
}

func fallbackID(raw domain.RawTransaction) string {
	body, _ := json.Marshal(raw)
	return uuid.NewSHA1(recordNamespace, body).String()
}

func reference(raw domain.RawTransaction, id string) string {
	if raw.Reference != "" {
		return raw.Reference
	}
	if ref := raw.Meta("txHash", "hash", "reference", "sessionId"); ref != "" {
		return ref
	}
	return id
}

func detailsFor(c domain.Category, raw domain.RawTransaction) domain.Details {
	switch c {
	case domain.CategoryFundDeposit, domain.CategoryWithdrawal:
		return domain.BankDetails{
			BankName:      raw.Meta("bankName", "bank_name", "bank.name"),
			AccountName:   raw.Meta("accountName", "account_name", "bank.accountName"),
			AccountNumber: raw.Meta("accountNumber", "account_number", "bank.accountNumber"),
			SenderName:    raw.Meta("senderName", "sender_name", "sender.name", "payerName"),
		}
	case domain.CategoryCryptoDeposit, domain.CategoryCryptoWithdrawal:
		addrKeys := []string{"toAddress", "to_address", "address", "walletAddress"}
		if c == domain.CategoryCryptoDeposit {
			addrKeys = []string{"fromAddress", "from_address", "senderAddress", "address"}
		}
		return domain.ChainDetails{
			Network: raw.Meta("network", "blockchain", "chain"),
			Address: raw.Meta(addrKeys...),
			TxHash:  raw.Meta("txHash", "tx_hash", "hash"),
		}
	case domain.CategorySendTransfer:
		return domain.RecipientDetails{
			Name:     raw.Meta("recipient.name", "recipientName", "recipient_name"),
			Username: raw.Meta("recipient.username", "recipientUsername", "recipientTag"),
			Account:  raw.Meta("recipient.account", "recipientAccount"),
		}
	case domain.CategoryBillPayment:
		return domain.BillDetails{
			Provider: raw.Meta("provider", "providerName", "provider.name", "billerName", "biller"),
			Category: raw.Meta("category", "billCategory", "serviceType"),
			Plan:     raw.Meta("plan", "plan.name", "planName", "bundle"),
			Customer: raw.Meta("customerId", "meterNumber", "phoneNumber", "smartCardNumber"),
		}
	case domain.CategoryP2PTrade:
		return domain.P2PDetails{
			Side:         strings.ToLower(raw.Meta("side", "tradeType", "orderSide")),
			Counterparty: raw.Meta("counterpartyName", "counterparty.name", "merchantName", "traderName", "counterparty"),
			Price:        raw.Meta("price", "rate"),
		}
	case domain.CategoryConversion:
		return domain.ConversionDetails{
			From: strings.ToUpper(raw.Meta("fromCurrency", "from_currency", "from", "sourceCurrency")),
			To:   strings.ToUpper(raw.Meta("toCurrency", "to_currency", "to", "targetCurrency")),
			Rate: raw.Meta("rate", "exchangeRate"),
		}
	default:
		return domain.GenericDetails{
			Party: raw.Meta("recipientName", "recipient.name", "senderName", "sender.name", "counterparty"),
		}
	}
}

func counterpart(c domain.Category, d domain.Details, raw domain.RawTransaction) string {
	if name := d.Counterpart(); name != "" {
		return name
	}
	if raw.Description != "" {
		return raw.Description
	}
	return c.Label()
}

var (
	inboundWords  = map[string]bool{"in": true, "inbound": true, "incoming": true, "credit": true, "buy": true, "received": true}
	outboundWords = map[string]bool{"out": true, "outbound": true, "outgoing": true, "debit": true, "sell": true, "sent": true}
)

func directionOf(c domain.Category, raw domain.RawTransaction) domain.Direction {
	switch c {
	case domain.CategoryFundDeposit, domain.CategoryCryptoDeposit:
		return domain.DirectionInbound
	case domain.CategoryWithdrawal, domain.CategorySendTransfer, domain.CategoryBillPayment, domain.CategoryCryptoWithdrawal:
		return domain.DirectionOutbound
	}
	word := strings.ToLower(raw.Meta("direction", "flow", "side", "tradeType", "leg", "entryType"))
	switch {
	case inboundWords[word]:
		return domain.DirectionInbound
	case outboundWords[word]:
		return domain.DirectionOutbound
	}
	return domain.DirectionUnknown
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads the timestamp formats the wallet API emits, including
// unix seconds and milliseconds. Zone-less values are read as UTC. It returns
// the zero time when nothing matches.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseRangeDate parses a date typed into the custom-range picker. It accepts
// YYYY-MM-DD, RFC3339 and DD/MM/YYYY. A slash date whose day and month could
// be swapped (both <= 12 and different) is ambiguous and rejected.
func ParseRangeDate(field, s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	if parts := strings.Split(s, "/"); len(parts) == 3 {
		day, err1 := strconv.Atoi(parts[0])
		month, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && (day > 12 || day == month) {
			if t, err := time.ParseInLocation("2/1/2006", s, loc); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &domain.ErrAmbiguousDate{Field: field, Input: s}
}
