// Package domain defines the entities shared by the activity pipeline, the
// query orchestrator and the HTTP layer. Raw records come from the wallet API;
// canonical records are what every other component consumes.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Categories
// ============================================================

// Category is the closed set of canonical transaction categories.
type Category string

const (
	CategoryFundDeposit      Category = "fund_deposit"
	CategoryWithdrawal       Category = "withdrawal"
	CategorySendTransfer     Category = "send_transfer"
	CategoryBillPayment      Category = "bill_payment"
	CategoryP2PTrade         Category = "p2p_trade"
	CategoryConversion       Category = "conversion"
	CategoryCryptoDeposit    Category = "crypto_deposit"
	CategoryCryptoWithdrawal Category = "crypto_withdrawal"
	// CategoryTransfer is the fallback for anything the classifier cannot place.
	CategoryTransfer Category = "transfer"
)

// Categories lists every category, fallback last.
var Categories = []Category{
	CategoryFundDeposit,
	CategoryWithdrawal,
	CategorySendTransfer,
	CategoryBillPayment,
	CategoryP2PTrade,
	CategoryConversion,
	CategoryCryptoDeposit,
	CategoryCryptoWithdrawal,
	CategoryTransfer,
}

var categoryLabels = map[Category]string{
	CategoryFundDeposit:      "Fund Deposit",
	CategoryWithdrawal:       "Withdrawal",
	CategorySendTransfer:     "Send",
	CategoryBillPayment:      "Bill Payment",
	CategoryP2PTrade:         "P2P Trade",
	CategoryConversion:       "Conversion",
	CategoryCryptoDeposit:    "Crypto Deposit",
	CategoryCryptoWithdrawal: "Crypto Withdrawal",
	CategoryTransfer:         "Transfer",
}

// Label is the display name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryTransfer]
}

// ParseCategory matches s against the known categories, ignoring case,
// spaces, dashes and underscores ("FundDeposit", "fund-deposit" and
// "fund_deposit" are equal).
func ParseCategory(s string) (Category, bool) {
	key := squash(s)
	if key == "" {
		return "", false
	}
	for _, c := range Categories {
		if squash(string(c)) == key {
			return c, true
		}
	}
	return "", false
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// ============================================================
// Status / direction
// ============================================================

// Status is the canonical settlement state.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusPending    Status = "pending"
	StatusFailed     Status = "failed"
)

// ParseStatus matches an exact canonical status value (case-insensitive).
// Raw upstream strings go through pipeline.NormalizeStatus instead.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusSuccessful):
		return StatusSuccessful, true
	case string(StatusPending):
		return StatusPending, true
	case string(StatusFailed):
		return StatusFailed, true
	}
	return "", false
}

// Direction says whether a record moved value into or out of the wallet.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionUnknown  Direction = "unknown"
)

// ============================================================
// Canonical transaction
// ============================================================

// CanonicalTransaction is the normalized record. It is built once per fetch
// response and never modified afterwards; re-normalizing yields a new value.
type CanonicalTransaction struct {
	ID          string           `json:"id"`
	Category    Category         `json:"category"`
	Status      Status           `json:"status"`
	Direction   Direction        `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	Fee         *decimal.Decimal `json:"fee,omitempty"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	// OccurredAt prefers completion time, then creation time. Zero when neither parses.
	OccurredAt  time.Time      `json:"occurredAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	Counterpart string         `json:"counterpart"`
	Network     string         `json:"network,omitempty"`
	Reference   string         `json:"reference"`
	Description string         `json:"description,omitempty"`
	Details     Details        `json:"details"`
	Raw         RawTransaction `json:"raw"`
}

// HasTime reports whether the occurrence time is known.
func (t CanonicalTransaction) HasTime() bool {
	return !t.OccurredAt.IsZero()
}

// ============================================================
// Per-category details
// ============================================================

// Details is the category-specific part of a canonical record. The set of
// implementations is closed: only this package can add one.
type Details interface {
	// Counterpart is the display name of the other side of the transaction.
	Counterpart() string
	details()
}

// BankDetails describes a fiat deposit or withdrawal against a bank account.
type BankDetails struct {
	BankName      string `json:"bankName,omitempty"`
	AccountName   string `json:"accountName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	SenderName    string `json:"senderName,omitempty"`
}

func (d BankDetails) Counterpart() string {
	return firstNonEmpty(d.SenderName, d.AccountName, d.BankName)
}

// ChainDetails describes an on-chain crypto movement.
type ChainDetails struct {
	Network string `json:"network,omitempty"`
	Address string `json:"address,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

func (d ChainDetails) Counterpart() string {
	if d.Address != "" {
		return shortAddress(d.Address)
	}
	return d.Network
}

// RecipientDetails describes an internal send to another user.
type RecipientDetails struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Account  string `json:"account,omitempty"`
}

func (d RecipientDetails) Counterpart() string {
	if d.Username != "" && d.Name == "" {
		return "@" + strings.TrimPrefix(d.Username, "@")
	}
	return firstNonEmpty(d.Name, d.Account)
}

// BillDetails describes a bill payment.
type BillDetails struct {
	Provider string `json:"provider,omitempty"`
	Category string `json:"category,omitempty"`
	Plan     string `json:"plan,omitempty"`
	Customer string `json:"customer,omitempty"`
}

func (d BillDetails) Counterpart() string {
	return firstNonEmpty(d.Provider, d.Category)
}

// P2PDetails describes a peer-to-peer order.
type P2PDetails struct {
	Side         string `json:"side,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	Price        string `json:"price,omitempty"`
}

func (d P2PDetails) Counterpart() string {
	return d.Counterparty
}

// ConversionDetails describes a currency conversion.
type ConversionDetails struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Rate string `json:"rate,omitempty"`
}

func (d ConversionDetails) Counterpart() string {
	if d.From == "" || d.To == "" {
		return firstNonEmpty(d.From, d.To)
	}
	return d.From + " → " + d.To
}

// GenericDetails backs the Transfer fallback.
type GenericDetails struct {
	Party string `json:"party,omitempty"`
}

func (d GenericDetails) Counterpart() string {
	return d.Party
}

func (BankDetails) details()       {}
func (ChainDetails) details()      {}
func (RecipientDetails) details()  {}
func (BillDetails) details()       {}
func (P2PDetails) details()        {}
func (ConversionDetails) details() {}
func (GenericDetails) details()    {}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func shortAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
