package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ============================================================
// Raw records (as returned by the wallet API)
// ============================================================

// RawTransaction is a transaction or order record exactly as one of the wallet
// API endpoints returns it. Every field is optional and the key names differ
// between endpoints, so decoding goes through UnmarshalJSON which accepts the
// known aliases for each field.
type RawTransaction struct {
	ID             string         `json:"id,omitempty"`
	Reference      string         `json:"reference,omitempty"`
	Amount         string         `json:"amount,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	Type           string         `json:"type,omitempty"`
	NormalizedType string         `json:"normalizedType,omitempty"`
	Description    string         `json:"description,omitempty"`
	Status         string         `json:"status,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	CompletedAt    string         `json:"completedAt,omitempty"`
	Fee            string         `json:"fee,omitempty"`
	TotalAmount    string         `json:"totalAmount,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// SourceHint is the category implied by the endpoint the record was
	// fetched from. Set by the client, never by the wallet API.
	SourceHint Category `json:"-"`
}

var rawAliases = struct {
	id, reference, amount, currency, typ, normalizedType, description,
	status, createdAt, completedAt, fee, totalAmount, metadata []string
}{
	id:             []string{"id", "_id", "transactionId", "transaction_id", "orderId", "order_id"},
	reference:      []string{"reference", "ref", "txHash", "tx_hash", "hash", "transactionHash", "externalId", "external_id"},
	amount:         []string{"amount", "value", "amountPaid"},
	currency:       []string{"currency", "currencyCode", "currency_code", "asset", "coin"},
	typ:            []string{"type", "transactionType", "transaction_type", "txType", "orderType", "order_type", "kind"},
	normalizedType: []string{"normalizedType", "normalized_type"},
	description:    []string{"description", "narration", "note", "remark"},
	status:         []string{"status", "state", "orderStatus"},
	createdAt:      []string{"createdAt", "created_at", "date", "timestamp"},
	completedAt:    []string{"completedAt", "completed_at", "settledAt", "settled_at"},
	fee:            []string{"fee", "fees", "charge", "networkFee"},
	totalAmount:    []string{"totalAmount", "total_amount", "total"},
	metadata:       []string{"metadata", "meta", "details"},
}

// UnmarshalJSON decodes a record tolerantly: numbers and strings are both
// accepted for scalar fields and the first alias present wins.
func (r *RawTransaction) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("raw transaction: %w", err)
	}

	r.ID = pick(fields, rawAliases.id)
	r.Reference = pick(fields, rawAliases.reference)
	r.Amount = pick(fields, rawAliases.amount)
	r.Currency = pick(fields, rawAliases.currency)
	r.Type = pick(fields, rawAliases.typ)
	r.NormalizedType = pick(fields, rawAliases.normalizedType)
	r.Description = pick(fields, rawAliases.description)
	r.Status = pick(fields, rawAliases.status)
	r.CreatedAt = pick(fields, rawAliases.createdAt)
	r.CompletedAt = pick(fields, rawAliases.completedAt)
	r.Fee = pick(fields, rawAliases.fee)
	r.TotalAmount = pick(fields, rawAliases.totalAmount)

	r.Metadata = mergeMetadata(fields)
	return nil
}

// mergeMetadata flattens the record's extra attributes into one map: top-level
// fields first, then the nested metadata object, which wins on conflicts.
func mergeMetadata(fields map[string]any) map[string]any {
	var nested map[string]any
	nestedKey := ""
	for _, k := range rawAliases.metadata {
		if m, ok := fields[k].(map[string]any); ok {
			nested, nestedKey = m, k
			break
		}
	}
	out := make(map[string]any, len(fields)+len(nested))
	for k, v := range fields {
		if k != nestedKey {
			out[k] = v
		}
	}
	for k, v := range nested {
		out[k] = v
	}
	return out
}

// Meta looks up a metadata value by one or more keys. Keys may be dotted
// paths into nested objects ("recipient.name"). The first non-empty value wins.
func (r RawTransaction) Meta(keys ...string) string {
	if r.Metadata == nil {
		return ""
	}
	for _, k := range keys {
		var cur any = r.Metadata
		for _, part := range strings.Split(k, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = m[part]
		}
		if s := scalarString(cur); s != "" {
			return s
		}
	}
	return ""
}

// RawSummary is the pre-computed totals block some endpoints return.
// Incoming/Outgoing are kept as received; empty means the source sent nothing.
type RawSummary struct {
	Incoming string `json:"incoming,omitempty"`
	Outgoing string `json:"outgoing,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// UnmarshalJSON accepts the key variants used by the summary endpoints.
func (s *RawSummary) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("raw summary: %w", err)
	}
	s.Incoming = pick(fields, []string{"incoming", "totalIncoming", "total_incoming", "totalDeposits", "inflow"})
	s.Outgoing = pick(fields, []string{"outgoing", "totalOutgoing", "total_outgoing", "totalWithdrawals", "outflow"})
	s.Currency = pick(fields, []string{"currency", "currencyCode"})
	return nil
}

// RawRange is a chart sub-range as the data source supplies it for custom
// periods. Dates are kept as received.
type RawRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Label string `json:"label,omitempty"`
}

// UnmarshalJSON accepts the key variants used for sub-ranges.
func (r *RawRange) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("raw range: %w", err)
	}
	r.Start = pick(fields, []string{"start", "from", "startDate", "start_date"})
	r.End = pick(fields, []string{"end", "to", "endDate", "end_date"})
	r.Label = pick(fields, []string{"label", "name"})
	return nil
}

// RawResponse is one decoded data source response.
type RawResponse struct {
	Records []RawTransaction
	Summary *RawSummary
	Ranges  []RawRange
	// Dropped counts list entries that were not JSON objects.
	Dropped int
}

var (
	listKeys   = []string{"data", "transactions", "items", "records", "orders", "results"}
	recordKeys = []string{"transaction", "order", "record"}
	totalsKeys = []string{"summary", "totals"}
	rangeKeys  = []string{"ranges", "subRanges", "buckets"}
)

// DecodeResponse reads the envelope shapes the wallet API uses: a bare array,
// an object wrapping the list under data/transactions/items (possibly one
// level deeper under data), an object wrapping a single record, or a bare
// record or totals object. A totals block is picked up wherever it appears.
func DecodeResponse(data []byte) (*RawResponse, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &RawResponse{}, nil
	}
	if data[0] == '[' {
		return decodeList(data)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decodeEnvelope(env, data, 0)
}

func decodeEnvelope(env map[string]json.RawMessage, data []byte, depth int) (*RawResponse, error) {
	out := &RawResponse{}
	for _, k := range totalsKeys {
		if raw, ok := env[k]; ok && isObject(raw) {
			var s RawSummary
			if err := json.Unmarshal(raw, &s); err == nil {
				out.Summary = &s
				break
			}
		}
	}
	for _, k := range rangeKeys {
		if raw, ok := env[k]; ok && isArray(raw) {
			var ranges []RawRange
			if err := json.Unmarshal(raw, &ranges); err == nil {
				out.Ranges = ranges
				break
			}
		}
	}

	for _, k := range listKeys {
		raw, ok := env[k]
		if !ok {
			continue
		}
		switch {
		case isArray(raw):
			list, err := decodeList(raw)
			if err != nil {
				return nil, err
			}
			list.Summary = out.Summary
			list.Ranges = out.Ranges
			return list, nil
		case isObject(raw) && depth == 0:
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(raw, &inner); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			nested, err := decodeEnvelope(inner, raw, depth+1)
			if err != nil {
				return nil, err
			}
			if nested.Summary == nil {
				nested.Summary = out.Summary
			}
			if nested.Ranges == nil {
				nested.Ranges = out.Ranges
			}
			return nested, nil
		}
	}

	for _, k := range recordKeys {
		if raw, ok := env[k]; ok && isObject(raw) {
			var r RawTransaction
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			out.Records = []RawTransaction{r}
			return out, nil
		}
	}

	// A bare object: either a record or a totals block.
	if out.Summary == nil {
		var s RawSummary
		if err := json.Unmarshal(data, &s); err == nil && (s.Incoming != "" || s.Outgoing != "" || out.Ranges != nil) {
			out.Summary = &s
			return out, nil
		}
	}
	var r RawTransaction
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.ID != "" || r.Amount != "" {
		out.Records = []RawTransaction{r}
	}
	return out, nil
}

func decodeList(data []byte) (*RawResponse, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := &RawResponse{Records: make([]RawTransaction, 0, len(items))}
	for _, item := range items {
		if !isObject(item) {
			out.Dropped++
			continue
		}
		var r RawTransaction
		if err := json.Unmarshal(item, &r); err != nil {
			out.Dropped++
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func pick(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarString(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
