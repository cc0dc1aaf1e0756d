package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boddenberg/wallet-activity-bfa/internal/commands"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walletDump = `{
  "data": [
    {"id": "d1", "type": "deposit", "amount": "1000", "currency": "NGN", "status": "completed", "createdAt": "2025-06-11T09:15:00Z"},
    {"id": "w1", "type": "withdrawal", "amount": "300", "currency": "NGN", "status": "successful", "createdAt": "2025-06-10T10:00:00Z"},
    {"id": "w2", "type": "withdrawal", "amount": "50", "currency": "NGN", "status": "failed", "createdAt": "2025-06-09T10:00:00Z"},
    {"id": "c1", "type": "deposit", "amount": "0.01", "currency": "BTC", "status": "confirmed", "createdAt": "2025-06-11T13:32:00Z"},
    {"type": "bill", "currency": "NGN", "status": "pending"},
    "garbage"
  ],
  "summary": {"totalIncoming": "5000", "totalOutgoing": "700"},
  "ranges": [
    {"start": "2025-06-01", "end": "2025-06-07", "label": "Week A"},
    {"start": "2025-06-08", "end": "2025-06-14", "label": "Week B"}
  ]
}`

func writeDump(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-level", "error"))

	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body), out.String())
	return body, nil
}

func TestNormalize(t *testing.T) {
	body, err := run(t, "", "normalize", "--file", writeDump(t, walletDump))
	require.NoError(t, err)

	assert.EqualValues(t, 5, body["total"])
	assert.EqualValues(t, 1, body["dropped"])
	issues := body["issues"].(map[string]any)
	assert.Len(t, issues, 1)

	first := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "d1", first["id"])
	assert.Equal(t, "fund_deposit", first["category"])
	assert.Equal(t, "₦1,000.00", first["formattedAmount"])
}

func TestNormalize_StdinAndFilter(t *testing.T) {
	body, err := run(t, walletDump, "normalize", "--currency", "btc")
	require.NoError(t, err)

	assert.EqualValues(t, 1, body["total"])
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "crypto_deposit", item["category"])
	assert.Equal(t, "BTC 0.01", item["formattedAmount"])
}

func TestNormalize_EndpointHint(t *testing.T) {
	dump := `[{"id": "x", "amount": "20", "currency": "USDT", "status": "completed"}]`

	body, err := run(t, dump, "normalize", "--endpoint", "withdrawals/crypto")
	require.NoError(t, err)
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "crypto_withdrawal", item["category"])

	_, err = run(t, dump, "normalize", "--endpoint", "transactions/summary")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	path := writeDump(t, walletDump)

	local, err := run(t, "", "summary", "--file", path, "--currency", "NGN", "--status", "successful")
	require.NoError(t, err)
	assert.Equal(t, "1000", local["incoming"])
	assert.Equal(t, "300", local["outgoing"])
	assert.Equal(t, "local", local["incomingSource"])
	assert.Equal(t, "₦1,000.00", local["formattedIncoming"])

	source, err := run(t, "", "summary", "--file", path, "--currency", "NGN")
	require.NoError(t, err)
	assert.Equal(t, "5000", source["incoming"])
	assert.Equal(t, "source", source["outgoingSource"])

	forced, err := run(t, "", "summary", "--file", path, "--currency", "NGN", "--local")
	require.NoError(t, err)
	assert.Equal(t, "local", forced["incomingSource"])

	all, err := run(t, "", "summary", "--file", path, "--local")
	require.NoError(t, err)
	assert.Len(t, all["byCurrency"], 2)
	assert.Equal(t, "0", all["incoming"])
	assert.Equal(t, "mixed", all["incomingSource"])
}

func TestChart_Week(t *testing.T) {
	body, err := run(t, "", "chart", "--file", writeDump(t, walletDump),
		"--period", "week", "--now", "2025-06-11T16:00:00+01:00", "--tz", "Africa/Lagos", "--currency", "NGN")
	require.NoError(t, err)

	buckets := body["buckets"].([]any)
	require.Len(t, buckets, 7)
	wed := buckets[2].(map[string]any)
	assert.Equal(t, "Wed", wed["label"])
	assert.Equal(t, "1000", wed["total"])
	assert.Equal(t, true, wed["peak"])
	assert.Equal(t, "₦1,000.00", wed["formatted"])
}

func TestChart_CustomUsesDumpRanges(t *testing.T) {
	body, err := run(t, "", "chart", "--file", writeDump(t, walletDump),
		"--period", "custom", "--start", "2025-06-14", "--end", "2025-06-01", "--currency", "NGN")
	require.NoError(t, err)

	buckets := body["buckets"].([]any)
	require.Len(t, buckets, 2)
	assert.Equal(t, "Week A", buckets[0].(map[string]any)["label"])
	// w2 is failed but the chart plots every selected record.
	assert.Equal(t, "1350", buckets[1].(map[string]any)["total"])
}

func TestChart_MixedCurrencies(t *testing.T) {
	body, err := run(t, "", "chart", "--file", writeDump(t, walletDump),
		"--period", "week", "--now", "2025-06-11T16:00:00+01:00", "--tz", "Africa/Lagos")
	require.NoError(t, err)

	wed := body["buckets"].([]any)[2].(map[string]any)
	assert.Equal(t, "0", wed["total"])

	series := body["byCurrency"].([]any)
	require.Len(t, series, 2)
	btc := series[0].(map[string]any)
	assert.Equal(t, "BTC", btc["currency"])
	assert.Equal(t, "0.01", btc["buckets"].([]any)[2].(map[string]any)["total"])
}

func TestChart_RejectsBadInput(t *testing.T) {
	path := writeDump(t, walletDump)

	_, err := run(t, "", "chart", "--file", path, "--period", "year")
	assert.ErrorContains(t, err, "period")

	_, err = run(t, "", "chart", "--file", path, "--period", "custom", "--start", "03/04/2025", "--end", "2025-05-01")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = run(t, "", "chart", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
