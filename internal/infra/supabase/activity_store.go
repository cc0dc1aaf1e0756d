package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Mirrored tables, one per record endpoint. wallet_transactions is a view
// over all of them.
var tables = map[domain.Endpoint]string{
	domain.EndpointFiatDeposits:      "fiat_deposits",
	domain.EndpointFiatWithdrawals:   "fiat_withdrawals",
	domain.EndpointCryptoDeposits:    "crypto_deposits",
	domain.EndpointCryptoWithdrawals: "crypto_withdrawals",
	domain.EndpointBillPayments:      "bill_payments",
	domain.EndpointP2POrders:         "p2p_orders",
	domain.EndpointConversions:       "conversions",
	domain.EndpointDetail:            "wallet_transactions",
}

// summaryFunction computes totals (and custom sub-ranges) in the database.
const summaryFunction = "rpc/wallet_activity_summary"

// --- Activity API (implements port.DataSource) ---

// Fetch reads one endpoint's rows for the customer in params.
func (c *Client) Fetch(ctx context.Context, endpoint domain.Endpoint, params domain.Params) (*domain.RawResponse, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("supabase.endpoint", string(endpoint)),
		attribute.String("customer.id", params["customer"]),
	)

	path, err := c.pathFor(endpoint, params)
	if err != nil {
		return nil, err
	}

	var out *domain.RawResponse
	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, path)
			if err != nil {
				return err
			}
			resp, err := domain.DecodeResponse(body)
			if err != nil {
				return &domain.ErrExternalService{Service: serviceName, StatusCode: http.StatusUnprocessableEntity, Err: err}
			}
			out = resp
			return nil
		})
	})
	if err != nil {
		err = mapError(ctx, endpoint, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if endpoint == domain.EndpointDetail && len(out.Records) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: params["id"]}
	}
	if hint := endpoint.Hint(); hint != "" {
		for i := range out.Records {
			out.Records[i].SourceHint = hint
		}
	}
	span.SetAttributes(attribute.Int("supabase.rows", len(out.Records)))
	return out, nil
}

// pathFor builds the PostgREST path. Parameter names follow the wallet API:
// customer, currency, id, period, from and to.
func (c *Client) pathFor(endpoint domain.Endpoint, params domain.Params) (string, error) {
	q := url.Values{}

	if endpoint == domain.EndpointSummary {
		for _, k := range []string{"customer", "currency", "period", "from", "to"} {
			if v := params[k]; v != "" {
				q.Set("p_"+k, v)
			}
		}
		return summaryFunction + "?" + q.Encode(), nil
	}

	table, ok := tables[endpoint]
	if !ok {
		return "", &domain.ErrValidation{Field: "endpoint", Message: fmt.Sprintf("no table for %q", endpoint)}
	}
	if v := params["customer"]; v != "" {
		q.Set("customer_id", "eq."+v)
	}
	if v := params["currency"]; v != "" {
		q.Set("currency", "eq."+strings.ToUpper(v))
	}
	if endpoint == domain.EndpointDetail {
		id := params["id"]
		q.Set("or", fmt.Sprintf("(id.eq.%s,reference.eq.%s)", id, id))
		q.Set("limit", "1")
		return table + "?" + q.Encode(), nil
	}
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(c.rowLimit))
	return table + "?" + q.Encode(), nil
}

func mapError(ctx context.Context, endpoint domain.Endpoint, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "supabase " + string(endpoint)}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		return ext
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}
