// Package client implements the outbound HTTP adapters.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("wallet-activity-bfa/client")

const serviceName = "wallet-api"

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// WalletClient fetches activity records from the wallet API.
type WalletClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
}

// NewWalletClient creates a new WalletClient.
func NewWalletClient(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *WalletClient {
	return &WalletClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
	}
}

// InFlight returns how many wallet API calls currently hold a bulkhead slot.
func (c *WalletClient) InFlight() int {
	return c.bulkhead.InUse()
}

// Fetch performs GET {baseURL}/v1/{endpoint}?{params} with retry, circuit
// breaker, bulkhead and tracing. Records are stamped with the endpoint hint.
func (c *WalletClient) Fetch(ctx context.Context, endpoint domain.Endpoint, params domain.Params) (*domain.RawResponse, error) {
	ctx, span := tracer.Start(ctx, "WalletClient.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("wallet.endpoint", string(endpoint)),
		attribute.String("wallet.query", params.Encode()),
	)

	result, err := c.cb.Execute(func() (any, error) {
		if err := c.bulkhead.Acquire(ctx); err != nil {
			return nil, err
		}
		defer c.bulkhead.Release()

		var resp *domain.RawResponse
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var err error
			resp, err = c.do(ctx, endpoint, params)
			return err
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return resp, nil
	})
	if err != nil {
		err = c.mapError(ctx, endpoint, params, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := result.(*domain.RawResponse)
	if hint := endpoint.Hint(); hint != "" {
		for i := range resp.Records {
			resp.Records[i].SourceHint = hint
		}
	}
	span.SetAttributes(attribute.Int("wallet.records", len(resp.Records)))
	return resp, nil
}

func (c *WalletClient) do(ctx context.Context, endpoint domain.Endpoint, params domain.Params) (*domain.RawResponse, error) {
	url := fmt.Sprintf("%s/v1/%s", c.baseURL, endpoint)
	if q := params.Encode(); q != "" {
		url += "?" + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: serviceName, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ErrExternalService{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, snippet(body)),
		}
	}

	out, err := domain.DecodeResponse(body)
	if err != nil {
		// A 2xx with an unreadable body will not improve on retry.
		return nil, &domain.ErrExternalService{Service: serviceName, StatusCode: http.StatusUnprocessableEntity, Err: err}
	}
	return out, nil
}

func (c *WalletClient) mapError(ctx context.Context, endpoint domain.Endpoint, params domain.Params, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "fetch " + string(endpoint)}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		if ext.StatusCode == http.StatusNotFound {
			id := params["id"]
			if id == "" {
				id = string(endpoint)
			}
			return &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		return ext
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
