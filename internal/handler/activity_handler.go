package handler

import (
	"net/http"

	"github.com/boddenberg/wallet-activity-bfa/internal/query"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Activity Handlers
// ============================================================

type queryStatesResponse struct {
	CustomerID string           `json:"customerId"`
	Queries    []query.Snapshot `json:"queries"`
}

func listActivityHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerId}/activity")
		defer span.End()

		window, err := parseWindow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		list, err := svc.List(ctx, GetCustomerID(ctx), parseFilter(r), window)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("activity.total", list.Total))
		writeJSON(w, http.StatusOK, list)
	}
}

func chartHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerId}/activity/chart")
		defer span.End()

		period, err := parsePeriod(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		chart, err := svc.Chart(ctx, GetCustomerID(ctx), parseFilter(r), period, parseRange(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, chart)
	}
}

func summaryHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerId}/activity/summary")
		defer span.End()

		summary, err := svc.Summary(ctx, GetCustomerID(ctx), parseFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func detailHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerId}/activity/{transactionId}")
		defer span.End()

		transactionID := chi.URLParam(r, "transactionId")
		span.SetAttributes(attribute.String("transaction.id", transactionID))

		detail, err := svc.Detail(ctx, GetCustomerID(ctx), transactionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func releaseDetailHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/customers/{customerId}/activity/{transactionId}")
		defer span.End()

		if err := svc.ReleaseDetail(GetCustomerID(ctx), chi.URLParam(r, "transactionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func refreshHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers/{customerId}/activity/refresh")
		defer span.End()

		customerID := GetCustomerID(ctx)
		snaps, err := svc.Refresh(ctx, customerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, queryStatesResponse{CustomerID: customerID, Queries: nonNil(snaps)})
	}
}

func retryHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers/{customerId}/activity/retry")
		defer span.End()

		customerID := GetCustomerID(ctx)
		snaps, err := svc.Retry(ctx, customerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, queryStatesResponse{CustomerID: customerID, Queries: nonNil(snaps)})
	}
}

func queryStatesHandler(svc *service.ActivityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := GetCustomerID(r.Context())
		snaps, err := svc.QueryStates(customerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, queryStatesResponse{CustomerID: customerID, Queries: nonNil(snaps)})
	}
}

func nonNil(snaps []query.Snapshot) []query.Snapshot {
	if snaps == nil {
		return []query.Snapshot{}
	}
	return snaps
}
