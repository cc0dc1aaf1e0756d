package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseFilter reads the list predicate from the query string. "All" and
// missing values leave a predicate unset.
func parseFilter(r *http.Request) domain.Filter {
	q := r.URL.Query()
	return domain.Filter{
		Currency: strings.TrimSpace(q.Get("currency")),
		Status:   strings.TrimSpace(q.Get("status")),
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
	}
}

func parseWindow(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("window"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &domain.ErrValidation{Field: "window", Message: "must be a non-negative integer"}
	}
	return n, nil
}

// parsePeriod defaults to the week view.
func parsePeriod(r *http.Request) (domain.Period, error) {
	v := r.URL.Query().Get("period")
	if strings.TrimSpace(v) == "" {
		return domain.PeriodWeek, nil
	}
	p, ok := domain.ParsePeriod(v)
	if !ok {
		return "", &domain.ErrValidation{Field: "period", Message: "must be one of day, week, month, custom"}
	}
	return p, nil
}

func parseRange(r *http.Request) *service.RangeInput {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		return nil
	}
	return &service.RangeInput{Start: start, End: end}
}

// statusClientClosedRequest is the non-standard status proxies log for a
// client that disconnected before the response.
const statusClientClosedRequest = 499

func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var ambiguous *domain.ErrAmbiguousDate
	var external *domain.ErrExternalService

	switch {
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this response.
		logger.Debug("request canceled by client", zap.Error(err))
		writeError(w, statusClientClosedRequest, "request canceled")
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ambiguous):
		logger.Debug("ambiguous date", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error",
			zap.String("service", external.Service),
			zap.Int("status_code", external.StatusCode),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
