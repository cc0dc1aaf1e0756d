package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const customerIDKey contextKey = "customerID"

// CustomerMiddleware validates the {customerId} path segment and injects it
// into the request context and the active span.
func CustomerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			customerID := strings.TrimSpace(chi.URLParam(r, "customerId"))
			if customerID == "" || strings.ContainsAny(customerID, " /?#") {
				logger.Warn("invalid customer id",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusBadRequest, "invalid customer id")
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("customer.id", customerID))
			ctx := context.WithValue(r.Context(), customerIDKey, customerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCustomerID extracts the customer id injected by CustomerMiddleware.
func GetCustomerID(ctx context.Context) string {
	if v, ok := ctx.Value(customerIDKey).(string); ok {
		return v
	}
	return ""
}
