package handler

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleServiceError_ClientCanceled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := httptest.NewRecorder()

	handleServiceError(rec, fmt.Errorf("loading activity: %w", context.Canceled), zap.New(core))

	assert.Equal(t, statusClientClosedRequest, rec.Code)
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("request canceled by client").Len())
}

func TestHandleServiceError_UnknownIsInternal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := httptest.NewRecorder()

	handleServiceError(rec, fmt.Errorf("boom"), zap.New(core))

	assert.Equal(t, 500, rec.Code)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestHandleServiceError_Timeout(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, &domain.ErrTimeout{Operation: "fetch"}, zap.NewNop())
	assert.Equal(t, 504, rec.Code)
}
