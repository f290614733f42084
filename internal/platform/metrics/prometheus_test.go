package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

func TestCollector_RecordsMovements(t *testing.T) {
	c := NewCollector()

	c.ObserveMovement(domain.KindTransfer, "completed", 5*time.Millisecond)
	c.ObserveMovement(domain.KindTransfer, "completed", 7*time.Millisecond)
	c.ObserveMovement(domain.KindDeposit, "failed", time.Millisecond)
	c.IncConflictRetry(domain.KindTransfer)
	c.ObserveLockWait(time.Millisecond)
	c.ObserveDelivery("webhook", "dropped")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.movements.WithLabelValues("TRANSFER", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.movements.WithLabelValues("DEPOSIT", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conflictRetries.WithLabelValues("TRANSFER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventDeliveries.WithLabelValues("webhook", "dropped")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.lockWait))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest("/api/v1/transfers", http.MethodPost, http.StatusCreated, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `ledger_http_requests_total{method="POST",route="/api/v1/transfers",status="201"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
