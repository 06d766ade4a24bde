package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcome(t *testing.T) {
	m := New()

	m.RecordOutcome("login", common.KindNone)
	m.RecordOutcome("login", common.KindAuthentication)
	m.RecordOutcome("login", common.KindAuthentication)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("login", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("login", "authentication")))
}

func TestRecordSweepAndDatabase(t *testing.T) {
	m := New()

	m.RecordSweep("refresh_tokens", 3)
	m.RecordSweep("refresh_tokens", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tokensSwept.WithLabelValues("refresh_tokens")))

	m.SetDatabaseUp(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.databaseAlive))
	m.SetDatabaseUp(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.databaseAlive))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/auth/login", 401, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `credkeeper_http_requests_total{method="POST",route="/auth/login",status="401"} 1`)
	assert.Contains(t, string(body), "credkeeper_http_request_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
