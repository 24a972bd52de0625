package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New("streak")
	b := New("streak")

	a.Scheduled.WithLabelValues("quiz").Add(3)
	a.Delivered.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.Scheduled.WithLabelValues("quiz")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Scheduled.WithLabelValues("quiz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Delivered))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("streak")
	m.Celebrations.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "streak_celebrations_shown_total 1")
}
