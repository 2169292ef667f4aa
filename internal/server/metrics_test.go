package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	ebomlca "github.com/superdango/ebom-lca"
)

func TestInstrument(t *testing.T) {
	metrics := NewMetrics()
	h := metrics.instrument("GET /teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requests.WithLabelValues("GET /teapot", "418")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.duration))
}

func TestCompletionOutcomes(t *testing.T) {
	metrics := NewMetrics()
	metrics.completion(ebomlca.ScenarioSizeChange, true)
	metrics.completion(ebomlca.ScenarioSizeChange, false)
	metrics.completion(ebomlca.ScenarioSizeChange, false)
	metrics.completion("colour-change", false)
	metrics.completion("", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.completions.WithLabelValues("size-change", "accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.completions.WithLabelValues("size-change", "refused")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.completions.WithLabelValues("unknown", "refused")))
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.completions))
}
