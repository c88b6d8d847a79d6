package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainExplorer/internal/model"
)

func TestIngestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngest(reg)

	m.SetHeight(101)
	m.ObserveBlock(3, 5, 1, 20*time.Millisecond)
	m.ObserveReorg(model.ReorgEvent{Depth: 5, Severity: model.ReorgSeverity(5)})
	m.ObserveFailure()

	assert.Equal(t, 101.0, testutil.ToFloat64(m.height))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.transactions))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.logs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reorgs.WithLabelValues("major")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures))
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var ingest *Ingest
	ingest.SetHeight(1)
	ingest.ObserveBlock(1, 1, 0, time.Second)
	ingest.ObserveReorg(model.ReorgEvent{})
	ingest.ObserveFailure()

	var decode *Decode
	decode.ObserveResult("decoded")
	decode.ObserveCycle(1, 0, time.Second)
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	decode := NewDecode(reg)
	decode.ObserveResult("decoded")

	srv := NewServer(":0", reg, func() any { return map[string]uint64{"height": 7} }, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, uint64(7), status["height"])

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `explorer_decode_transactions_total{result="decoded"} 1`))
}

func TestServerWithoutStatus(t *testing.T) {
	srv := NewServer(":0", prometheus.NewRegistry(), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
