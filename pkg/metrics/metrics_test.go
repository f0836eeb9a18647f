package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordPrediction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("solar_test", reg)

	c.RecordPrediction("success", 1234.5)
	c.RecordPrediction("success", 0)
	c.RecordPrediction("schema_mismatch", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.PredictionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PredictionsTotal.WithLabelValues("schema_mismatch")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.PredictedPower))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// Each collector owns its registry, so building two must not panic on duplicates
	require.NotPanics(t, func() {
		NewCollector("solar_test", prometheus.NewRegistry())
		NewCollector("solar_test", prometheus.NewRegistry())
	})
}

func TestCollector_CountersAndGauges(t *testing.T) {
	c := NewCollector("solar_test", prometheus.NewRegistry())

	c.RecordAPIRequest("/api/predict", "POST", "200")
	c.RecordAPIError("validation_error", "/api/predict")
	c.RecordValidationFailure("humidity")
	c.RecordDBError("exec_error")
	c.UpdateDBConnectionPool(3, 2, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/predict", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("validation_error", "/api/predict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.InputValidationFailure.WithLabelValues("humidity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBErrorsTotal.WithLabelValues("exec_error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("solar_test", prometheus.NewRegistry())

	timer := c.NewTimer(c.InferenceDuration)
	time.Sleep(time.Millisecond)
	elapsed := timer.ObserveDuration()

	assert.GreaterOrEqual(t, elapsed, time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.InferenceDuration))

	assert.NotPanics(t, func() { c.NewTimer(nil).ObserveDuration() })
}
