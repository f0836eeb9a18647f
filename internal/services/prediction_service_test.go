package services

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-power-predictor/internal/models"
	"solar-power-predictor/internal/regressor"
	"solar-power-predictor/internal/repository"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

type fakeModel struct {
	names   []string
	outputs []float64
	err     error
	rows    [][]float64
}

func (m *fakeModel) FeatureNames() []string { return m.names }
func (m *fakeModel) Version() string        { return "fake-1" }

func (m *fakeModel) Predict(rows [][]float64) ([]float64, error) {
	m.rows = rows
	if m.err != nil {
		return nil, m.err
	}
	return m.outputs, nil
}

type fakeHistory struct {
	recorded  []*models.Prediction
	recordErr error
	nextID    int64
}

func (h *fakeHistory) Record(_ context.Context, p *models.Prediction) error {
	if h.recordErr != nil {
		return h.recordErr
	}
	h.nextID++
	p.ID = h.nextID
	h.recorded = append(h.recorded, p)
	return nil
}

func (h *fakeHistory) Get(_ context.Context, id int64) (*models.Prediction, error) {
	for _, p := range h.recorded {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "prediction", ID: "x"}
}

func (h *fakeHistory) List(_ context.Context, filter repository.PredictionFilter) ([]*models.Prediction, int, error) {
	return h.recorded, len(h.recorded), nil
}

func (h *fakeHistory) HealthCheck(context.Context) error { return nil }

func trainedNames() []string {
	return append([]string(nil), models.FeatureNames[:]...)
}

func scenarioReadings() models.ReadingSet {
	return models.ReadingSet{
		DistanceToSolarNoon:    0.2,
		Temperature:            60,
		WindSpeed:              10,
		SkyCover:               2,
		Humidity:               50,
		AverageWindSpeedPeriod: 12,
		AveragePressurePeriod:  30,
		WindDirection:          16,
	}
}

func newTestService(t *testing.T, model Model, history repository.PredictionRepository) (*PredictionService, *metrics.Collector, *bytes.Buffer) {
	t.Helper()

	var logs bytes.Buffer
	logger := logging.NewStructuredLogger("test", "test", logging.DebugLevel)
	logger.SetOutput(&logs)
	collector := metrics.NewCollector("test", prometheus.NewRegistry())

	svc, err := NewPredictionService(model, history, "", logger, collector)
	require.NoError(t, err)
	return svc, collector, &logs
}

func TestNewPredictionService_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{name: "missing trig features", names: trainedNames()[:7]},
		{name: "raw wind direction instead of components", names: append(trainedNames()[:7], "wind-direction")},
		{name: "swapped order", names: func() []string {
			n := trainedNames()
			n[7], n[8] = n[8], n[7]
			return n
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewStructuredLogger("test", "test", logging.ErrorLevel)
			collector := metrics.NewCollector("test", prometheus.NewRegistry())

			_, err := NewPredictionService(&fakeModel{names: tt.names}, nil, "J", logger, collector)

			var schemaErr *regressor.SchemaMismatchError
			require.True(t, errors.As(err, &schemaErr), "got %v", err)
			assert.Equal(t, tt.names, schemaErr.Expected)
			assert.Equal(t, trainedNames(), schemaErr.Got)
		})
	}
}

func TestPredictionService_Predict(t *testing.T) {
	model := &fakeModel{names: trainedNames(), outputs: []float64{123.456}}
	svc, collector, _ := newTestService(t, model, nil)

	estimate, err := svc.Predict(context.Background(), scenarioReadings())
	require.NoError(t, err)

	assert.Equal(t, 123.456, estimate.PowerOutput)
	assert.Equal(t, "123.46 J", estimate.Display)
	assert.Equal(t, "J", estimate.Unit)
	assert.Equal(t, "fake-1", estimate.ModelVersion)

	require.Len(t, model.rows, 1)
	row := model.rows[0]
	require.Len(t, row, models.FeatureCount)
	assert.Equal(t, []float64{0.2, 60, 10, 2, 50, 12, 30}, row[:7])
	assert.InDelta(t, 0.2756, row[7], 1e-4)
	assert.InDelta(t, 0.9613, row[8], 1e-4)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.PredictionsTotal.WithLabelValues("success")))
}

func TestPredictionService_Predict_NonNegative(t *testing.T) {
	tests := []struct {
		name    string
		raw     float64
		want    float64
		display string
	}{
		{name: "negative", raw: -37.218, want: 37.218, display: "37.22 J"},
		{name: "zero", raw: 0, want: 0, display: "0.00 J"},
		{name: "negative zero", raw: math.Copysign(0, -1), want: 0, display: "0.00 J"},
		{name: "rounds to nearest cent", raw: -0.005, want: 0.005, display: "0.01 J"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{names: trainedNames(), outputs: []float64{tt.raw}}
			svc, _, _ := newTestService(t, model, nil)

			estimate, err := svc.Predict(context.Background(), scenarioReadings())
			require.NoError(t, err)

			assert.Equal(t, tt.want, estimate.PowerOutput)
			assert.False(t, math.Signbit(estimate.PowerOutput))
			assert.Equal(t, tt.raw, estimate.RawPrediction)
			assert.Equal(t, tt.display, estimate.Display)
		})
	}
}

func TestPredictionService_Predict_ModelErrors(t *testing.T) {
	tests := []struct {
		name    string
		model   *fakeModel
		outcome string
	}{
		{
			name:    "schema mismatch at inference",
			model:   &fakeModel{names: trainedNames(), err: &regressor.SchemaMismatchError{Width: 9}},
			outcome: "schema_mismatch",
		},
		{
			name:    "generic failure",
			model:   &fakeModel{names: trainedNames(), err: errors.New("boom")},
			outcome: "error",
		},
		{
			name:    "empty output",
			model:   &fakeModel{names: trainedNames(), outputs: []float64{}},
			outcome: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, collector, _ := newTestService(t, tt.model, nil)

			estimate, err := svc.Predict(context.Background(), scenarioReadings())
			require.Error(t, err)
			assert.Nil(t, estimate)
			assert.Contains(t, err.Error(), "inference failed")
			assert.Equal(t, 1.0, testutil.ToFloat64(collector.PredictionsTotal.WithLabelValues(tt.outcome)))
		})
	}
}

func TestPredictionService_Predict_SchemaErrorIsUnwrappable(t *testing.T) {
	model := &fakeModel{names: trainedNames(), err: &regressor.SchemaMismatchError{Width: 7}}
	svc, _, _ := newTestService(t, model, nil)

	_, err := svc.Predict(context.Background(), scenarioReadings())

	var schemaErr *regressor.SchemaMismatchError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, 7, schemaErr.Width)
}

func TestPredictionService_RecordsHistory(t *testing.T) {
	model := &fakeModel{names: trainedNames(), outputs: []float64{-5.5}}
	history := &fakeHistory{}
	svc, _, _ := newTestService(t, model, history)

	ctx := logging.WithRequestID(context.Background(), "req-42")
	_, err := svc.Predict(ctx, scenarioReadings())
	require.NoError(t, err)

	require.Len(t, history.recorded, 1)
	recorded := history.recorded[0]
	assert.Equal(t, "req-42", recorded.RequestID)
	assert.Equal(t, 5.5, recorded.PowerOutput)
	assert.Equal(t, -5.5, recorded.RawPrediction)
	assert.Equal(t, 16, recorded.WindDirection)
	assert.Equal(t, "fake-1", recorded.ModelVersion)

	got, err := svc.GetPrediction(ctx, recorded.ID)
	require.NoError(t, err)
	assert.Same(t, recorded, got)

	list, total, err := svc.History(ctx, repository.PredictionFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
	assert.True(t, svc.HistoryEnabled())
}

func TestPredictionService_HistoryFailureDoesNotFailPrediction(t *testing.T) {
	model := &fakeModel{names: trainedNames(), outputs: []float64{1}}
	history := &fakeHistory{recordErr: errors.New("connection refused")}
	svc, _, logs := newTestService(t, model, history)

	estimate, err := svc.Predict(context.Background(), scenarioReadings())
	require.NoError(t, err)
	assert.Equal(t, "1.00 J", estimate.Display)
	assert.Contains(t, logs.String(), "[PREDICT_RECORD_FAILED]")
}

func TestPredictionService_HistoryDisabled(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeModel{names: trainedNames()}, nil)

	_, _, err := svc.History(context.Background(), repository.PredictionFilter{})
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	_, err = svc.GetPrediction(context.Background(), 1)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	assert.False(t, svc.HistoryEnabled())
	assert.NoError(t, svc.HealthCheck(context.Background()))
}

func TestPredictionService_ModelInfo(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeModel{names: trainedNames()}, nil)

	info := svc.ModelInfo()
	assert.Equal(t, "fake-1", info.Version)
	assert.Equal(t, trainedNames(), info.FeatureNames)
	assert.Equal(t, models.DefaultPowerUnit, info.Unit)
	assert.Len(t, info.Inputs, 8)
}
