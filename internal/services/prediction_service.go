package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"solar-power-predictor/internal/models"
	"solar-power-predictor/internal/regressor"
	"solar-power-predictor/internal/repository"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

// ErrHistoryDisabled is returned by history queries when no repository is configured
var ErrHistoryDisabled = errors.New("prediction history is disabled")

// Model is the inference capability of a loaded regression model
type Model interface {
	FeatureNames() []string
	Predict(rows [][]float64) ([]float64, error)
	Version() string
}

// ModelInfo describes the loaded model and the inputs it accepts
type ModelInfo struct {
	Version      string              `json:"version"`
	Trees        int                 `json:"trees,omitempty"`
	FeatureNames []string            `json:"feature_names"`
	Unit         string              `json:"unit"`
	Inputs       []models.InputRange `json:"inputs"`
}

// PredictionService turns readings into power estimates
type PredictionService struct {
	model   Model
	history repository.PredictionRepository
	unit    string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPredictionService creates a prediction service around a loaded model
// The model's feature schema must match models.FeatureNames exactly.
// history may be nil, in which case predictions are not recorded.
func NewPredictionService(
	model Model,
	history repository.PredictionRepository,
	unit string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) (*PredictionService, error) {
	if err := checkSchema(model.FeatureNames()); err != nil {
		return nil, err
	}

	if unit == "" {
		unit = models.DefaultPowerUnit
	}

	return &PredictionService{
		model:   model,
		history: history,
		unit:    unit,
		logger:  logger,
		metrics: metricsCollector,
	}, nil
}

func checkSchema(trained []string) error {
	mismatch := len(trained) != models.FeatureCount
	for i := 0; !mismatch && i < len(trained); i++ {
		mismatch = trained[i] != models.FeatureNames[i]
	}
	if mismatch {
		return &regressor.SchemaMismatchError{
			Expected: trained,
			Got:      models.FeatureNames[:],
		}
	}
	return nil
}

// Predict builds the feature vector for readings and runs the model on it
// Readings are not range checked here; callers validate them first.
func (s *PredictionService) Predict(ctx context.Context, readings models.ReadingSet) (*models.Estimate, error) {
	timer := s.metrics.NewTimer(s.metrics.InferenceDuration)
	estimates, err := s.infer(ctx, []models.ReadingSet{readings})
	duration := timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	estimate := estimates[0]
	s.logger.Info(ctx, "[PREDICT_COMPLETE] Power output estimated", logging.Fields{
		"power_output":   estimate.PowerOutput,
		"raw_prediction": estimate.RawPrediction,
		"model_version":  estimate.ModelVersion,
		"duration_us":    duration.Microseconds(),
	})

	s.record(ctx, readings, estimate)

	return estimate, nil
}

// PredictBatch estimates every reading set with a single model call
// Batch estimates are not recorded in the prediction history.
func (s *PredictionService) PredictBatch(ctx context.Context, batch []models.ReadingSet) ([]*models.Estimate, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	return s.infer(ctx, batch)
}

func (s *PredictionService) infer(ctx context.Context, batch []models.ReadingSet) ([]*models.Estimate, error) {
	features := make([]models.FeatureVector, len(batch))
	rows := make([][]float64, len(batch))
	for i, readings := range batch {
		features[i] = models.BuildFeatures(readings)
		rows[i] = features[i].Values()
	}

	raw, err := s.model.Predict(rows)
	if err != nil {
		outcome := "error"
		var schemaErr *regressor.SchemaMismatchError
		if errors.As(err, &schemaErr) {
			outcome = "schema_mismatch"
		}
		s.metrics.RecordPrediction(outcome, 0)
		s.logger.Error(ctx, "[PREDICT_ERROR] Model inference failed", logging.Fields{
			"outcome":       outcome,
			"model_version": s.model.Version(),
			"rows":          len(rows),
		}, err)
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	if len(raw) != len(rows) {
		s.metrics.RecordPrediction("error", 0)
		return nil, fmt.Errorf("inference failed: model returned %d predictions for %d rows", len(raw), len(rows))
	}

	estimates := make([]*models.Estimate, len(raw))
	for i, value := range raw {
		// Regression noise can push near-zero generation below zero; the sign carries no meaning
		power := math.Abs(value)

		estimates[i] = &models.Estimate{
			PowerOutput:   power,
			RawPrediction: value,
			Unit:          s.unit,
			Display:       models.FormatPower(power, s.unit),
			Features:      features[i],
			ModelVersion:  s.model.Version(),
		}
		s.metrics.RecordPrediction("success", power)
	}

	return estimates, nil
}

// record stores the estimate in the history; failures never fail the prediction
func (s *PredictionService) record(ctx context.Context, readings models.ReadingSet, estimate *models.Estimate) {
	if s.history == nil {
		return
	}

	prediction := models.NewPrediction(logging.RequestIDFromContext(ctx), readings, estimate)
	if err := s.history.Record(ctx, prediction); err != nil {
		s.logger.Warn(ctx, "[PREDICT_RECORD_FAILED] Prediction not recorded", logging.Fields{
			"error": err.Error(),
		})
	}
}

// History lists recorded predictions
func (s *PredictionService) History(ctx context.Context, filter repository.PredictionFilter) ([]*models.Prediction, int, error) {
	if s.history == nil {
		return nil, 0, ErrHistoryDisabled
	}
	return s.history.List(ctx, filter)
}

// GetPrediction retrieves a recorded prediction by ID
func (s *PredictionService) GetPrediction(ctx context.Context, id int64) (*models.Prediction, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}

// HistoryEnabled reports whether predictions are being recorded
func (s *PredictionService) HistoryEnabled() bool {
	return s.history != nil
}

// HealthCheck checks the history store when one is configured
func (s *PredictionService) HealthCheck(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	return s.history.HealthCheck(ctx)
}

// ModelInfo describes the loaded model
func (s *PredictionService) ModelInfo() ModelInfo {
	info := ModelInfo{
		Version:      s.model.Version(),
		FeatureNames: s.model.FeatureNames(),
		Unit:         s.unit,
		Inputs:       models.InputRanges,
	}
	if sized, ok := s.model.(interface{ NumTrees() int }); ok {
		info.Trees = sized.NumTrees()
	}
	return info
}
