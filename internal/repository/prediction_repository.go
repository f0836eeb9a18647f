package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"solar-power-predictor/internal/models"
	"solar-power-predictor/pkg/database"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

// PredictionRepository provides data access for the prediction history
type PredictionRepository interface {
	Record(ctx context.Context, prediction *models.Prediction) error
	Get(ctx context.Context, id int64) (*models.Prediction, error)
	List(ctx context.Context, filter PredictionFilter) ([]*models.Prediction, int, error)
	HealthCheck(ctx context.Context) error
}

// PredictionFilter defines filters for querying recorded predictions
type PredictionFilter struct {
	ModelVersion *string
	Since        *time.Time
	Limit        int
	Offset       int
}

const predictionColumns = `
	id, request_id,
	distance_to_solar_noon, temperature, wind_speed, sky_cover, humidity,
	average_wind_speed_period, average_pressure_period, wind_direction,
	raw_prediction, power_output, unit, model_version, created_at
`

// predictionRepository implements PredictionRepository on PostgreSQL
type predictionRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PredictionRepository {
	return &predictionRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Record stores a prediction and sets its ID
func (r *predictionRepository) Record(ctx context.Context, prediction *models.Prediction) error {
	query := `
		INSERT INTO prediction_log (
			request_id,
			distance_to_solar_noon, temperature, wind_speed, sky_cover, humidity,
			average_wind_speed_period, average_pressure_period, wind_direction,
			raw_prediction, power_output, unit, model_version, created_at
		)
		VALUES (
			:request_id,
			:distance_to_solar_noon, :temperature, :wind_speed, :sky_cover, :humidity,
			:average_wind_speed_period, :average_pressure_period, :wind_direction,
			:raw_prediction, :power_output, :unit, :model_version, :created_at
		)
		RETURNING id
	`

	id, err := r.db.NamedInsertReturningID(ctx, "insert_prediction", query, prediction)
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	prediction.ID = id

	r.logger.Debug(ctx, "[REPO_RECORD_PREDICTION] Prediction recorded", logging.Fields{
		"id":            id,
		"model_version": prediction.ModelVersion,
	})

	return nil
}

// Get retrieves a recorded prediction by ID
func (r *predictionRepository) Get(ctx context.Context, id int64) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM prediction_log WHERE id = $1`

	var prediction models.Prediction
	err := r.db.GetContext(ctx, "get_prediction", &prediction, query, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "prediction",
			ID:       strconv.FormatInt(id, 10),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	return &prediction, nil
}

// List retrieves recorded predictions, newest first, with filtering and pagination
func (r *predictionRepository) List(ctx context.Context, filter PredictionFilter) ([]*models.Prediction, int, error) {
	where, args := buildPredictionFilter(filter)

	countQuery := "SELECT COUNT(*) FROM prediction_log" + where
	var totalCount int
	if err := r.db.GetContext(ctx, "count_predictions", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	query := "SELECT " + predictionColumns + " FROM prediction_log" + where
	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var predictions []*models.Prediction
	if err := r.db.SelectContext(ctx, "list_predictions", &predictions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list predictions: %w", err)
	}

	return predictions, totalCount, nil
}

// buildPredictionFilter renders the WHERE clause and its positional arguments
func buildPredictionFilter(filter PredictionFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if filter.ModelVersion != nil {
		args = append(args, *filter.ModelVersion)
		where += fmt.Sprintf(" AND model_version = $%d", len(args))
	}

	if filter.Since != nil {
		args = append(args, *filter.Since)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	return where, args
}

// HealthCheck performs a repository health check
func (r *predictionRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
