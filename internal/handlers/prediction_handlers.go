package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"solar-power-predictor/internal/models"
	"solar-power-predictor/internal/regressor"
	"solar-power-predictor/internal/repository"
	"solar-power-predictor/internal/services"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

// maxBodyBytes bounds a prediction request; eight numbers never come close
const maxBodyBytes = 64 << 10

// PredictionHandler handles the prediction API endpoints
type PredictionHandler struct {
	service *services.PredictionService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(
	service *services.PredictionService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PredictionHandler {
	return &PredictionHandler{
		service: service,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string                    `json:"error"`
	Message string                    `json:"message"`
	Code    int                       `json:"code"`
	Fields  []*models.ValidationError `json:"fields,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// Predict handles POST /api/predict
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body map[string]*float64
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&body); err != nil {
		h.metrics.RecordAPIError("bad_request", "/api/predict")
		h.sendError(w, "request body must be a JSON object of numeric readings", http.StatusBadRequest)
		return
	}

	values := make(map[string]float64, len(body))
	for field, value := range body {
		if value != nil {
			values[field] = *value
		}
	}

	readings, err := models.ReadingsFromValues(values)
	if err != nil {
		h.handleValidationError(w, r, err, "/api/predict")
		return
	}

	estimate, err := h.service.Predict(ctx, readings)
	if err != nil {
		h.handlePredictionError(w, r, err, "/api/predict")
		return
	}

	h.sendJSON(w, estimate, http.StatusOK)
}

// GetModel handles GET /api/model
func (h *PredictionHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.service.ModelInfo(), http.StatusOK)
}

// ListPredictions handles GET /api/predictions
func (h *PredictionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.service.HistoryEnabled() {
		h.sendError(w, services.ErrHistoryDisabled.Error(), http.StatusNotFound)
		return
	}

	modelVersion := r.URL.Query().Get("model_version")
	sinceStr := r.URL.Query().Get("since")
	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	// Default pagination
	page := 1
	limit := 100

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	filter := repository.PredictionFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if modelVersion != "" {
		filter.ModelVersion = &modelVersion
	}

	if sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			h.sendError(w, "invalid since format, expected RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = &since
	}

	predictions, total, err := h.service.History(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_PREDICTIONS_ERROR] Failed to list predictions", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/predictions")
		h.sendError(w, "failed to retrieve predictions", http.StatusInternalServerError)
		return
	}

	if predictions == nil {
		predictions = []*models.Prediction{}
	}

	h.sendJSON(w, PaginatedResponse{
		Data:       predictions,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetPrediction handles GET /api/predictions/{id}
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, "invalid prediction id", http.StatusBadRequest)
		return
	}

	prediction, err := h.service.GetPrediction(ctx, id)

	var notFound *repository.NotFoundError
	switch {
	case errors.Is(err, services.ErrHistoryDisabled):
		h.sendError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &notFound):
		h.sendError(w, notFound.Error(), http.StatusNotFound)
	case err != nil:
		h.logger.Error(ctx, "[API_GET_PREDICTION_ERROR] Failed to get prediction", logging.Fields{
			"id": id,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/predictions/{id}")
		h.sendError(w, "failed to retrieve prediction", http.StatusInternalServerError)
	default:
		h.sendJSON(w, prediction, http.StatusOK)
	}
}

// HealthCheck handles GET /health
func (h *PredictionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":        "healthy",
		"model_version": h.service.ModelInfo().Version,
		"history":       "disabled",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.service.HistoryEnabled() {
		status["history"] = "healthy"
		if err := h.service.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK] History store unhealthy", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "degraded"
			status["history"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// handleValidationError answers 422 with every offending field
func (h *PredictionHandler) handleValidationError(w http.ResponseWriter, r *http.Request, err error, endpoint string) {
	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		h.handlePredictionError(w, r, err, endpoint)
		return
	}

	for _, fe := range verrs {
		h.metrics.RecordValidationFailure(fe.Field)
	}
	h.metrics.RecordAPIError("validation", endpoint)

	h.logger.Debug(r.Context(), "[API_VALIDATION_ERROR] Readings rejected", logging.Fields{
		"errors": verrs.Error(),
	})

	h.sendJSONError(w, ErrorResponse{
		Error:   http.StatusText(http.StatusUnprocessableEntity),
		Message: verrs.Error(),
		Code:    http.StatusUnprocessableEntity,
		Fields:  verrs,
	})
}

// handlePredictionError answers 500 without exposing model internals
func (h *PredictionHandler) handlePredictionError(w http.ResponseWriter, r *http.Request, err error, endpoint string) {
	errorType := "inference_error"
	var schemaErr *regressor.SchemaMismatchError
	if errors.As(err, &schemaErr) {
		errorType = "schema_mismatch"
	}

	h.logger.Error(r.Context(), "[API_PREDICT_ERROR] Prediction failed", logging.Fields{
		"endpoint":   endpoint,
		"error_type": errorType,
	}, err)
	h.metrics.RecordAPIError(errorType, endpoint)
	h.sendError(w, "failed to estimate power output", http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *PredictionHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	writeJSON(w, data, statusCode)
}

// sendError sends an error response
func (h *PredictionHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSONError(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (h *PredictionHandler) sendJSONError(w http.ResponseWriter, response ErrorResponse) {
	writeJSON(w, response, response.Code)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// RegisterRoutes registers all prediction API routes
func (h *PredictionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/predict", h.Predict).Methods("POST")
	router.HandleFunc("/api/model", h.GetModel).Methods("GET")
	router.HandleFunc("/api/predictions", h.ListPredictions).Methods("GET")
	router.HandleFunc("/api/predictions/{id:[0-9]+}", h.GetPrediction).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
