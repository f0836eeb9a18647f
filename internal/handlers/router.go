package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"solar-power-predictor/internal/services"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

// NewRouter wires every route and middleware around a prediction service
// metricsHandler serves /metrics and may be nil
func NewRouter(
	service *services.PredictionService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	metricsHandler http.Handler,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, Recoverer(logger, metricsCollector), Instrument(logger, metricsCollector))

	NewPredictionHandler(service, logger, metricsCollector).RegisterRoutes(router)
	NewFormHandler(service, logger, metricsCollector).RegisterRoutes(router)

	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	return router
}
