package handlers

import (
	"net/http"

	"solar-power-predictor/internal/models"
)

// readingSchema describes a ReadingSet body with the bounds of every control
func readingSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	required := make([]string, 0, len(models.InputRanges))

	for _, rng := range models.InputRanges {
		kind := "number"
		if rng.Integer {
			kind = "integer"
		}
		properties[rng.Field] = map[string]interface{}{
			"type":        kind,
			"minimum":     rng.Min,
			"maximum":     rng.Max,
			"description": rng.Label,
		}
		required = append(required, rng.Field)
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func featureSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	for _, name := range models.FeatureNames {
		properties[name] = map[string]string{"type": "number"}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"error":   map[string]string{"type": "string"},
			"message": map[string]string{"type": "string"},
			"code":    map[string]string{"type": "integer"},
			"fields": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"field":   map[string]string{"type": "string"},
						"value":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
					},
				},
			},
		},
	}
}

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func predictionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":             map[string]string{"type": "integer"},
			"request_id":     map[string]string{"type": "string"},
			"readings":       readingSchema(),
			"raw_prediction": map[string]string{"type": "number"},
			"power_output":   map[string]string{"type": "number"},
			"unit":           map[string]string{"type": "string"},
			"model_version":  map[string]string{"type": "string"},
			"created_at":     map[string]string{"type": "string", "format": "date-time"},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the prediction API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Solar Power Predictor API",
			"description": "Estimates solar power output from weather readings with a gradient-boosted tree model",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/predict": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Estimate power output",
					"description": "Builds the model feature vector from eight readings and returns the absolute model output",
					"requestBody": map[string]interface{}{
						"required": true,
						"content":  jsonContent(readingSchema()),
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Estimated power output",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"power_output":   map[string]interface{}{"type": "number", "minimum": 0},
									"raw_prediction": map[string]string{"type": "number"},
									"unit":           map[string]string{"type": "string"},
									"display":        map[string]string{"type": "string"},
									"features":       featureSchema(),
									"model_version":  map[string]string{"type": "string"},
								},
							}),
						},
						"400": map[string]interface{}{"description": "Malformed body", "content": jsonContent(errorSchema())},
						"422": map[string]interface{}{"description": "Readings missing or out of range", "content": jsonContent(errorSchema())},
						"500": map[string]interface{}{"description": "Inference failed", "content": jsonContent(errorSchema())},
					},
				},
			},
			"/api/model": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Describe the loaded model",
					"description": "Model version, tree count, ordered feature schema and accepted input ranges",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Model description",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"version":       map[string]string{"type": "string"},
									"trees":         map[string]string{"type": "integer"},
									"feature_names": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
									"unit":          map[string]string{"type": "string"},
									"inputs":        map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
								},
							}),
						},
					},
				},
			},
			"/api/predictions": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List recorded predictions",
					"description": "Paginated prediction history, newest first. Returns 404 when history is disabled.",
					"parameters": []map[string]interface{}{
						{
							"name":        "model_version",
							"in":          "query",
							"description": "Filter by model version",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "since",
							"in":          "query",
							"description": "Only predictions at or after this RFC 3339 timestamp",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "date-time"},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100, max: 1000)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data":        map[string]interface{}{"type": "array", "items": predictionSchema()},
									"total":       map[string]string{"type": "integer"},
									"page":        map[string]string{"type": "integer"},
									"limit":       map[string]string{"type": "integer"},
									"total_pages": map[string]string{"type": "integer"},
								},
							}),
						},
						"404": map[string]interface{}{"description": "History disabled", "content": jsonContent(errorSchema())},
					},
				},
			},
			"/api/predictions/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get a recorded prediction",
					"parameters": []map[string]interface{}{
						{
							"name":     "id",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "integer"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Recorded prediction", "content": jsonContent(predictionSchema())},
						"404": map[string]interface{}{"description": "Not found or history disabled", "content": jsonContent(errorSchema())},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API is running and, when enabled, the history store is reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "API is healthy"},
						"503": map[string]interface{}{"description": "History store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	writeJSON(w, spec, http.StatusOK)
}
