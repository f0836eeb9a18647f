package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"solar-power-predictor/internal/models"
	"solar-power-predictor/internal/services"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

const formTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Solar Power Generation Predictor</title>
    <style>
        body { font-family: sans-serif; max-width: 760px; margin: 0 auto; padding: 16px; }
        h1 { color: #ff9933; text-align: center; }
        .columns { display: flex; gap: 32px; }
        .column { flex: 1; }
        label { display: block; margin-top: 12px; font-weight: bold; }
        input { width: 100%; }
        .range { color: #666; font-size: 12px; }
        .result { margin-top: 16px; padding: 12px; background: #e6f4ea; border-radius: 4px; }
        .errors { margin-top: 16px; padding: 12px; background: #fde8e8; border-radius: 4px; }
    </style>
</head>
<body>
    <h1>Solar Power Generation Predictor</h1>
    <p style="text-align: center;">Estimate solar power output using real-time weather data</p>
    <hr>
    <h3>Input Environmental Conditions</h3>
    <form method="POST" action="/">
        <div class="columns">
        {{range .Columns}}
            <div class="column">
            {{range .}}
                <label for="{{.Field}}">{{.Label}}{{if .Unit}} ({{.Unit}}){{end}}</label>
                <input type="number" id="{{.Field}}" name="{{.Field}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Value}}" required>
                <span class="range">{{.Min}} to {{.Max}}</span>
            {{end}}
            </div>
        {{end}}
        </div>
        <hr>
        <button type="submit">Predict Power Generated</button>
    </form>
    {{if .Errors}}
    <div class="errors">
        <ul>{{range .Errors}}<li>{{.Message}}</li>{{end}}</ul>
    </div>
    {{end}}
    {{if .Result}}
    <div class="result">Estimated Power Output: <strong>{{.Result}}</strong></div>
    {{end}}
    {{if .Failure}}
    <div class="errors">{{.Failure}}</div>
    {{end}}
</body>
</html>`

var formPage = template.Must(template.New("form").Parse(formTemplate))

type formControl struct {
	models.InputRange
	Value string
}

type formView struct {
	Columns [][]formControl
	Errors  []*models.ValidationError
	Result  string
	Failure string
}

// FormHandler serves the interactive prediction form
type FormHandler struct {
	service *services.PredictionService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFormHandler creates a new form handler
func NewFormHandler(
	service *services.PredictionService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *FormHandler {
	return &FormHandler{
		service: service,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Show handles GET /
func (h *FormHandler) Show(w http.ResponseWriter, r *http.Request) {
	defaults := models.DefaultReadings()
	h.render(w, r, newFormView(readingValues(defaults)), http.StatusOK)
}

// Submit handles POST /
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.metrics.RecordAPIError("bad_request", "/")
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	submitted := make(map[string]string, len(models.InputRanges))
	values := make(map[string]float64, len(models.InputRanges))
	var parseErrs models.ValidationErrors

	for _, rng := range models.InputRanges {
		raw := strings.TrimSpace(r.PostForm.Get(rng.Field))
		submitted[rng.Field] = raw
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			parseErrs = append(parseErrs, &models.ValidationError{
				Field:   rng.Field,
				Value:   raw,
				Message: rng.Field + " must be a number",
			})
			continue
		}
		values[rng.Field] = value
	}

	view := newFormView(submitted)

	var err error
	var readings models.ReadingSet
	if len(parseErrs) > 0 {
		err = parseErrs
	} else {
		readings, err = models.ReadingsFromValues(values)
	}

	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			h.metrics.RecordValidationFailure(fe.Field)
		}
		h.metrics.RecordAPIError("validation", "/")
		view.Errors = verrs
		h.render(w, r, view, http.StatusUnprocessableEntity)
		return
	}

	estimate, err := h.service.Predict(ctx, readings)
	if err != nil {
		h.logger.Error(ctx, "[FORM_PREDICT_ERROR] Prediction failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("inference_error", "/")
		view.Failure = "Power output could not be estimated. Please try again later."
		h.render(w, r, view, http.StatusInternalServerError)
		return
	}

	view.Result = estimate.Display
	h.render(w, r, view, http.StatusOK)
}

func (h *FormHandler) render(w http.ResponseWriter, r *http.Request, view formView, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := formPage.Execute(w, view); err != nil {
		h.logger.Error(r.Context(), "[FORM_RENDER_ERROR] Failed to render form", logging.Fields{}, err)
	}
}

// newFormView lays the controls out in two columns of four, in display order
func newFormView(values map[string]string) formView {
	controls := make([]formControl, 0, len(models.InputRanges))
	for _, rng := range models.InputRanges {
		controls = append(controls, formControl{InputRange: rng, Value: values[rng.Field]})
	}

	half := (len(controls) + 1) / 2
	return formView{Columns: [][]formControl{controls[:half], controls[half:]}}
}

func readingValues(r models.ReadingSet) map[string]string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		"distance_to_solar_noon":    format(r.DistanceToSolarNoon),
		"temperature":               strconv.Itoa(r.Temperature),
		"wind_speed":                format(r.WindSpeed),
		"sky_cover":                 strconv.Itoa(r.SkyCover),
		"humidity":                  strconv.Itoa(r.Humidity),
		"average_wind_speed_period": format(r.AverageWindSpeedPeriod),
		"average_pressure_period":   format(r.AveragePressurePeriod),
		"wind_direction":            strconv.Itoa(r.WindDirection),
	}
}

// RegisterRoutes registers the form routes
func (h *FormHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Show).Methods("GET")
	router.HandleFunc("/", h.Submit).Methods("POST")
}
