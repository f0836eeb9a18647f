package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ReadingSet represents the raw weather measurements captured for one prediction
// Range tags mirror InputRanges and are enforced by Validate, never by BuildFeatures
type ReadingSet struct {
	DistanceToSolarNoon    float64 `json:"distance_to_solar_noon" db:"distance_to_solar_noon" validate:"min=0,max=1.5"`
	Temperature            int     `json:"temperature" db:"temperature" validate:"min=42,max=78"`
	WindSpeed              float64 `json:"wind_speed" db:"wind_speed" validate:"min=1.1,max=22.1"`
	SkyCover               int     `json:"sky_cover" db:"sky_cover" validate:"min=0,max=4"`
	Humidity               int     `json:"humidity" db:"humidity" validate:"min=0,max=100"`
	AverageWindSpeedPeriod float64 `json:"average_wind_speed_period" db:"average_wind_speed_period" validate:"min=0,max=30"`
	AveragePressurePeriod  float64 `json:"average_pressure_period" db:"average_pressure_period" validate:"min=29.64,max=30.39"`
	WindDirection          int     `json:"wind_direction" db:"wind_direction" validate:"min=1,max=32"`
}

// InputRange describes one bounded control of the input surface
type InputRange struct {
	Field   string  `json:"field"`
	Label   string  `json:"label"`
	Unit    string  `json:"unit,omitempty"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Integer bool    `json:"integer"`
}

// InputRanges lists the controls in display order
var InputRanges = []InputRange{
	{Field: "distance_to_solar_noon", Label: "Distance to Solar Noon", Min: 0.0, Max: 1.5, Step: 0.0001},
	{Field: "wind_speed", Label: "Wind Speed", Unit: "mph", Min: 1.1, Max: 22.1, Step: 0.1},
	{Field: "sky_cover", Label: "Sky Cover", Min: 0, Max: 4, Step: 1, Integer: true},
	{Field: "average_wind_speed_period", Label: "Avg Wind Speed (Period)", Min: 0.0, Max: 30.0, Step: 1.0},
	{Field: "temperature", Label: "Temperature", Unit: "°C", Min: 42, Max: 78, Step: 1, Integer: true},
	{Field: "wind_direction", Label: "Wind Direction (1-32)", Min: 1, Max: 32, Step: 1, Integer: true},
	{Field: "humidity", Label: "Humidity", Unit: "%", Min: 0, Max: 100, Step: 1, Integer: true},
	{Field: "average_pressure_period", Label: "Avg Pressure", Unit: "inHg", Min: 29.64, Max: 30.39, Step: 0.01},
}

// LookupInputRange returns the range declared for a JSON field name
func LookupInputRange(field string) (InputRange, bool) {
	for _, r := range InputRanges {
		if r.Field == field {
			return r, true
		}
	}
	return InputRange{}, false
}

// DefaultReadings returns every control at its lower bound
func DefaultReadings() ReadingSet {
	var r ReadingSet
	for _, rng := range InputRanges {
		r.set(rng.Field, rng.Min)
	}
	return r
}

// ReadingsFromValues assembles a ReadingSet from values keyed by JSON field name
// Every control must be present, integer controls must hold whole numbers,
// and the result must pass Validate. Failures are returned as ValidationErrors.
func ReadingsFromValues(values map[string]float64) (ReadingSet, error) {
	var (
		r    ReadingSet
		errs ValidationErrors
	)

	for field := range values {
		if _, ok := LookupInputRange(field); !ok {
			errs = append(errs, &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is not a recognized reading", field),
			})
		}
	}

	for _, rng := range InputRanges {
		value, ok := values[rng.Field]
		switch {
		case !ok:
			errs = append(errs, &ValidationError{
				Field:   rng.Field,
				Message: fmt.Sprintf("%s is required", rng.Field),
			})
		case math.IsNaN(value) || math.IsInf(value, 0):
			errs = append(errs, &ValidationError{
				Field:   rng.Field,
				Value:   strconv.FormatFloat(value, 'g', -1, 64),
				Message: fmt.Sprintf("%s must be a finite number", rng.Field),
			})
		case rng.Integer && value != math.Trunc(value):
			errs = append(errs, &ValidationError{
				Field:   rng.Field,
				Value:   strconv.FormatFloat(value, 'g', -1, 64),
				Message: fmt.Sprintf("%s must be a whole number", rng.Field),
			})
		default:
			r.set(rng.Field, value)
		}
	}

	if len(errs) > 0 {
		errs.sortByControl()
		return ReadingSet{}, errs
	}

	if err := r.Validate(); err != nil {
		return ReadingSet{}, err
	}
	return r, nil
}

func (r *ReadingSet) set(field string, value float64) {
	switch field {
	case "distance_to_solar_noon":
		r.DistanceToSolarNoon = value
	case "temperature":
		r.Temperature = int(value)
	case "wind_speed":
		r.WindSpeed = value
	case "sky_cover":
		r.SkyCover = int(value)
	case "humidity":
		r.Humidity = int(value)
	case "average_wind_speed_period":
		r.AverageWindSpeedPeriod = value
	case "average_pressure_period":
		r.AveragePressurePeriod = value
	case "wind_direction":
		r.WindDirection = int(value)
	}
}

var readingValidator = newReadingValidator()

func newReadingValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every reading against its declared range
// Returns ValidationErrors listing each offending field
func (r ReadingSet) Validate() error {
	var errs ValidationErrors

	// validator's min/max both pass for NaN, so non-finite values are caught first
	for field, value := range map[string]float64{
		"distance_to_solar_noon":    r.DistanceToSolarNoon,
		"wind_speed":                r.WindSpeed,
		"average_wind_speed_period": r.AverageWindSpeedPeriod,
		"average_pressure_period":   r.AveragePressurePeriod,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			errs = append(errs, &ValidationError{
				Field:   field,
				Value:   strconv.FormatFloat(value, 'g', -1, 64),
				Message: fmt.Sprintf("%s must be a finite number", field),
			})
		}
	}
	if len(errs) > 0 {
		errs.sortByControl()
		return errs
	}

	err := readingValidator.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate readings: %w", err)
	}

	for _, fe := range fieldErrs {
		errs = append(errs, newRangeError(fe.Field(), fe.Value()))
	}
	errs.sortByControl()
	return errs
}

func newRangeError(field string, value interface{}) *ValidationError {
	message := fmt.Sprintf("%s is out of range", field)
	if rng, ok := LookupInputRange(field); ok {
		message = fmt.Sprintf("%s must be between %s and %s",
			field,
			strconv.FormatFloat(rng.Min, 'f', -1, 64),
			strconv.FormatFloat(rng.Max, 'f', -1, 64))
	}
	return &ValidationError{
		Field:   field,
		Value:   fmt.Sprint(value),
		Message: message,
	}
}

// ValidationError represents a reading that falls outside its declared range
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// ValidationErrors collects every invalid reading of a ReadingSet
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, e := range v {
		messages = append(messages, e.Message)
	}
	return strings.Join(messages, "; ")
}

// IsTransient returns false as validation errors are permanent
func (v ValidationErrors) IsTransient() bool {
	return false
}

// sortByControl orders errors by display order of the input controls
func (v ValidationErrors) sortByControl() {
	position := func(field string) int {
		for i, r := range InputRanges {
			if r.Field == field {
				return i
			}
		}
		return len(InputRanges)
	}
	sort.SliceStable(v, func(i, j int) bool {
		return position(v[i].Field) < position(v[j].Field)
	})
}
