package models

import (
	"math"
)

// FeatureCount is the width of a model input row
const FeatureCount = 9

// FeatureNames is the trained model's input schema, in column order
var FeatureNames = [FeatureCount]string{
	"distance-to-solar-noon",
	"temperature",
	"wind-speed",
	"sky-cover",
	"humidity",
	"average-wind-speed-(period)",
	"average-pressure-(period)",
	"wind_dir_sin",
	"wind_dir_cos",
}

// FeatureVector is the model-ready row derived from a ReadingSet
// Field order and JSON names must match FeatureNames exactly
type FeatureVector struct {
	DistanceToSolarNoon    float64 `json:"distance-to-solar-noon"`
	Temperature            float64 `json:"temperature"`
	WindSpeed              float64 `json:"wind-speed"`
	SkyCover               float64 `json:"sky-cover"`
	Humidity               float64 `json:"humidity"`
	AverageWindSpeedPeriod float64 `json:"average-wind-speed-(period)"`
	AveragePressurePeriod  float64 `json:"average-pressure-(period)"`
	WindDirSin             float64 `json:"wind_dir_sin"`
	WindDirCos             float64 `json:"wind_dir_cos"`
}

// BuildFeatures converts raw readings into the model's feature vector
// Total over its domain: no bounds checks, no side effects
func BuildFeatures(r ReadingSet) FeatureVector {
	sin, cos := WindDirectionComponents(r.WindDirection)

	return FeatureVector{
		DistanceToSolarNoon:    r.DistanceToSolarNoon,
		Temperature:            float64(r.Temperature),
		WindSpeed:              r.WindSpeed,
		SkyCover:               float64(r.SkyCover),
		Humidity:               float64(r.Humidity),
		AverageWindSpeedPeriod: r.AverageWindSpeedPeriod,
		AveragePressurePeriod:  r.AveragePressurePeriod,
		WindDirSin:             sin,
		WindDirCos:             cos,
	}
}

// WindDirectionComponents returns the cyclic encoding sin(2π·d/360), cos(2π·d/360)
func WindDirectionComponents(direction int) (float64, float64) {
	// Reduce first so directions a full turn apart encode to identical bits
	angle := 2 * math.Pi * float64(direction%360) / 360
	return math.Sin(angle), math.Cos(angle)
}

// Values returns the vector as a model input row in FeatureNames order
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.DistanceToSolarNoon,
		f.Temperature,
		f.WindSpeed,
		f.SkyCover,
		f.Humidity,
		f.AverageWindSpeedPeriod,
		f.AveragePressurePeriod,
		f.WindDirSin,
		f.WindDirCos,
	}
}

// Named returns the vector keyed by feature name
func (f FeatureVector) Named() map[string]float64 {
	values := f.Values()
	named := make(map[string]float64, FeatureCount)
	for i, name := range FeatureNames {
		named[name] = values[i]
	}
	return named
}
