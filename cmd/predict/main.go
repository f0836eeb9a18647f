package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"solar-power-predictor/internal/config"
	"solar-power-predictor/internal/models"
	"solar-power-predictor/internal/regressor"
	"solar-power-predictor/internal/services"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
)

// readingFlags maps command-line flags to reading fields
var readingFlags = []struct {
	flag  string
	field string
}{
	{flag: "distance", field: "distance_to_solar_noon"},
	{flag: "temperature", field: "temperature"},
	{flag: "wind-speed", field: "wind_speed"},
	{flag: "sky-cover", field: "sky_cover"},
	{flag: "humidity", field: "humidity"},
	{flag: "avg-wind-speed", field: "average_wind_speed_period"},
	{flag: "avg-pressure", field: "average_pressure_period"},
	{flag: "wind-direction", field: "wind_direction"},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	// Parse command-line flags; every reading defaults to the bottom of its range
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)

	values := make(map[string]*float64, len(readingFlags))
	for _, rf := range readingFlags {
		rng, _ := models.LookupInputRange(rf.field)
		usage := fmt.Sprintf("%s (%g to %g)", rng.Label, rng.Min, rng.Max)
		values[rf.field] = fs.Float64(rf.flag, rng.Min, usage)
	}
	modelPath := fs.String("model", cfg.Model.Path, "Path to the model artifact")
	asJSON := fs.Bool("json", false, "Print the full estimate as JSON")

	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	// Initialize logger; stdout is reserved for the result
	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %v\n", err)
		return exitFailure
	}
	logger := logging.NewStructuredLogger("solar-power-cli", "1.0.0", logLevel)
	logger.SetOutput(stderr)

	metricsCollector := metrics.NewCollector("solar_power_cli", prometheus.NewRegistry())

	readingValues := make(map[string]float64, len(values))
	for field, value := range values {
		readingValues[field] = *value
	}

	readings, err := models.ReadingsFromValues(readingValues)
	if err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fmt.Fprintf(stderr, "invalid reading: %s\n", fe.Message)
			}
			return exitValidation
		}
		fmt.Fprintf(stderr, "Failed to read inputs: %v\n", err)
		return exitFailure
	}

	model, err := regressor.Load(*modelPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFailure
	}

	predictionService, err := services.NewPredictionService(model, nil, cfg.Model.PowerUnit, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFailure
	}

	estimate, err := predictionService.Predict(context.Background(), readings)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFailure
	}

	if *asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(estimate); err != nil {
			fmt.Fprintf(stderr, "Failed to encode estimate: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	fmt.Fprintf(stdout, "Estimated Power Output: %s\n", estimate.Display)
	return exitOK
}
