package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"solar-power-predictor/internal/config"
	"solar-power-predictor/internal/regressor"
	"solar-power-predictor/internal/services"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

func main() {
	// Parse command-line flags
	inputPath := flag.String("input", "", "Tab-separated readings file with a header line (default: stdin)")
	outputPath := flag.String("output", "", "Where to write scored rows (default: stdout)")
	batchSize := flag.Int("batch-size", 1000, "Number of rows to score per model call")
	modelPath := flag.String("model", "", "Path to the model artifact (default: MODEL_PATH)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *modelPath == "" {
		*modelPath = cfg.Model.Path
	}

	// Initialize logger; stdout may carry scored rows
	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewStructuredLogger("solar-power-score", "1.0.0", logLevel)
	logger.SetOutput(os.Stderr)

	ctx := context.Background()
	logger.Info(ctx, "[SCORE_START] Starting batch scoring", logging.Fields{
		"version":    "1.0.0",
		"input":      *inputPath,
		"batch_size": *batchSize,
		"model_path": *modelPath,
	})

	metricsCollector := metrics.NewCollector("solar_power_score", prometheus.NewRegistry())

	model, err := regressor.Load(*modelPath)
	if err != nil {
		logger.Fatal(ctx, "[SCORE_ERROR] Failed to load model artifact", logging.Fields{}, err)
	}

	predictionService, err := services.NewPredictionService(model, nil, cfg.Model.PowerUnit, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[SCORE_ERROR] Model does not accept this service's features", logging.Fields{}, err)
	}
	batchService := services.NewBatchService(predictionService, logger, metricsCollector)

	var input io.Reader = os.Stdin
	if *inputPath != "" {
		file, err := os.Open(*inputPath)
		if err != nil {
			logger.Fatal(ctx, "[SCORE_ERROR] Failed to open input", logging.Fields{"input": *inputPath}, err)
		}
		defer file.Close()
		input = file
	}

	var output io.Writer = os.Stdout
	summary := io.Writer(os.Stderr)
	if *outputPath != "" {
		file, err := os.Create(*outputPath)
		if err != nil {
			logger.Fatal(ctx, "[SCORE_ERROR] Failed to create output", logging.Fields{"output": *outputPath}, err)
		}
		defer file.Close()
		output = file
		summary = os.Stdout
	}

	result, err := batchService.Score(ctx, input, output, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[SCORE_ERROR] Batch scoring failed", logging.Fields{}, err)
	}

	// Print results
	fmt.Fprintln(summary, strings.Repeat("=", 80))
	fmt.Fprintln(summary, "SCORING COMPLETE")
	fmt.Fprintln(summary, strings.Repeat("=", 80))
	fmt.Fprintf(summary, "Model Version:      %s\n", model.Version())
	fmt.Fprintf(summary, "Total Records:      %d\n", result.TotalRecords)
	fmt.Fprintf(summary, "Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Fprintf(summary, "Failed Records:     %d\n", result.FailedRecords)
	fmt.Fprintf(summary, "Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Fprintf(summary, "\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Fprintf(summary, "  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Fprintf(summary, "  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
