package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"solar-power-predictor/internal/models"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

// BatchService scores files of readings
type BatchService struct {
	predictor *PredictionService
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// BatchResult contains batch scoring statistics
type BatchResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewBatchService creates a new batch scoring service
func NewBatchService(predictor *PredictionService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *BatchService {
	return &BatchService{
		predictor: predictor,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

type pendingRow struct {
	line     string
	readings models.ReadingSet
}

// Score reads tab-separated readings from r and writes them to w with a
// power_output column appended.
//
// The first line is a header naming every reading by its JSON field name, in
// any order. Rows that fail to parse or validate are counted and skipped.
func (s *BatchService) Score(ctx context.Context, r io.Reader, w io.Writer, batchSize int) (*BatchResult, error) {
	startTime := time.Now()
	if batchSize <= 0 {
		batchSize = 1000
	}

	s.logger.Info(ctx, "[BATCH_START] Starting batch scoring", logging.Fields{
		"batch_size": batchSize,
	})

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("error reading header: %w", err)
		}
		return nil, errors.New("input is empty: expected a header line")
	}

	header := scanner.Text()
	columns, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "%s\tpower_output\n", header)

	result := &BatchResult{Errors: make([]string, 0)}
	batch := make([]pendingRow, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		readings := make([]models.ReadingSet, len(batch))
		for i, row := range batch {
			readings[i] = row.readings
		}

		estimates, err := s.predictor.PredictBatch(ctx, readings)
		if err != nil {
			return err
		}
		for i, row := range batch {
			fmt.Fprintf(out, "%s\t%s\n", row.line, models.FormatPower(estimates[i].PowerOutput, ""))
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	lineNumber := 1
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.TotalRecords++

		readings, err := parseRow(columns, line)
		if err != nil {
			result.FailedRecords++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNumber, err))

			var verrs models.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					s.metrics.RecordValidationFailure(fe.Field)
				}
			}
			continue
		}

		batch = append(batch, pendingRow{line: line, readings: readings})

		// Score batch when full
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, fmt.Errorf("failed to score batch ending at line %d: %w", lineNumber, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	// Score remaining rows
	if err := flush(); err != nil {
		return nil, fmt.Errorf("failed to score final batch: %w", err)
	}

	if err := out.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[BATCH_COMPLETE] Batch scoring completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})

	return result, nil
}

// parseHeader maps each column to a reading field and requires all eight
func parseHeader(header string) ([]string, error) {
	columns := strings.Split(header, "\t")
	seen := make(map[string]bool, len(columns))

	for i, column := range columns {
		column = strings.TrimSpace(column)
		if _, ok := models.LookupInputRange(column); !ok {
			return nil, fmt.Errorf("invalid header: unknown column %q", column)
		}
		if seen[column] {
			return nil, fmt.Errorf("invalid header: duplicate column %q", column)
		}
		seen[column] = true
		columns[i] = column
	}

	for _, rng := range models.InputRanges {
		if !seen[rng.Field] {
			return nil, fmt.Errorf("invalid header: missing column %q", rng.Field)
		}
	}

	return columns, nil
}

// parseRow parses a single line of readings in header column order
func parseRow(columns []string, line string) (models.ReadingSet, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != len(columns) {
		return models.ReadingSet{}, fmt.Errorf("invalid line format: expected %d fields, got %d", len(columns), len(parts))
	}

	values := make(map[string]float64, len(columns))
	for i, column := range columns {
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return models.ReadingSet{}, fmt.Errorf("invalid %s: %w", column, err)
		}
		values[column] = value
	}

	return models.ReadingsFromValues(values)
}
