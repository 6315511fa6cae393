package application

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jobrunner/sweeper/internal/domain"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

// ConversionService handles datum conversion and centroid computation.
type ConversionService struct {
	metrics  output.MetricsCollector
	logger   *slog.Logger
	maxBatch int
}

// ConversionServiceConfig holds configuration for the conversion service.
type ConversionServiceConfig struct {
	MaxBatch int
}

// NewConversionService creates a new conversion service.
func NewConversionService(
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg ConversionServiceConfig,
) *ConversionService {
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 1000
	}

	return &ConversionService{
		metrics:  metrics,
		logger:   logger,
		maxBatch: cfg.MaxBatch,
	}
}

// Convert converts a single point between datums.
func (s *ConversionService) Convert(_ context.Context, req domain.ConvertRequest) (*domain.ConvertResult, error) {
	start := time.Now()

	out, err := domain.Convert(req.Point, req.From, req.To)
	s.metrics.IncConversions(req.From.String(), req.To.String(), err == nil)
	if err != nil {
		return nil, err
	}

	result := &domain.ConvertResult{
		Input:          req.Point,
		Output:         out,
		From:           req.From,
		To:             req.To,
		OutOfChina:     domain.OutOfChina(req.Point.Lng, req.Point.Lat),
		ProcessingTime: time.Since(start),
	}
	s.metrics.ObserveConversionDuration(req.From.String(), req.To.String(), result.ProcessingTime)

	return result, nil
}

// ConvertBatch converts each point independently. A point that fails is
// reported in its item and does not fail the batch.
func (s *ConversionService) ConvertBatch(ctx context.Context, req domain.BatchConvertRequest) (*domain.BatchConvertResult, error) {
	start := time.Now()

	if len(req.Points) == 0 {
		return nil, &domain.ValidationError{
			Field:      "points",
			Value:      0,
			Constraint: ">= 1",
			Message:    "at least one point is required",
		}
	}
	if len(req.Points) > s.maxBatch {
		return nil, &domain.ValidationError{
			Field:      "points",
			Value:      len(req.Points),
			Constraint: "<= " + strconv.Itoa(s.maxBatch),
			Message:    "too many points in batch",
		}
	}
	if !req.From.IsValid() || !req.To.IsValid() {
		return nil, &domain.ValidationError{
			Field:      "datum",
			Value:      string(req.From) + "->" + string(req.To),
			Constraint: "wgs84|gcj02|bd09",
			Message:    "unknown datum",
		}
	}

	result := &domain.BatchConvertResult{
		Items: make([]domain.BatchItem, 0, len(req.Points)),
		From:  req.From,
		To:    req.To,
	}

	for i, p := range req.Points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := domain.BatchItem{Index: i, Input: p}
		out, err := domain.Convert(p, req.From, req.To)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Output = out
		}
		result.AddItem(item)
		s.metrics.IncConversions(req.From.String(), req.To.String(), err == nil)
	}

	result.ProcessingTime = time.Since(start)
	s.metrics.ObserveConversionDuration(req.From.String(), req.To.String(), result.ProcessingTime)

	if result.Failed > 0 {
		s.logger.Debug("batch conversion had failures",
			"from", req.From, "to", req.To,
			"points", len(req.Points), "failed", result.Failed)
	}

	return result, nil
}

// Centroid computes the centroid in the input datum and converts it to the
// requested output datum.
func (s *ConversionService) Centroid(_ context.Context, req domain.CentroidRequest) (*domain.CentroidResult, error) {
	start := time.Now()

	datum := req.Datum
	if datum == "" {
		datum = domain.DatumWGS84
	}
	outDatum := req.OutputDatum
	if outDatum == "" {
		outDatum = datum
	}

	center, err := domain.Centroid(req.Vertices)
	if err != nil {
		s.metrics.IncCentroids(false)
		return nil, err
	}

	center, err = domain.Convert(center, datum, outDatum)
	if err != nil {
		s.metrics.IncCentroids(false)
		return nil, err
	}
	s.metrics.IncCentroids(true)

	return &domain.CentroidResult{
		Center:         center,
		Datum:          outDatum,
		Extent:         req.Vertices.Extent(),
		VertexCount:    len(req.Vertices),
		ProcessingTime: time.Since(start),
	}, nil
}
