package api

import (
	"context"
	"log/slog"
	"strings"

	"cohortaudit/internal/analytics"
	"cohortaudit/internal/config"
	"cohortaudit/internal/logging"
	"cohortaudit/internal/notes"
	"cohortaudit/internal/services"
)

// Service runs analyses and note listings over the configured batch files.
type Service struct {
	dirs     []string
	pattern  string
	defaults analytics.Params
	logger   *slog.Logger
}

// NewService builds a Service from the loaded configuration.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	svc := &Service{
		pattern:  notes.DefaultPattern,
		defaults: analytics.DefaultParams(),
		logger:   logging.NewComponentLogger(logger, "service"),
	}
	if cfg != nil {
		svc.dirs = append([]string{}, cfg.Paths.NotesDirs...)
		if glob := strings.TrimSpace(cfg.Paths.NotesGlob); glob != "" {
			svc.pattern = glob
		}
		svc.defaults = ParamsFromConfig(cfg.Analysis)
	}
	return svc
}

// Defaults returns the parameters used when a request overrides nothing.
func (s *Service) Defaults() analytics.Params {
	return s.defaults
}

// Analyze discovers and loads the batch, then runs the analysis with params.
func (s *Service) Analyze(ctx context.Context, params analytics.Params) (*AnalyticsResponse, error) {
	batch, err := s.loadBatch(ctx)
	if err != nil {
		return nil, err
	}
	result, err := analytics.Run(ctx, batch.Subjects(), params, s.logger)
	if err != nil {
		return nil, err
	}
	resp := FromResult(result, batch)
	return &resp, nil
}

// Lab discovers and loads the batch, then unionizes its notes.
func (s *Service) Lab(ctx context.Context) (*LabResponse, error) {
	batch, err := s.loadBatch(ctx)
	if err != nil {
		return nil, err
	}
	ctx = services.WithStage(ctx, "notes_lab")
	lab, err := notes.Union(ctx, batch, logging.WithContext(ctx, s.logger))
	if err != nil {
		return nil, err
	}
	resp := FromLab(lab)
	return &resp, nil
}

func (s *Service) loadBatch(ctx context.Context) (*notes.Batch, error) {
	paths, err := notes.Discover(s.dirs, s.pattern)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Debug("batch files discovered",
		logging.Int("files", len(paths)),
		logging.String("pattern", s.pattern),
	)
	return notes.Load(ctx, paths)
}
