// Package convert runs a whole conversion: read the MLT document, render the
// requested format, write it atomically and record the outcome.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/mlt2fcpx/internal/export"
	"github.com/heimdex/mlt2fcpx/internal/fcpxml"
	"github.com/heimdex/mlt2fcpx/internal/fsx"
	"github.com/heimdex/mlt2fcpx/internal/history"
	"github.com/heimdex/mlt2fcpx/internal/logging"
	"github.com/heimdex/mlt2fcpx/internal/mlt"
	"github.com/heimdex/mlt2fcpx/internal/project"
)

var (
	ErrInvalidRequest = errors.New("invalid conversion request")
	ErrInputNotFound  = errors.New("input not found")
)

type Options struct {
	EmbedCompoundClips bool
	MaxEmbedDepth      int
	GapNodes           bool
}

type Request struct {
	InputPath string
	// OutputPath defaults to InputPath with the format's extension.
	OutputPath string
	// Format is export.FormatFCPXML (default) or export.FormatEDL.
	Format string
	// Name labels the timeline inside the output.
	Name string
}

type Result struct {
	ID            string
	InputPath     string
	OutputPath    string
	Format        string
	ClipCount     int
	TrackCount    int
	EmbeddedCount int
	Bytes         int64
	Duration      time.Duration
}

// Recorder is the part of history.Repository a conversion writes to.
type Recorder interface {
	CreateConversion(ctx context.Context, c *history.Conversion) error
	FinishConversion(ctx context.Context, c *history.Conversion) error
}

type Service struct {
	opts     Options
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service. recorder may be nil to skip history.
func NewService(opts Options, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		opts:     opts,
		recorder: recorder,
		logger:   logging.WithComponent(logger, "convert"),
		now:      time.Now,
	}
}

// DefaultOutputPath swaps the extension of input for the one of format.
func DefaultOutputPath(input, format string) (string, error) {
	ext, err := export.Extension(format)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext, nil
}

func (s *Service) Convert(ctx context.Context, req Request) (*Result, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	start := s.now()
	conv := &history.Conversion{
		ID:         history.NewID(),
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Format:     req.Format,
		Status:     history.StatusRunning,
		CreatedAt:  start,
		UpdatedAt:  start,
	}
	logger := logging.WithConversionID(s.logger, conv.ID)
	s.record(ctx, logger, conv, true)

	result, err := s.run(ctx, logger, req)

	conv.UpdatedAt = s.now()
	conv.DurationMs = conv.UpdatedAt.Sub(start).Milliseconds()
	if err != nil {
		conv.Status = history.StatusFailed
		conv.ErrorCode = ErrorCode(err)
		conv.Error = err.Error()
		s.record(ctx, logger, conv, false)
		logger.Error("conversion failed",
			"input", logging.SanitizePath(req.InputPath),
			"code", conv.ErrorCode,
			"error", err)
		return nil, err
	}

	result.ID = conv.ID
	result.Duration = conv.UpdatedAt.Sub(start)
	conv.Status = history.StatusCompleted
	conv.ClipCount = result.ClipCount
	conv.TrackCount = result.TrackCount
	conv.EmbeddedCount = result.EmbeddedCount
	conv.Bytes = result.Bytes
	s.record(ctx, logger, conv, false)

	logger.Info("conversion completed",
		"input", logging.SanitizePath(req.InputPath),
		"output", logging.SanitizePath(req.OutputPath),
		"format", req.Format,
		"clips", result.ClipCount,
		"tracks", result.TrackCount,
		"bytes", result.Bytes)
	return result, nil
}

func (s *Service) normalize(req Request) (Request, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return req, fmt.Errorf("%w: input_path is required", ErrInvalidRequest)
	}
	if req.Format == "" {
		req.Format = export.FormatFCPXML
	}
	if _, err := export.Extension(req.Format); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	input, err := filepath.Abs(req.InputPath)
	if err != nil {
		return req, fmt.Errorf("%w: input_path: %v", ErrInvalidRequest, err)
	}
	req.InputPath = input

	if req.OutputPath == "" {
		req.OutputPath, _ = DefaultOutputPath(input, req.Format)
	}
	output, err := filepath.Abs(req.OutputPath)
	if err != nil {
		return req, fmt.Errorf("%w: output path: %v", ErrInvalidRequest, err)
	}
	req.OutputPath = output

	if req.OutputPath == req.InputPath {
		return req, fmt.Errorf("%w: output would overwrite the input", ErrInvalidRequest)
	}
	return req, nil
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(req.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, req.InputPath)
		}
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: input %s is a directory", ErrInvalidRequest, req.InputPath)
	}

	reader := mlt.NewReader(mlt.Options{
		EmbedCompoundClips: s.opts.EmbedCompoundClips,
		MaxEmbedDepth:      s.opts.MaxEmbedDepth,
	}, logger)

	p, err := reader.ReadFile(req.InputPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := fsx.WriteFile(req.OutputPath, func(w io.Writer) error {
		return s.render(w, p, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", req.OutputPath, err)
	}

	return &Result{
		InputPath:     req.InputPath,
		OutputPath:    req.OutputPath,
		Format:        req.Format,
		ClipCount:     countClips(p),
		TrackCount:    len(p.Tracks),
		EmbeddedCount: len(p.Embedded()),
		Bytes:         n,
	}, nil
}

func (s *Service) render(w io.Writer, p *project.Project, req Request) error {
	switch req.Format {
	case export.FormatEDL:
		title := req.Name
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
		}
		_, err := io.WriteString(w, export.ProjectEDL(p, title))
		return err
	default:
		enc := fcpxml.NewEncoder(w, fcpxml.Options{GapNodes: s.opts.GapNodes, Name: req.Name})
		return enc.Encode(p)
	}
}

// record writes conv to history. History is best effort: a failing database
// never fails the conversion itself.
func (s *Service) record(ctx context.Context, logger *slog.Logger, conv *history.Conversion, create bool) {
	if s.recorder == nil {
		return
	}
	// The conversion may have failed because ctx was cancelled; still record it.
	ctx = context.WithoutCancel(ctx)

	var err error
	if create {
		err = s.recorder.CreateConversion(ctx, conv)
	} else {
		err = s.recorder.FinishConversion(ctx, conv)
	}
	if err != nil {
		logger.Warn("failed to record conversion", "status", conv.Status, "error", err)
	}
}

// ErrorCode classifies a conversion failure for history and API responses.
func ErrorCode(err error) string {
	if code := mlt.Code(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrInputNotFound):
		return "INPUT_NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED"
	case fsx.IsCrossDevice(err), fsx.IsPathTypeConflict(err):
		return "OUTPUT_CONFLICT"
	}
	return "CONVERSION_FAILED"
}

// countClips counts clips across the project and every embedded timeline.
func countClips(p *project.Project) int {
	n := p.ClipCount()
	for _, sub := range p.Embedded() {
		n += sub.ClipCount()
	}
	return n
}
