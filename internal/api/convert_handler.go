package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/heimdex/mlt2fcpx/internal/convert"
	"github.com/heimdex/mlt2fcpx/internal/export"
	"github.com/heimdex/mlt2fcpx/internal/fsx"
	"github.com/heimdex/mlt2fcpx/internal/mlt"
)

const maxRequestBytes = 1 << 20

func convertHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ConvertRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err := dec.Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if strings.TrimSpace(req.InputPath) == "" {
			WriteError(w, http.StatusBadRequest, "input_path is required", "BAD_REQUEST")
			return
		}
		if !filepath.IsAbs(req.InputPath) {
			WriteError(w, http.StatusBadRequest, "input_path must be absolute", "BAD_REQUEST")
			return
		}
		input := filepath.Clean(req.InputPath)

		format := strings.ToLower(strings.TrimSpace(req.Format))
		if format == "" {
			format = export.FormatFCPXML
		}

		outputDir := req.OutputDir
		if outputDir == "" {
			outputDir = filepath.Dir(input)
		} else if err := export.ValidateOutputDir(outputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		fileName, err := export.OutputFileName(req.OutputName, input, format)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		var name string
		if req.OutputName != "" {
			name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		}

		res, err := cfg.Converter.Convert(r.Context(), convert.Request{
			InputPath:  input,
			OutputPath: filepath.Join(outputDir, fileName),
			Format:     format,
			Name:       name,
		})
		if err != nil {
			status, code := convertErrorStatus(err)
			WriteError(w, status, err.Error(), code)
			return
		}

		WriteJSON(w, http.StatusOK, export.ConvertResponse{
			ID:            res.ID,
			Status:        "ok",
			Format:        res.Format,
			InputPath:     res.InputPath,
			OutputPath:    res.OutputPath,
			ClipCount:     res.ClipCount,
			TrackCount:    res.TrackCount,
			EmbeddedCount: res.EmbeddedCount,
			Bytes:         res.Bytes,
			DurationMs:    res.Duration.Milliseconds(),
		})
	}
}

// convertErrorStatus maps a conversion failure to an HTTP status and code.
// Document problems are 422 and carry the parse error code.
func convertErrorStatus(err error) (int, string) {
	if code := mlt.Code(err); code != "" {
		return http.StatusUnprocessableEntity, code
	}
	switch {
	case errors.Is(err, convert.ErrInvalidRequest):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, convert.ErrInputNotFound):
		return http.StatusNotFound, "INPUT_NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "CANCELLED"
	case fsx.IsPathTypeConflict(err), fsx.IsCrossDevice(err):
		return http.StatusConflict, "OUTPUT_CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
