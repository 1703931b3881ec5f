package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kiesman99/quilt/internal/api"
	"github.com/kiesman99/quilt/internal/quilt"
	"github.com/kiesman99/quilt/pkg/texture"
)

// Default request limits
const (
	DefaultMaxUploadBytes  = 32 << 20
	DefaultMaxPixels       = 4096 * 4096
	DefaultMaxSourcePixels = 2048 * 2048
)

// Limits bounds the work a single request may ask for
type Limits struct {
	// MaxUploadBytes caps the size of the source image body.
	MaxUploadBytes int64
	// MaxPixels caps width*height of the synthesized texture.
	MaxPixels int
	// MaxSourcePixels caps width*height of the decoded source image.
	MaxSourcePixels int
	// Timeout bounds a single synthesis; zero means no deadline beyond the
	// client connection.
	Timeout time.Duration
	// Workers bounds candidate evaluation goroutines per request.
	Workers int
}

// Server implements the ServerInterface from the api package
type Server struct {
	startTime time.Time
	version   string
	limits    Limits
}

// NewServer creates a new server instance. Zero limits take the defaults.
func NewServer(version string, limits Limits) *Server {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if limits.MaxPixels <= 0 {
		limits.MaxPixels = DefaultMaxPixels
	}
	if limits.MaxSourcePixels <= 0 {
		limits.MaxSourcePixels = DefaultMaxSourcePixels
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		limits:    limits,
	}
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encoding health response", "err", err)
	}
}

// CreateQuilt implements the synthesis endpoint. The request body is the
// source image; the response body is the encoded texture.
func (s *Server) CreateQuilt(w http.ResponseWriter, r *http.Request, params api.CreateQuiltParams) {
	requestID := uuid.NewString()

	qparams, err := s.convertToParams(&params)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), &requestID, nil)
		return
	}

	format := texture.FormatPNG
	if params.Format != nil {
		format, err = texture.ParseFormat(string(*params.Format))
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, api.CodeUnsupportedFormat, err.Error(), &requestID, nil)
			return
		}
	}

	body := http.MaxBytesReader(w, r.Body, s.limits.MaxUploadBytes)
	source, _, err := texture.DecodeLimited(body, s.limits.MaxSourcePixels)
	if err != nil {
		message := "Request body is not a decodable image"
		if errors.Is(err, texture.ErrImageTooLarge) {
			message = "Source image too large"
		}
		s.writeErrorResponse(w, http.StatusBadRequest, api.CodeInvalidImage,
			message, &requestID, map[string]interface{}{
				"reason": err.Error(),
			})
		return
	}

	seed := rand.Uint64()
	if params.Seed != nil {
		seed = uint64(*params.Seed)
	}

	q, err := quilt.New(qparams, quilt.WithSeed(seed), quilt.WithWorkers(s.limits.Workers))
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), &requestID, nil)
		return
	}

	ctx := r.Context()
	if s.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.Timeout)
		defer cancel()
	}

	out, err := q.Quilt(ctx, source, params.Width, params.Height)
	if err != nil {
		s.handleQuiltError(w, err, &requestID)
		return
	}

	var encoded bytes.Buffer
	if err := texture.Encode(&encoded, out, format, nil); err != nil {
		slog.Error("encoding texture", "request_id", requestID, "err", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, api.CodeInternalError,
			"Internal server error", &requestID, nil)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Quilt-Seed", strconv.FormatUint(seed, 10))
	w.Header().Set("Content-Length", strconv.Itoa(encoded.Len()))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded.Bytes()); err != nil {
		slog.Error("writing response", "request_id", requestID, "err", err)
	}
}

// convertToParams validates the request and converts it to engine parameters
func (s *Server) convertToParams(req *api.CreateQuiltParams) (quilt.Params, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return quilt.Params{}, fmt.Errorf("width and height must be positive")
	}
	// Compare by division so huge dimensions cannot wrap the product.
	if req.Width > s.limits.MaxPixels/req.Height {
		return quilt.Params{}, fmt.Errorf("requested texture too large: %dx%d exceeds %d pixels",
			req.Width, req.Height, s.limits.MaxPixels)
	}
	if req.TileW <= 0 || req.TileH <= 0 {
		return quilt.Params{}, fmt.Errorf("tileW and tileH must be positive")
	}

	p := quilt.DefaultParams(req.TileW, req.TileH)
	if req.SeamW != nil {
		p.SeamWidth = *req.SeamW
	}
	if req.SeamH != nil {
		p.SeamHeight = *req.SeamH
	}
	if req.MseSelect != nil {
		p.MSESelection = *req.MseSelect
	}
	if req.MinCut != nil {
		p.MinCut = *req.MinCut
	}
	if req.Tolerance != nil {
		p.Tolerance = *req.Tolerance
	}

	if err := p.Validate(); err != nil {
		return quilt.Params{}, err
	}
	return p, nil
}

// handleQuiltError maps engine errors to responses
func (s *Server) handleQuiltError(w http.ResponseWriter, err error, requestID *string) {
	switch {
	case errors.Is(err, quilt.ErrSourceTooSmall), errors.Is(err, quilt.ErrInvalidTarget):
		s.writeErrorResponse(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), requestID, nil)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, api.CodeTimeout,
			"Texture synthesis timed out", requestID, nil)
	default:
		slog.Error("quilting failed", "request_id", *requestID, "err", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, api.CodeInternalError,
			"Internal server error", requestID, nil)
	}
}

// HandleParamError writes the response for query parameters that are
// missing or malformed. It is installed as the api error handler.
func (s *Server) HandleParamError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := uuid.NewString()
	var details map[string]interface{}
	var perr *api.InvalidParamFormatError
	if errors.As(err, &perr) {
		details = map[string]interface{}{"parameter": perr.ParamName}
	}
	s.writeErrorResponse(w, http.StatusBadRequest, api.CodeInvalidParameter, err.Error(), &requestID, details)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != nil {
		w.Header().Set("X-Request-ID", *requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
