// Package api defines the HTTP API of the quilt server: request and response
// types and a chi router that binds query parameters before dispatching to a
// ServerInterface.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Defines values for HealthResponseStatus.
const (
	Healthy HealthResponseStatus = "healthy"
)

// Defines values for OutputFormat.
const (
	Bmp  OutputFormat = "bmp"
	Jpeg OutputFormat = "jpeg"
	Png  OutputFormat = "png"
)

// Error codes returned in ErrorResponse.Error.
const (
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeInvalidImage      = "INVALID_IMAGE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeTimeout           = "TIMEOUT"
	CodeInternalError     = "INTERNAL_ERROR"
)

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// OutputFormat defines the encoding of the synthesized image.
type OutputFormat string

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Uptime    *int                 `json:"uptime,omitempty"`
	Version   *string              `json:"version,omitempty"`
}

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
	Details   *map[string]interface{} `json:"details,omitempty"`
}

// CreateQuiltParams defines parameters for CreateQuilt.
type CreateQuiltParams struct {
	Width     int           `form:"width" json:"width"`
	Height    int           `form:"height" json:"height"`
	TileW     int           `form:"tileW" json:"tileW"`
	TileH     int           `form:"tileH" json:"tileH"`
	SeamW     *int          `form:"seamW,omitempty" json:"seamW,omitempty"`
	SeamH     *int          `form:"seamH,omitempty" json:"seamH,omitempty"`
	MseSelect *bool         `form:"mseSelect,omitempty" json:"mseSelect,omitempty"`
	MinCut    *bool         `form:"minCut,omitempty" json:"minCut,omitempty"`
	Tolerance *float64      `form:"tolerance,omitempty" json:"tolerance,omitempty"`
	Seed      *int64        `form:"seed,omitempty" json:"seed,omitempty"`
	Format    *OutputFormat `form:"format,omitempty" json:"format,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Service health
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Synthesize a texture from the image in the request body
	// (POST /quilt)
	CreateQuilt(w http.ResponseWriter, r *http.Request, params CreateQuiltParams)
}

// InvalidParamFormatError is passed to the error handler when a query
// parameter is missing or cannot be parsed.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper converts requests into handler calls.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetHealth(w, r)
}

// CreateQuilt operation middleware
func (siw *ServerInterfaceWrapper) CreateQuilt(w http.ResponseWriter, r *http.Request) {
	var params CreateQuiltParams
	query := r.URL.Query()

	bindings := []struct {
		name     string
		required bool
		dest     interface{}
	}{
		{"width", true, &params.Width},
		{"height", true, &params.Height},
		{"tileW", true, &params.TileW},
		{"tileH", true, &params.TileH},
		{"seamW", false, &params.SeamW},
		{"seamH", false, &params.SeamH},
		{"mseSelect", false, &params.MseSelect},
		{"minCut", false, &params.MinCut},
		{"tolerance", false, &params.Tolerance},
		{"seed", false, &params.Seed},
		{"format", false, &params.Format},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, b.required, b.name, query, b.dest); err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: b.name, Err: err})
			return
		}
	}

	siw.Handler.CreateQuilt(w, r, params)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	r.Post(options.BaseURL+"/quilt", wrapper.CreateQuilt)

	return r
}
