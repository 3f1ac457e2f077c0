package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/server/middleware"
	"github.com/teilomillet/lucid/server/validation"
	"github.com/teilomillet/lucid/wrapper"
	"go.uber.org/zap"
)

// GenerateHandler serves the JSON API.
type GenerateHandler struct {
	source Source
	logger *zap.Logger
}

// NewGenerateHandler creates a GenerateHandler.
func NewGenerateHandler(source Source, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{source: source, logger: logger}
}

// ServeHTTP decodes and validates the body, runs one generation and writes
// the result record as JSON.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(zap.String("request_id", requestID))

	req, lerr := validation.DecodeGenerate(w, r)
	if lerr != nil {
		logger.Debug("Rejected generate request", zap.String("error_type", string(lerr.Type)), zap.Any("details", lerr.Details))
		errors.WriteError(w, lerr)
		return
	}

	wr, err := h.source.Current()
	if err != nil {
		lerr := errors.NewError(errors.ConfigError, "Configuration unavailable", http.StatusInternalServerError, requestID, nil, err)
		errors.LogError(logger, lerr, requestID)
		errors.WriteError(w, lerr)
		return
	}

	call := wrapper.Request{
		DevMode: req.DevMode,
		Model:   req.Model,
	}
	if req.Context != nil {
		call.Context = assembly.StaticContext(req.Context)
	}

	result, err := wr.GenerateWith(r.Context(), req.Question, call)
	if err != nil {
		lerr := generationError(requestID, err)
		errors.LogError(logger, lerr, requestID)
		errors.WriteError(w, lerr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// generationError maps a wrapper failure to the error envelope: backend
// failures are 502, anything else 500.
func generationError(requestID string, err error) *errors.LucidError {
	var ie *wrapper.InvocationError
	if errors.As(err, &ie) {
		lerr := errors.NewBackendError(requestID, err.Error(), err)
		if ie.Backend != "" {
			lerr.Details = map[string]interface{}{"backend": string(ie.Backend)}
		}
		return lerr
	}
	return errors.NewError(errors.InternalError, err.Error(), http.StatusInternalServerError, requestID, nil, err)
}
