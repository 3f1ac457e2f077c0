// Package validation decodes and validates request bodies of the JSON API,
// producing error envelopes with one detail per failing field.
package validation

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/server/middleware"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GenerateRequest is the body of POST /v1/generate. The question and the
// context chunks are passed through unvalidated, empty included; only
// MaxBodyBytes bounds their size.
type GenerateRequest struct {
	Question string `json:"question"`

	// Model overrides the configured model
	Model string `json:"model" validate:"omitempty,max=256,printascii"`

	// DevMode overrides the configured mode when set
	DevMode *bool `json:"dev_mode"`

	// Context replaces the configured context when present. An empty list
	// sends no context at all.
	Context []string `json:"context"`
}

// ValidationErrorDetail describes one failing field.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Value   string `json:"value,omitempty"`
}

// DecodeGenerate reads a GenerateRequest from r. Malformed requests yield a
// 400 envelope; well-formed requests with invalid fields a 422 envelope.
func DecodeGenerate(w http.ResponseWriter, r *http.Request) (*GenerateRequest, *errors.LucidError) {
	requestID := middleware.GetRequestID(r.Context())

	ct := r.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(ct); err != nil || mediaType != "application/json" {
		return nil, errors.NewValidationError(requestID, "Invalid or missing Content-Type header", map[string]interface{}{
			"errors": []ValidationErrorDetail{{
				Field:   "header:Content-Type",
				Message: "Content-Type must be application/json",
				Code:    "invalid_content_type",
				Value:   ct,
			}},
		})
	}

	var req GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, errors.NewValidationError(requestID, "Invalid request format", map[string]interface{}{
			"errors": []ValidationErrorDetail{{
				Field:   "body",
				Message: err.Error(),
				Code:    "invalid_json",
			}},
		})
	}

	if err := validate.Struct(req); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, errors.NewInternalError(requestID, err)
		}
		details := make([]ValidationErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			detail := ValidationErrorDetail{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %s validation", fe.Tag()),
				Code:    fmt.Sprintf("%s_validation_failed", fe.Tag()),
			}
			if s, ok := fe.Value().(string); ok && len(s) <= 256 {
				detail.Value = s
			}
			details = append(details, detail)
		}
		return nil, errors.NewError(errors.ValidationError, "Request validation failed",
			http.StatusUnprocessableEntity, requestID, map[string]interface{}{"errors": details}, nil)
	}

	return &req, nil
}
