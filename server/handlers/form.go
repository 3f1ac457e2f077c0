package handlers

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/server/middleware"
	"github.com/teilomillet/lucid/server/validation"
	"github.com/teilomillet/lucid/wrapper"
	"go.uber.org/zap"
)

//go:embed templates/form.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/form.html"))

// formView is the data rendered by the form template.
type formView struct {
	Question string
	Docs     string
	Model    string
	DevMode  bool

	Result       *wrapper.Result
	MessagesJSON string
	LogProbsJSON string
	TokenCount   int
	Error        string
}

// FormHandler serves the browser form on GET / and POST /ask.
type FormHandler struct {
	source Source
	logger *zap.Logger
}

// NewFormHandler creates a FormHandler.
func NewFormHandler(source Source, logger *zap.Logger) *FormHandler {
	return &FormHandler{source: source, logger: logger}
}

// Show renders an empty form prefilled with the configured model and mode.
func (h *FormHandler) Show(w http.ResponseWriter, r *http.Request) {
	view := formView{}
	if wr, err := h.source.Current(); err == nil {
		opts := wr.Options()
		view.Model = opts.Model
		view.DevMode = opts.DevMode
	} else {
		view.Error = "configuration unavailable"
	}
	h.render(w, r, http.StatusOK, view)
}

// Ask runs one generation from the submitted form and renders the result
// next to the form. Non-empty pasted context becomes the only context chunk;
// otherwise the configured context is used.
func (h *FormHandler) Ask(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := h.logger.With(zap.String("request_id", requestID))

	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		errors.WriteError(w, errors.NewValidationError(requestID, "Invalid form submission", map[string]interface{}{
			"error": err.Error(),
		}))
		return
	}

	view := formView{
		Question: r.PostForm.Get("question"),
		Docs:     r.PostForm.Get("docs"),
		Model:    strings.TrimSpace(r.PostForm.Get("model")),
		DevMode:  r.PostForm.Get("dev_mode") != "",
	}

	wr, err := h.source.Current()
	if err != nil {
		view.Error = "configuration unavailable"
		h.render(w, r, http.StatusInternalServerError, view)
		return
	}

	devMode := view.DevMode
	call := wrapper.Request{DevMode: &devMode, Model: view.Model}
	if strings.TrimSpace(view.Docs) != "" {
		call.Context = assembly.StaticContext{view.Docs}
	}

	result, err := wr.GenerateWith(r.Context(), view.Question, call)
	if err != nil {
		lerr := generationError(requestID, err)
		errors.LogError(logger, lerr, requestID)
		view.Error = lerr.Message
		h.render(w, r, lerr.Code, view)
		return
	}

	view.Result = result
	view.MessagesJSON = indentJSON(result.Messages)
	view.LogProbsJSON = indentJSON(result.LogProbs)
	if result.Tokens != nil {
		view.TokenCount = *result.Tokens
	}
	if view.Model == "" {
		view.Model = wr.Options().Model
	}
	h.render(w, r, http.StatusOK, view)
}

func (h *FormHandler) render(w http.ResponseWriter, r *http.Request, status int, view formView) {
	var buf strings.Builder
	if err := formTemplate.Execute(&buf, view); err != nil {
		requestID := middleware.GetRequestID(r.Context())
		lerr := errors.NewInternalError(requestID, err)
		errors.LogError(h.logger, lerr, requestID)
		errors.WriteError(w, lerr)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(buf.String()))
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}
