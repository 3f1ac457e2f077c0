// Package handlers provides the HTTP handlers of the Lucid web surface: the
// JSON generate API, the browser form and the health check. Every handler
// asks its Source for the wrapper to use, so configuration reloads apply to
// the next request.
package handlers

import (
	"github.com/teilomillet/lucid/wrapper"
)

// Source hands out the wrapper serving the current request.
type Source interface {
	Current() (*wrapper.Wrapper, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*wrapper.Wrapper, error)

func (f SourceFunc) Current() (*wrapper.Wrapper, error) { return f() }

// Static always returns w.
func Static(w *wrapper.Wrapper) Source {
	return SourceFunc(func() (*wrapper.Wrapper, error) { return w, nil })
}
