package handlers

import (
	"encoding/json"
	"net/http"
)

// Health reports liveness and the configured model.
func Health(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if wr, err := source.Current(); err == nil {
			opts := wr.Options()
			body["model"] = opts.Model
			body["backend"] = string(opts.Backend)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}
