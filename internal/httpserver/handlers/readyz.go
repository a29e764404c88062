package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

const readyTimeout = 2 * time.Second

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Store string `json:"store,omitempty"`
	Error string `json:"error,omitempty"`
}

// Readyz reports whether the state backend answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Ping == nil {
			writeJSON(w, http.StatusOK, readyzResponse{Ready: true, Store: d.Store})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := d.Ping(ctx); err != nil {
			d.Logger.Warn("readiness check failed", logger.String("store", d.Store), logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Store: d.Store, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true, Store: d.Store})
	}
}
