package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/uptimer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

type checkResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Check asks the in-process scheduler to run a cycle now.
func Check(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.CheckTrigger <- struct{}{}:
			d.Logger.Info("manual check triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, checkResponse{Triggered: true, Message: "check triggered"})
		default:
			d.Logger.Warn("check already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, checkResponse{Message: "check already pending, please wait"})
		}
	}
}
