package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

type targetStatus struct {
	URL         string     `json:"url"`
	Active      bool       `json:"active"`
	Status      string     `json:"status"`
	HTTPStatus  *int       `json:"http_status,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	LatencyMS   float64    `json:"latency_ms,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

type statusResponse struct {
	Up      int            `json:"up"`
	Down    int            `json:"down"`
	Unknown int            `json:"unknown"`
	Targets []targetStatus `json:"targets"`
}

// Status joins the configured targets with their last recorded status.
// Targets never checked are reported as "unknown".
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := d.Status.Snapshot(r.Context())
		if err != nil {
			d.Logger.Error("failed to read status ledger", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "status unavailable")
			return
		}
		targets, err := d.Targets.Load(r.Context())
		if err != nil {
			d.Logger.Error("failed to load targets", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "targets unavailable")
			return
		}

		resp := statusResponse{Targets: make([]targetStatus, 0, len(targets))}
		seen := make(map[string]bool, len(targets))
		for _, t := range targets {
			if seen[t.URL] {
				continue
			}
			seen[t.URL] = true

			ts := targetStatus{URL: t.URL, Active: t.Active, Status: "unknown"}
			if rec, ok := doc[t.URL]; ok {
				checked := rec.LastChecked
				ts.Status = string(rec.Status)
				ts.HTTPStatus = rec.HTTPStatus
				ts.Detail = rec.Detail
				ts.LatencyMS = rec.LatencyMS
				ts.LastChecked = &checked
			}
			switch ts.Status {
			case string(domain.StatusUp):
				resp.Up++
			case string(domain.StatusDown):
				resp.Down++
			default:
				resp.Unknown++
			}
			resp.Targets = append(resp.Targets, ts)
		}
		sort.Slice(resp.Targets, func(i, j int) bool { return resp.Targets[i].URL < resp.Targets[j].URL })

		writeJSON(w, http.StatusOK, resp)
	}
}
