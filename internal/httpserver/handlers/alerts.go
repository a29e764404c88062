package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

type alertsResponse struct {
	Count  int                  `json:"count"`
	Alerts []domain.AlertRecord `json:"alerts"`
}

// Alerts lists alert records, filtered by the state, url and email query
// parameters.
func Alerts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := ledger.AlertFilter{
			TargetURL: q.Get("url"),
			Recipient: q.Get("email"),
		}
		switch s := domain.AlertState(q.Get("state")); s {
		case "", "all":
		case domain.AlertActive, domain.AlertResolved:
			f.State = s
		default:
			writeError(w, http.StatusBadRequest, "state must be active, resolved or all")
			return
		}

		alerts, err := d.Alerts.List(r.Context(), f)
		if err != nil {
			d.Logger.Error("failed to read alert ledger", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "alerts unavailable")
			return
		}
		if alerts == nil {
			alerts = []domain.AlertRecord{}
		}
		writeJSON(w, http.StatusOK, alertsResponse{Count: len(alerts), Alerts: alerts})
	}
}
