package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

// StatusReader is the read side of the status ledger.
type StatusReader interface {
	Snapshot(ctx context.Context) (ledger.StatusDocument, error)
}

// AlertReader is the read side of the alert ledger.
type AlertReader interface {
	List(ctx context.Context, f ledger.AlertFilter) ([]domain.AlertRecord, error)
}

// TargetReader loads the configured targets.
type TargetReader interface {
	Load(ctx context.Context) ([]domain.Target, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS []string         // IPs allowed to access the API
	TrustProxy   bool             // true if running behind a trusted reverse proxy
	Store        string           // state backend name, reported by readyz
	Ping         func(ctx context.Context) error
	Status       StatusReader
	Alerts       AlertReader
	Targets      TargetReader
	CheckTrigger chan struct{} // manual cycle trigger, nil when the API does not run cycles
}
