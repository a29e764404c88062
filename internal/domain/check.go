package domain

import "time"

// CheckResult is the outcome of one probe. It lives for a single cycle.
type CheckResult struct {
	TargetURL  string
	Reachable  bool
	HTTPStatus *int // nil when no HTTP response was received
	LatencyMS  float64
	Detail     string
	CheckedAt  time.Time
}

// Status maps the result onto the persisted up/down vocabulary.
func (r CheckResult) Status() Status {
	if r.Reachable {
		return StatusUp
	}
	return StatusDown
}
