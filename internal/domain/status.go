package domain

import (
	"fmt"
	"time"
)

// Status is the last observed reachability of a target.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// StatusRecord is the persisted last-known state of one URL.
type StatusRecord struct {
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	LatencyMS   float64   `json:"latency_ms"`
	Detail      string    `json:"detail"`
	HTTPStatus  *int      `json:"http_status,omitempty"`
}

// NewStatusRecord builds the record persisted after a probe.
func NewStatusRecord(r CheckResult) StatusRecord {
	return StatusRecord{
		Status:      r.Status(),
		LastChecked: r.CheckedAt,
		LatencyMS:   r.LatencyMS,
		Detail:      r.Detail,
		HTTPStatus:  r.HTTPStatus,
	}
}

// Validate rejects records that could not have been written by the engine.
func (s StatusRecord) Validate() error {
	if s.Status != StatusUp && s.Status != StatusDown {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if s.LastChecked.IsZero() {
		return fmt.Errorf("missing last_checked")
	}
	if s.LatencyMS < 0 {
		return fmt.Errorf("negative latency %v", s.LatencyMS)
	}
	return nil
}
