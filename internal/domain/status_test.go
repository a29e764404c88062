package domain

import (
	"testing"
	"time"
)

func TestStatusRecordValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		record  StatusRecord
		wantErr bool
	}{
		{
			name:   "up record",
			record: StatusRecord{Status: StatusUp, LastChecked: now, LatencyMS: 12.5},
		},
		{
			name:   "down record",
			record: StatusRecord{Status: StatusDown, LastChecked: now, Detail: "FAIL: HTTP 500"},
		},
		{
			name:    "unknown status",
			record:  StatusRecord{Status: "sideways", LastChecked: now},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			record:  StatusRecord{Status: StatusUp},
			wantErr: true,
		},
		{
			name:    "negative latency",
			record:  StatusRecord{Status: StatusUp, LastChecked: now, LatencyMS: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewStatusRecord(t *testing.T) {
	code := 503
	at := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	rec := NewStatusRecord(CheckResult{
		TargetURL:  "https://example.com",
		Reachable:  false,
		HTTPStatus: &code,
		LatencyMS:  42.1,
		Detail:     "FAIL: HTTP 503",
		CheckedAt:  at,
	})

	if rec.Status != StatusDown {
		t.Errorf("Status = %q, want %q", rec.Status, StatusDown)
	}
	if !rec.LastChecked.Equal(at) {
		t.Errorf("LastChecked = %v, want %v", rec.LastChecked, at)
	}
	if rec.HTTPStatus == nil || *rec.HTTPStatus != 503 {
		t.Errorf("HTTPStatus = %v, want 503", rec.HTTPStatus)
	}
}

func TestAlertRecordValidate(t *testing.T) {
	now := time.Now()
	base := AlertRecord{
		ID:        "a1",
		TargetURL: "https://example.com",
		Recipient: "ops@example.com",
		OpenedAt:  now,
		State:     AlertActive,
	}

	resolved := base
	resolved.State = AlertResolved
	resolved.ResolvedAt = &now

	activeWithResolvedAt := base
	activeWithResolvedAt.ResolvedAt = &now

	resolvedWithoutTime := base
	resolvedWithoutTime.State = AlertResolved

	noEmail := base
	noEmail.Recipient = ""

	tests := []struct {
		name    string
		record  AlertRecord
		wantErr bool
	}{
		{"active", base, false},
		{"resolved", resolved, false},
		{"active with resolved_at", activeWithResolvedAt, true},
		{"resolved without resolved_at", resolvedWithoutTime, true},
		{"missing email", noEmail, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
