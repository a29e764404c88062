package domain

import "strings"

// Target represents a monitored URL and the people who want to hear about it.
//
// It is NOT tied to monitors.json, YAML or any external source.
// All inputs are mapped into this structure by the target source.
//
// A Target is identified by (URL, Recipients, Owner). The engine never
// mutates a Target; only the external configuration does.
type Target struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// URL is the http(s) endpoint probed every cycle.
	URL string

	// Recipients holds the notification addresses as registered.
	// Each entry may itself be a delimited list ("a@x.com; b@x.com").
	Recipients []string

	// Owner is the account that registered the target.
	Owner string

	// ─────────────────────────────
	// Scheduling
	// ─────────────────────────────

	// Active=false means the target is skipped entirely:
	// no probe, no status write, no notification.
	Active bool
}

// Key returns a stable identity string for the target.
func (t Target) Key() string {
	return t.URL + "|" + strings.Join(t.Recipients, ",") + "|" + t.Owner
}

// ActiveTargets filters the active targets, preserving order.
func ActiveTargets(all []Target) []Target {
	active := make([]Target, 0, len(all))
	for _, t := range all {
		if t.Active {
			active = append(active, t)
		}
	}
	return active
}
