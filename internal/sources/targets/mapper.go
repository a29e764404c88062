package targets

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
)

// statusActive is the only status value that keeps a legacy entry active.
const statusActive = "active"

// MapEntries converts YAML entries into targets. Entries without a URL are
// skipped and counted.
func MapEntries(entries []Entry) (targets []domain.Target, skipped int) {
	targets = make([]domain.Target, 0, len(entries))
	for _, e := range entries {
		url := strings.TrimSpace(e.URL)
		if url == "" {
			skipped++
			continue
		}

		recipients := append([]string{}, e.Recipients...)
		recipients = append(recipients, e.Email...)

		targets = append(targets, domain.Target{
			URL:        url,
			Recipients: recipients,
			Owner:      e.Owner,
			Active:     isActive(e.Active, e.Status),
		})
	}
	return targets, skipped
}

// MapJSON converts a legacy monitors.json array. Each element may carry its
// recipients under "email", "emails" or "recipients", as a string or a list,
// and its owner under "owner" or "user".
func MapJSON(list gjson.Result) (targets []domain.Target, skipped int) {
	list.ForEach(func(_, item gjson.Result) bool {
		url := strings.TrimSpace(item.Get("url").String())
		if !item.IsObject() || url == "" {
			skipped++
			return true
		}

		var recipients []string
		for _, field := range []string{"email", "emails", "recipients"} {
			recipients = append(recipients, stringList(item.Get(field))...)
		}

		owner := item.Get("owner").String()
		if owner == "" {
			owner = item.Get("user").String()
		}

		var active *bool
		if v := item.Get("active"); v.Exists() {
			b := v.Bool()
			active = &b
		}

		targets = append(targets, domain.Target{
			URL:        url,
			Recipients: recipients,
			Owner:      owner,
			Active:     isActive(active, item.Get("status").String()),
		})
		return true
	})
	return targets, skipped
}

func stringList(v gjson.Result) []string {
	if !v.Exists() {
		return nil
	}
	if v.IsArray() {
		var out []string
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := strings.TrimSpace(v.String()); s != "" {
		return []string{s}
	}
	return nil
}

// isActive applies the precedence: explicit active flag, then status
// ("active" or absent means active).
func isActive(active *bool, status string) bool {
	if active != nil {
		return *active
	}
	status = strings.TrimSpace(status)
	return status == "" || strings.EqualFold(status, statusActive)
}
