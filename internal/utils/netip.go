package utils

import (
	"net/http"
	"net/netip"
	"strings"
)

// AllowList holds the prefixes allowed to reach the status API. Bare
// addresses are stored as single-host prefixes.
type AllowList struct {
	prefixes []netip.Prefix
}

// NewAllowList parses entries such as "10.0.0.0/8" or "127.0.0.1". Entries
// that are neither are returned in rejected.
func NewAllowList(entries []string) (list AllowList, rejected []string) {
	for _, raw := range entries {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			list.prefixes = append(list.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			a = a.Unmap()
			list.prefixes = append(list.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		rejected = append(rejected, s)
	}
	return list, rejected
}

func (l AllowList) Empty() bool { return len(l.prefixes) == 0 }

// Contains reports whether addr falls in any prefix. An invalid addr never
// matches.
func (l AllowList) Contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves the caller's address. With trustProxy the left-most
// X-Forwarded-For hop, then X-Real-IP, take precedence over RemoteAddr.
// The zero Addr is returned when nothing parses.
func ClientIP(r *http.Request, trustProxy bool) netip.Addr {
	if trustProxy {
		xff, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		for _, v := range []string{xff, r.Header.Get("X-Real-IP")} {
			if a, ok := parseHost(v); ok {
				return a
			}
		}
	}
	a, _ := parseHost(r.RemoteAddr)
	return a
}

// parseHost accepts "ip", "ip:port" and "[v6]:port".
func parseHost(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	if a, err := netip.ParseAddr(strings.Trim(s, "[]")); err == nil {
		return a.Unmap(), true
	}
	return netip.Addr{}, false
}
