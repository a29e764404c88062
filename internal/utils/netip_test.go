package utils

import (
	"net/http/httptest"
	"net/netip"
	"reflect"
	"testing"
)

func TestAllowList(t *testing.T) {
	list, rejected := NewAllowList([]string{"10.0.0.0/8", " 127.0.0.1 ", "::1", "not-an-ip", ""})
	if !reflect.DeepEqual(rejected, []string{"not-an-ip"}) {
		t.Fatalf("rejected = %v, want [not-an-ip]", rejected)
	}

	tests := []struct {
		addr string
		want bool
	}{
		{"10.1.2.3", true},
		{"127.0.0.1", true},
		{"127.0.0.2", false},
		{"::1", true},
		{"::ffff:10.9.9.9", true},
		{"192.168.1.1", false},
	}
	for _, tt := range tests {
		if got := list.Contains(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}

	if list.Contains(netip.Addr{}) {
		t.Error("Contains(invalid) = true")
	}
}

func TestAllowListEmpty(t *testing.T) {
	list, _ := NewAllowList(nil)
	if !list.Empty() {
		t.Error("Empty() = false for no entries")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		xff        string
		realIP     string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", "", "", false, "192.0.2.1"},
		{"ipv6 remote addr", "[2001:db8::1]:443", "", "", false, "2001:db8::1"},
		{"untrusted proxy headers ignored", "192.0.2.1:1234", "10.0.0.1", "10.0.0.2", false, "192.0.2.1"},
		{"first forwarded hop", "127.0.0.1:80", "10.0.0.1, 172.16.0.1", "", true, "10.0.0.1"},
		{"real ip fallback", "127.0.0.1:80", "garbage", "10.0.0.2", true, "10.0.0.2"},
		{"remote when headers empty", "127.0.0.1:80", "", "", true, "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/status", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(r, tt.trustProxy); got.String() != tt.want {
				t.Errorf("ClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}
