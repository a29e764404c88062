package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
			http.Error(w, "bad user agent "+ua, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/notfound", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/not-modified", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProberCheck(t *testing.T) {
	srv := newTestServer(t)
	p := New(Options{Timeout: 300 * time.Millisecond})

	tests := []struct {
		name       string
		path       string
		wantUp     bool
		wantCode   int // 0 means no HTTP response
		wantDetail string
	}{
		{"success", "/ok", true, 200, "SUCCESS: HTTP 200"},
		{"followed redirect", "/moved", true, 200, "SUCCESS: HTTP 200"},
		{"unfollowed 3xx", "/not-modified", true, 304, "SUCCESS: HTTP 304 (redirect)"},
		{"server error", "/fail", false, 500, "FAIL: HTTP 500"},
		{"not found", "/notfound", false, 404, "FAIL: HTTP 404"},
		{"redirect loop", "/loop", false, 0, "CONNECTION ERROR: maximum (5) redirects followed"},
		{"timeout", "/slow", false, 0, "CONNECTION ERROR: operation timed out after 300ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Check(context.Background(), srv.URL+tt.path)

			if res.Reachable != tt.wantUp {
				t.Errorf("Reachable = %v, want %v (detail %q)", res.Reachable, tt.wantUp, res.Detail)
			}
			if res.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", res.Detail, tt.wantDetail)
			}
			switch {
			case tt.wantCode == 0 && res.HTTPStatus != nil:
				t.Errorf("HTTPStatus = %d, want nil", *res.HTTPStatus)
			case tt.wantCode != 0 && (res.HTTPStatus == nil || *res.HTTPStatus != tt.wantCode):
				t.Errorf("HTTPStatus = %v, want %d", res.HTTPStatus, tt.wantCode)
			}
			if res.LatencyMS < 0 {
				t.Errorf("LatencyMS = %v, want >= 0", res.LatencyMS)
			}
			if res.TargetURL != srv.URL+tt.path {
				t.Errorf("TargetURL = %q", res.TargetURL)
			}
		})
	}
}

func TestProberInvalidURLs(t *testing.T) {
	p := New(Options{Timeout: 200 * time.Millisecond})

	for _, raw := range []string{"", "ftp://example.com/file", "http://", "://bad"} {
		res := p.Check(context.Background(), raw)
		if res.Reachable {
			t.Errorf("Check(%q) reachable, want down", raw)
		}
		if !strings.HasPrefix(res.Detail, "CONNECTION ERROR: ") {
			t.Errorf("Check(%q) detail = %q", raw, res.Detail)
		}
	}
}

func TestProberConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := New(Options{Timeout: time.Second}).Check(context.Background(), addr)
	if res.Reachable {
		t.Fatal("closed server reported reachable")
	}
	if !strings.HasPrefix(res.Detail, "CONNECTION ERROR: ") {
		t.Errorf("Detail = %q", res.Detail)
	}
	if strings.Contains(res.Detail, "Get \"") {
		t.Errorf("Detail should not carry the request wrapper: %q", res.Detail)
	}
}

func TestProberUsesClock(t *testing.T) {
	srv := newTestServer(t)
	fixed := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	p := New(Options{Now: func() time.Time { return fixed }})

	if got := p.Check(context.Background(), srv.URL+"/ok").CheckedAt; !got.Equal(fixed) {
		t.Errorf("CheckedAt = %v, want %v", got, fixed)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code   int
		up     bool
		detail string
	}{
		{200, true, "SUCCESS: HTTP 200"},
		{299, true, "SUCCESS: HTTP 299"},
		{301, true, "SUCCESS: HTTP 301 (redirect)"},
		{399, true, "SUCCESS: HTTP 399 (redirect)"},
		{199, false, "FAIL: HTTP 199"},
		{400, false, "FAIL: HTTP 400"},
		{503, false, "FAIL: HTTP 503"},
	}
	for _, tt := range tests {
		up, detail := Classify(tt.code)
		if up != tt.up || detail != tt.detail {
			t.Errorf("Classify(%d) = (%v, %q), want (%v, %q)", tt.code, up, detail, tt.up, tt.detail)
		}
	}
}

func TestLatencyRounding(t *testing.T) {
	if got := latencyMS(1234567 * time.Nanosecond); got != 1.23 {
		t.Errorf("latencyMS = %v, want 1.23", got)
	}
}
