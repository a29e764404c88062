// Package probe performs the single bounded HTTP GET that decides whether a
// target is up, and turns its outcome into a domain.CheckResult.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "Uptime Monitor/1.0"

	// maxBodyBytes bounds how much of a response body is read and discarded.
	maxBodyBytes = 1 << 20
)

// Options configures a Prober. Zero values fall back to the defaults.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	TLSConfig    *tls.Config
	Now          func() time.Time
}

// Prober checks URLs. It is safe for concurrent use.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	now       func() time.Time
}

// New builds a Prober with its own HTTP client. Keep-alives are disabled so
// every check measures a fresh connection.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tlsCfg := opts.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	maxRedirects := opts.MaxRedirects
	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 0,
			}).DialContext,
			TLSHandshakeTimeout:   opts.Timeout,
			ResponseHeaderTimeout: opts.Timeout,
			TLSClientConfig:       tlsCfg,
			DisableKeepAlives:     true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("maximum (%d) redirects followed", maxRedirects)
			}
			return nil
		},
	}

	return &Prober{
		client:    client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		now:       opts.Now,
	}
}

// Check probes rawURL once. It never returns an error: every failure is
// folded into an unreachable CheckResult.
func (p *Prober) Check(ctx context.Context, rawURL string) (result domain.CheckResult) {
	start := time.Now()
	result = domain.CheckResult{TargetURL: rawURL, CheckedAt: p.now()}

	defer func() {
		if r := recover(); r != nil {
			result.Reachable = false
			result.HTTPStatus = nil
			result.Detail = connectionError(fmt.Sprintf("internal error: %v", r))
		}
		result.LatencyMS = latencyMS(time.Since(start))
	}()

	if err := validateURL(rawURL); err != nil {
		result.Detail = connectionError(err.Error())
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		result.Detail = connectionError(err.Error())
		return result
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		result.Detail = connectionError(describe(err, p.timeout))
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	code := resp.StatusCode
	result.HTTPStatus = &code

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		result.Detail = connectionError(describe(err, p.timeout))
		return result
	}

	result.Reachable, result.Detail = Classify(code)
	return result
}

// Classify maps an HTTP status code onto reachability and its detail line.
func Classify(code int) (bool, string) {
	switch {
	case code >= 200 && code < 300:
		return true, fmt.Sprintf("SUCCESS: HTTP %d", code)
	case code >= 300 && code < 400:
		return true, fmt.Sprintf("SUCCESS: HTTP %d (redirect)", code)
	default:
		return false, fmt.Sprintf("FAIL: HTTP %d", code)
	}
}

func connectionError(cause string) string {
	return "CONNECTION ERROR: " + cause
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("protocol %q not supported", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("no host in url")
	}
	return nil
}

// describe strips the "Get <url>:" wrapper and normalizes timeouts.
func describe(err error, timeout time.Duration) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("operation timed out after %s", timeout)
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	msg := err.Error()
	if msg == "" {
		return "unknown error"
	}
	return strings.TrimSpace(msg)
}

// latencyMS converts d to milliseconds rounded to two decimals.
func latencyMS(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
