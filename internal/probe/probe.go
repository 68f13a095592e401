// Package probe talks to the remote repository: full transfers, metadata-only
// existence checks, and general host reachability checks.
package probe

import (
	"context"
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "shardprobe/1.0"

// CheckResult is the unified result of a single reachability check.
//
// Fields:
//   - StatusCode: HTTP status code when available; 0 for transport/DNS errors.
//   - Name: label of the checker that produced it ("HTTP", "DNS").
type CheckResult struct {
	Name       string  `json:"name"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
}

// Checker performs a single check for a given target URL.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}

// newClient builds a client whose dialer is bounded by connectTimeout and
// whose whole exchange (headers and body) is bounded by timeout.
// Keep-alives are off so every attempt establishes its own connection.
func newClient(connectTimeout, timeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		DisableKeepAlives:   true,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func is2xx(code int) bool { return code >= 200 && code < 300 }
