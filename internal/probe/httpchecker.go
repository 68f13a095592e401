package probe

import (
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPChecker issues a plain GET and reports whether the server answered.
// Used for the general reachability check of the server root.
type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
}

func NewHTTPChecker(connectTimeout, timeout time.Duration, userAgent string) *HTTPChecker {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPChecker{
		Client:    newClient(connectTimeout, timeout),
		UserAgent: userAgent,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", h.UserAgent)

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return CheckResult{
		Name:       "HTTP",
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 400,
		Message:    resp.Status,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
	}
}
