package probe

import (
	"context"
	"net/url"
	"time"
)

type DNSChecker struct{}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{}
}

func (d *DNSChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	dns := CheckDNS(ctx, extractHost(target))

	return CheckResult{
		Name:      "DNS",
		Success:   dns.Resolvable(),
		Message:   dns.Class,
		LatencyMS: time.Since(start).Seconds() * 1000,
	}
}

// extractHost pulls the hostname from a URL string.
func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
