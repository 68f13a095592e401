package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/shardprobe/internal/domain"
)

// Connectivity runs the DNS and HTTP checkers against the server root. The
// host counts as reachable when the HTTP checker got any status line back,
// whatever the code.
type Connectivity struct {
	DNS  Checker
	HTTP Checker
}

func NewConnectivity(connectTimeout, timeout time.Duration, userAgent string) *Connectivity {
	return &Connectivity{
		DNS:  NewDNSChecker(),
		HTTP: NewHTTPChecker(connectTimeout, timeout, userAgent),
	}
}

func (c *Connectivity) Check(ctx context.Context, root string) domain.Connectivity {
	if !strings.Contains(root, "://") {
		root = "http://" + root
	}
	out := domain.Connectivity{Host: extractHost(root), CheckedAt: time.Now().UTC()}

	target := strings.TrimRight(root, "/") + "/"
	dns, web := c.DNS.Check(ctx, target), c.HTTP.Check(ctx, target)

	out.DNSClass = dns.Message
	out.HTTPStatus = web.StatusCode
	out.Latency = time.Duration(web.LatencyMS * float64(time.Millisecond))
	out.Reachable = web.StatusCode != 0
	if out.Reachable {
		out.Message = web.Message
	} else {
		out.Message = fmt.Sprintf("http: %s (dns=%s)", web.Message, dns.Message)
	}
	return out
}
