package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/shard"
)

// Prober issues metadata-only requests to learn which variant the server
// serves for a key. It never writes local files.
type Prober struct {
	Client    *http.Client
	UserAgent string
	Root      string
	Suffix    string
}

func NewProber(root, suffix string, connectTimeout, timeout time.Duration, userAgent string) *Prober {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Prober{
		Client:    newClient(connectTimeout, timeout),
		UserAgent: userAgent,
		Root:      root,
		Suffix:    suffix,
	}
}

// Probe checks key under every variant, one request after another.
func (p *Prober) Probe(ctx context.Context, key domain.ResourceKey, variants []domain.PathVariant) map[domain.PathVariant]domain.ExistenceResult {
	out := make(map[domain.PathVariant]domain.ExistenceResult, len(variants))
	for _, v := range variants {
		rt, err := shard.Resolve(p.Root, key, v, p.Suffix, "")
		if err != nil {
			out[v] = domain.ExistenceResult{Key: key, Variant: v, Class: domain.Unreachable, Diagnostic: err.Error()}
			continue
		}
		out[v] = p.Check(ctx, rt)
	}
	return out
}

// Check sends HEAD to the target URL. Servers that refuse HEAD get a ranged
// GET for a single byte instead, with the body discarded.
func (p *Prober) Check(ctx context.Context, t domain.ResolvedTarget) domain.ExistenceResult {
	res := domain.ExistenceResult{Key: t.Key, Variant: t.Variant, URL: t.URL, Method: http.MethodHead}
	start := time.Now()

	resp, err := p.do(ctx, http.MethodHead, t.URL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		resp.Body.Close()
		res.Method = http.MethodGet
		resp, err = p.do(ctx, http.MethodGet, t.URL)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Class = domain.Unreachable
		res.Diagnostic = string(classifyTransport(err)) + ": " + err.Error()
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	res.HTTPStatus = resp.StatusCode
	res.StatusLine = resp.Proto + " " + resp.Status
	res.Class = classifyStatus(resp.StatusCode)
	return res
}

func (p *Prober) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.UserAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	return p.Client.Do(req)
}

func classifyStatus(code int) domain.ExistenceClass {
	switch {
	case is2xx(code), code == http.StatusRequestedRangeNotSatisfiable:
		return domain.Exists
	case code >= 400 && code < 500:
		return domain.NotFound
	default:
		return domain.Unreachable
	}
}
