package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hamed0406/shardprobe/internal/domain"
)

// FetchRequest describes one transfer. With CreateDirs the destination's
// parents are created only once a 2xx answer has arrived; otherwise they must
// already exist.
type FetchRequest struct {
	URL        string
	Dest       string
	CreateDirs bool
}

type FetchResult struct {
	Status     int
	StatusLine string
	Bytes      int64
	SHA256     string
	Attempts   int
}

// Fetcher downloads a URL into a local file under a connect timeout, an
// overall timeout and a bounded retry count.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Retry     Retry
}

func NewFetcher(connectTimeout, timeout time.Duration, retries int, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		Client:    newClient(connectTimeout, timeout),
		UserAgent: userAgent,
		Retry:     Retry{Retries: retries},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	var res FetchResult
	attempts, err := f.Retry.Do(ctx, func(int) (bool, error) {
		var retryable bool
		var err error
		res, retryable, err = f.once(ctx, req)
		return retryable, err
	})
	res.Attempts = attempts
	return res, err
}

func (f *Fetcher) once(ctx context.Context, fr FetchRequest) (FetchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fr.URL, nil)
	if err != nil {
		return FetchResult{}, false, &FetchError{Kind: domain.ErrConnection, Err: err}
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return FetchResult{}, ctx.Err() == nil, &FetchError{Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	res := FetchResult{Status: resp.StatusCode, StatusLine: resp.Status}
	if !is2xx(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return res, retryableStatus(resp.StatusCode), &FetchError{
			Kind:   domain.ErrNonSuccessResponse,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("server returned %s", resp.Status),
		}
	}

	dir := filepath.Dir(fr.Dest)
	if fr.CreateDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, false, &FetchError{Kind: domain.ErrDirectoryCreation, Err: err}
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fr.Dest)+".part-*")
	if err != nil {
		kind := domain.ErrLocalWrite
		if errors.Is(err, fs.ErrNotExist) {
			kind = domain.ErrDirectoryCreation
			err = fmt.Errorf("destination directory %s does not exist: %w", dir, err)
		}
		return res, false, &FetchError{Kind: kind, Err: err}
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	res.Bytes = n
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return res, ctx.Err() == nil, &FetchError{Kind: classifyTransport(err), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return res, false, &FetchError{Kind: domain.ErrLocalWrite, Err: err}
	}
	if err := os.Rename(tmp.Name(), fr.Dest); err != nil {
		os.Remove(tmp.Name())
		return res, false, &FetchError{Kind: domain.ErrLocalWrite, Err: err}
	}
	res.SHA256 = hex.EncodeToString(h.Sum(nil))
	return res, false, nil
}
