package probe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hamed0406/shardprobe/internal/domain"
)

// FetchError carries the classified reason a transfer did not complete.
type FetchError struct {
	Kind   domain.ErrorKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or classifies a raw
// transport error.
func KindOf(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return classifyTransport(err)
}

// classifyTransport maps client.Do and body read errors onto error kinds:
// dial timeouts are connect timeouts, other dial and DNS failures mean the
// host is unreachable, and any later timeout is a transfer timeout.
func classifyTransport(err error) domain.ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.ErrHostUnreachable
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		if op.Timeout() {
			return domain.ErrConnectTimeout
		}
		return domain.ErrHostUnreachable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ErrTransferTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTransferTimeout
	}
	return domain.ErrConnection
}

// retryableStatus reports server answers worth another attempt.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
