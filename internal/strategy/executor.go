package strategy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/probe"
)

// Transport performs a single transfer, retries included.
type Transport interface {
	Fetch(ctx context.Context, req probe.FetchRequest) (probe.FetchResult, error)
}

// TransportFactory builds the transport for a strategy's timeout/retry policy.
type TransportFactory func(s domain.Strategy) Transport

// HTTPTransports returns the default factory backed by probe.Fetcher.
func HTTPTransports(userAgent string, backoff time.Duration) TransportFactory {
	return func(s domain.Strategy) Transport {
		f := probe.NewFetcher(s.ConnectTimeout, s.Timeout, s.Retries, userAgent)
		f.Retry.Backoff = backoff
		return f
	}
}

type Executor struct {
	Logger     *zap.Logger
	Transports TransportFactory
	// KeepArtifacts leaves a fetched file in place instead of removing it
	// after inspection.
	KeepArtifacts bool
}

func NewExecutor(l *zap.Logger, transports TransportFactory) *Executor {
	if l == nil {
		l = zap.NewNop()
	}
	return &Executor{Logger: l, Transports: transports}
}

// WithLogger returns a copy of the executor that logs to l.
func (e *Executor) WithLogger(l *zap.Logger) *Executor {
	cp := *e
	cp.Logger = l
	return &cp
}

// Execute runs one strategy against one target: clean, prepare directories
// per the strategy's mode, transfer, inspect the artifact, report, clean
// again. It never returns an error; every failure lands in the outcome.
// Artifacts are only left behind when KeepArtifacts is set and the run
// succeeded.
func (e *Executor) Execute(ctx context.Context, s domain.Strategy, t domain.ResolvedTarget) domain.ProbeOutcome {
	log := e.Logger.With(zap.String("strategy", s.Name))
	out := domain.ProbeOutcome{Strategy: s.Name, Target: t}

	if err := Clean(t); err != nil {
		log.Warn("strategy_preclean_error", zap.Error(err))
	}
	defer func() {
		if e.KeepArtifacts && out.Succeeded() {
			return
		}
		if err := Clean(t); err != nil {
			log.Warn("strategy_cleanup_error", zap.Error(err))
		}
	}()

	log.Info("strategy_start",
		zap.String("mode", s.Mode.String()),
		zap.String("url", t.URL),
		zap.Duration("connect_timeout", s.ConnectTimeout),
		zap.Duration("timeout", s.Timeout),
		zap.Int("retries", s.Retries),
	)

	start := time.Now()
	out = e.run(ctx, log, s, t, out)
	out.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("result", string(out.Kind)),
		zap.Duration("duration", out.Duration),
		zap.Int("attempts", out.Attempts),
		zap.Int("http_status", out.HTTPStatus),
	}
	if out.Succeeded() {
		log.Info("strategy_result", append(fields,
			zap.String("path", out.Path),
			zap.Int64("bytes", out.Size),
			zap.String("sha256", out.SHA256),
		)...)
	} else {
		log.Warn("strategy_result", append(fields,
			zap.String("error_kind", string(out.ErrorKind)),
			zap.String("diagnostic", out.Diagnostic),
		)...)
	}
	return out
}

func (e *Executor) run(ctx context.Context, log *zap.Logger, s domain.Strategy, t domain.ResolvedTarget, out domain.ProbeOutcome) domain.ProbeOutcome {
	req := probe.FetchRequest{URL: t.URL, Dest: t.NestedPath}
	switch s.Mode {
	case domain.DirFlat:
		req.Dest = t.FlatPath
	case domain.DirAutoCreate:
		req.CreateDirs = true
	case domain.DirPrecreate:
		dir := filepath.Dir(t.NestedPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail(out, domain.ErrDirectoryCreation, fmt.Errorf("mkdir %s: %w", dir, err))
		}
		log.Info("strategy_mkdir", zap.String("dir", dir))
	default:
		return fail(out, domain.ErrLocalWrite, fmt.Errorf("unknown directory mode %d", s.Mode))
	}
	out.Path = req.Dest

	res, err := e.Transports(s).Fetch(ctx, req)
	out.HTTPStatus = res.Status
	out.Attempts = res.Attempts
	if err != nil {
		return fail(out, probe.KindOf(err), err)
	}

	fi, err := os.Stat(req.Dest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail(out, domain.ErrZeroByteResult, fmt.Errorf("artifact %s missing after transfer", req.Dest))
	case err != nil:
		return fail(out, domain.ErrLocalWrite, err)
	case fi.Size() == 0:
		return fail(out, domain.ErrZeroByteResult, fmt.Errorf("artifact %s is empty (%s)", req.Dest, res.StatusLine))
	}

	out.Kind = domain.OutcomeSuccess
	out.Size = fi.Size()
	out.SHA256 = res.SHA256
	out.Diagnostic = res.StatusLine
	return out
}

func fail(out domain.ProbeOutcome, kind domain.ErrorKind, err error) domain.ProbeOutcome {
	out.Kind = domain.OutcomeFailure
	if kind.IsTimeout() {
		out.Kind = domain.OutcomeTimeout
	}
	out.ErrorKind = kind
	out.Diagnostic = err.Error()
	return out
}
