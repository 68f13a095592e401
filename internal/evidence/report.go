// Package evidence collects a run's outcomes and existence checks and makes
// them legible. It never chooses a strategy on the operator's behalf.
package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/repo"
)

// Report is the full evidence of one run. It is created fresh per run.
type Report struct {
	RunID        string                `json:"run_id"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at"`
	ServerRoot   string                `json:"server_root"`
	Variants     []domain.PathVariant  `json:"variants"`
	ReferenceKey domain.ResourceKey    `json:"reference_key"`
	IndexKey     domain.ResourceKey    `json:"index_key"`
	IndexVariant domain.PathVariant    `json:"index_variant,omitempty"`
	Connectivity *domain.Connectivity  `json:"connectivity,omitempty"`
	Outcomes     []domain.ProbeOutcome `json:"outcomes"`
	Existence    []repo.ExistenceRow   `json:"existence"`
}

// RunInfo describes what a run is about to probe.
type RunInfo struct {
	ServerRoot   string
	Variants     []domain.PathVariant
	ReferenceKey domain.ResourceKey
	IndexKey     domain.ResourceKey
	IndexVariant domain.PathVariant
}

type Aggregator struct {
	Logger *zap.Logger
	Store  repo.EvidenceStore

	info    RunInfo
	runID   string
	started time.Time
}

func NewAggregator(l *zap.Logger, store repo.EvidenceStore, info RunInfo) *Aggregator {
	if l == nil {
		l = zap.NewNop()
	}
	return &Aggregator{
		Logger:  l,
		Store:   store,
		info:    info,
		runID:   uuid.NewString(),
		started: time.Now().UTC(),
	}
}

func (a *Aggregator) RunID() string { return a.runID }

func (a *Aggregator) RecordConnectivity(ctx context.Context, c domain.Connectivity) error {
	a.Logger.Info("connectivity_result",
		zap.String("host", c.Host),
		zap.String("dns_class", c.DNSClass),
		zap.Bool("reachable", c.Reachable),
		zap.Int("http_status", c.HTTPStatus),
		zap.String("message", c.Message),
	)
	return a.Store.SetConnectivity(ctx, c)
}

func (a *Aggregator) RecordOutcome(ctx context.Context, o domain.ProbeOutcome) error {
	a.Logger.Info("outcome_recorded",
		zap.String("strategy", o.Strategy),
		zap.String("variant", string(o.Target.Variant)),
		zap.String("result", string(o.Kind)),
		zap.String("error_kind", string(o.ErrorKind)),
	)
	return a.Store.AppendOutcome(ctx, o)
}

// RecordExistence stores results in the variant order given at construction,
// followed by any variant not in that list.
func (a *Aggregator) RecordExistence(ctx context.Context, role repo.KeyRole, results map[domain.PathVariant]domain.ExistenceResult) error {
	done := make(map[domain.PathVariant]bool, len(results))
	record := func(r domain.ExistenceResult) error {
		a.Logger.Info("probe_result",
			zap.String("role", string(role)),
			zap.String("key", r.Key.String()),
			zap.String("variant", string(r.Variant)),
			zap.String("class", string(r.Class)),
			zap.String("status_line", r.StatusLine),
			zap.String("url", r.URL),
		)
		done[r.Variant] = true
		return a.Store.AppendExistence(ctx, role, r)
	}
	for _, v := range a.info.Variants {
		if r, ok := results[v]; ok {
			if err := record(r); err != nil {
				return err
			}
		}
	}
	for v, r := range results {
		if !done[v] {
			if err := record(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Report snapshots everything recorded so far.
func (a *Aggregator) Report(ctx context.Context) (Report, error) {
	outcomes, err := a.Store.Outcomes(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load outcomes: %w", err)
	}
	existence, err := a.Store.Existence(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load existence: %w", err)
	}
	conn, err := a.Store.Connectivity(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load connectivity: %w", err)
	}
	return Report{
		RunID:        a.runID,
		StartedAt:    a.started,
		FinishedAt:   time.Now().UTC(),
		ServerRoot:   a.info.ServerRoot,
		Variants:     a.info.Variants,
		ReferenceKey: a.info.ReferenceKey,
		IndexKey:     a.info.IndexKey,
		IndexVariant: a.info.IndexVariant,
		Connectivity: conn,
		Outcomes:     outcomes,
		Existence:    existence,
	}, nil
}
