// Package harness drives one diagnostic run: clean up, check connectivity,
// run every strategy, probe existence, then summarize.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/shardprobe/internal/config"
	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/evidence"
	"github.com/hamed0406/shardprobe/internal/index"
	"github.com/hamed0406/shardprobe/internal/logging"
	"github.com/hamed0406/shardprobe/internal/notify"
	"github.com/hamed0406/shardprobe/internal/probe"
	"github.com/hamed0406/shardprobe/internal/repo"
	"github.com/hamed0406/shardprobe/internal/repo/memory"
	"github.com/hamed0406/shardprobe/internal/shard"
	"github.com/hamed0406/shardprobe/internal/strategy"
)

// Archiver persists a finished report, e.g. postgres.Store.
type Archiver interface {
	SaveReport(ctx context.Context, r evidence.Report) error
}

// ConnectivityChecker reports general reachability of the server root.
type ConnectivityChecker interface {
	Check(ctx context.Context, root string) domain.Connectivity
}

type Harness struct {
	Logger     *zap.Logger
	Config     config.Config
	Console    io.Writer
	Format     evidence.Format
	Strategies []domain.Strategy

	Connectivity ConnectivityChecker
	Prober       *probe.Prober
	Executor     *strategy.Executor
	Notifier     notify.Multi
	Archive      Archiver // optional
}

// New wires the HTTP-backed components from cfg.
func New(l *zap.Logger, cfg config.Config, console io.Writer) *Harness {
	if l == nil {
		l = zap.NewNop()
	}
	if console == nil {
		console = os.Stdout
	}
	ex := strategy.NewExecutor(l, strategy.HTTPTransports(cfg.UserAgent, cfg.RetryBackoff))
	ex.KeepArtifacts = cfg.KeepArtifacts

	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhookURL, cfg.UserAgent); s != nil {
		notifiers = append(notifiers, s)
	}
	return &Harness{
		Logger:  l,
		Config:  cfg,
		Console: console,
		Strategies: strategy.Defaults(strategy.Policy{
			ConnectTimeout: cfg.ConnectTimeout,
			Timeout:        cfg.TransferTimeout,
			Retries:        cfg.RetryAttempts,
		}),
		Connectivity: probe.NewConnectivity(cfg.ProbeConnectTimeout, cfg.ProbeTimeout, cfg.UserAgent),
		Prober:       probe.NewProber(cfg.ServerRoot, cfg.Suffix, cfg.ProbeConnectTimeout, cfg.ProbeTimeout, cfg.UserAgent),
		Executor:     ex,
		Notifier:     notifiers,
	}
}

// indexTarget is the production-index-shaped key and what the index says
// about it.
type indexTarget struct {
	Key     domain.ResourceKey
	Variant domain.PathVariant
	Suffix  string
}

// Run performs the whole sequence. Recoverable failures end up in the
// report; only local fatal conditions (bad keys, unreadable index, log
// files that cannot be created) are returned as errors. A cancelled context
// stops the run early and still yields a report of what was gathered.
func (h *Harness) Run(ctx context.Context) (evidence.Report, evidence.Summary, error) {
	cfg := h.Config
	ref, err := domain.ParseResourceKey(cfg.TestKey)
	if err != nil {
		return evidence.Report{}, evidence.Summary{}, fmt.Errorf("test key: %w", err)
	}
	idx, err := h.indexTarget()
	if err != nil {
		return evidence.Report{}, evidence.Summary{}, err
	}

	agg := evidence.NewAggregator(h.Logger, memory.New(), evidence.RunInfo{
		ServerRoot:   cfg.ServerRoot,
		Variants:     cfg.Variants,
		ReferenceKey: ref,
		IndexKey:     idx.Key,
		IndexVariant: idx.Variant,
	})
	log := h.Logger.With(zap.String("run_id", agg.RunID()))
	log.Info("run_start",
		zap.String("server_root", cfg.ServerRoot),
		zap.String("test_key", ref.String()),
		zap.String("index_key", idx.Key.String()),
		zap.String("work_dir", cfg.WorkDir),
	)

	if err := h.preclean(log, ref); err != nil {
		return evidence.Report{}, evidence.Summary{}, err
	}

	if err := h.connectivity(ctx, agg); err != nil {
		return evidence.Report{}, evidence.Summary{}, err
	}

	for _, s := range h.Strategies {
		if ctx.Err() != nil {
			break
		}
		if err := h.runStrategy(ctx, log, agg, s, ref); err != nil {
			return evidence.Report{}, evidence.Summary{}, err
		}
	}

	if ctx.Err() == nil {
		if err := agg.RecordExistence(ctx, repo.RoleReference, h.Prober.Probe(ctx, ref, cfg.Variants)); err != nil {
			return evidence.Report{}, evidence.Summary{}, err
		}
	}
	if ctx.Err() == nil {
		p := *h.Prober
		if idx.Suffix != "" {
			p.Suffix = idx.Suffix
		}
		if err := agg.RecordExistence(ctx, repo.RoleIndex, p.Probe(ctx, idx.Key, cfg.Variants)); err != nil {
			return evidence.Report{}, evidence.Summary{}, err
		}
	}

	// The report is assembled even after an interrupt.
	rep, err := agg.Report(context.WithoutCancel(ctx))
	if err != nil {
		return evidence.Report{}, evidence.Summary{}, err
	}
	sum := evidence.Summarize(rep)
	if ctx.Err() != nil {
		log.Warn("run_interrupted", zap.Error(ctx.Err()))
		fmt.Fprintln(h.Console, "run interrupted; summary covers completed steps only")
	}
	if err := evidence.Render(h.Console, rep, sum, h.Format); err != nil {
		log.Warn("render_error", zap.Error(err))
	}

	h.notify(ctx, log, rep, sum)
	h.archive(ctx, log, rep)
	log.Info("run_finished",
		zap.Int("succeeded", len(sum.Succeeded)),
		zap.Int("failed", len(sum.Failed)),
		zap.Int("warnings", len(sum.Warnings)),
		zap.Duration("duration", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep, sum, nil
}

func (h *Harness) indexTarget() (indexTarget, error) {
	cfg := h.Config
	if cfg.IndexFile != "" {
		entries, err := index.ReadFile(cfg.IndexFile)
		if err != nil {
			return indexTarget{}, err
		}
		first, err := index.First(entries)
		if err != nil {
			return indexTarget{}, fmt.Errorf("index %s: %w", cfg.IndexFile, err)
		}
		return indexTarget{Key: first.Key, Variant: first.Variant, Suffix: first.Suffix}, nil
	}
	k, err := domain.ParseResourceKey(cfg.IndexKey)
	if err != nil {
		return indexTarget{}, fmt.Errorf("index key: %w", err)
	}
	return indexTarget{Key: k}, nil
}

// preclean removes leftovers of a prior run for the reference key under
// every variant this run can fetch. The index key is only probed, never
// downloaded, so nothing of it is touched.
func (h *Harness) preclean(log *zap.Logger, ref domain.ResourceKey) error {
	for _, v := range h.Config.FetchVariants {
		t, err := shard.Resolve(h.Config.ServerRoot, ref, v, h.Config.Suffix, h.Config.WorkDir)
		if err != nil {
			return fmt.Errorf("resolve %s under %s: %w", ref, v, err)
		}
		if err := strategy.Clean(t); err != nil {
			log.Warn("preclean_error", zap.String("key", ref.String()), zap.Error(err))
		}
	}
	return nil
}

func (h *Harness) connectivity(ctx context.Context, agg *evidence.Aggregator) error {
	c := h.Connectivity.Check(ctx, h.Config.ServerRoot)
	verdict := "REACHABLE"
	if !c.Reachable {
		verdict = "UNREACHABLE"
	}
	fmt.Fprintf(h.Console, "%s %s dns=%s %s\n", verdict, c.Host, c.DNSClass, c.Message)
	return agg.RecordConnectivity(ctx, c)
}

// runStrategy executes one strategy against every fetch variant, teeing its
// events and result markers to the console and to its own log file. That
// file failing to open is fatal.
func (h *Harness) runStrategy(ctx context.Context, log *zap.Logger, agg *evidence.Aggregator, s domain.Strategy, ref domain.ResourceKey) error {
	base, closeLog, err := logging.NewStrategyLogger(h.Config.LogDir, s.Name, h.Console)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLog(); err != nil {
			log.Warn("strategy_log_close_error", zap.String("strategy", s.Name), zap.Error(err))
		}
	}()
	// the executor adds the strategy field on its own
	ex := h.Executor.WithLogger(zap.New(zapcore.NewTee(log.Core(), base.Core())))
	sl := base.With(zap.String("strategy", s.Name))
	sl.Info("strategy_description", zap.String("description", s.Description))

	for _, v := range h.Config.FetchVariants {
		if ctx.Err() != nil {
			return nil
		}
		t, err := shard.Resolve(h.Config.ServerRoot, ref, v, h.Config.Suffix, h.Config.WorkDir)
		if err != nil {
			return fmt.Errorf("resolve %s under %s: %w", ref, v, err)
		}
		out := ex.Execute(ctx, s, t)
		sl.Info(marker(out))
		if err := agg.RecordOutcome(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func marker(o domain.ProbeOutcome) string {
	if o.Succeeded() {
		return fmt.Sprintf("SUCCESS %s %s %s (%d bytes, %s)",
			o.Strategy, o.Target.Variant, o.Target.URL, o.Size, o.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("FAILED  %s %s %s [%s %s] %s",
		o.Strategy, o.Target.Variant, o.Target.URL, o.Kind, o.ErrorKind, o.Diagnostic)
}

func (h *Harness) notify(ctx context.Context, log *zap.Logger, rep evidence.Report, sum evidence.Summary) {
	if !h.Notifier.Enabled() {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	title := fmt.Sprintf("shardprobe %s against %s", rep.RunID, rep.ServerRoot)
	if err := h.Notifier.Send(nctx, title, notify.Lines(sum.Lines())); err != nil {
		log.Warn("notify_error", zap.Error(err))
	}
}

func (h *Harness) archive(ctx context.Context, log *zap.Logger, rep evidence.Report) {
	if h.Archive == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := h.Archive.SaveReport(actx, rep); err != nil {
		log.Warn("archive_error", zap.Error(err))
	}
}
