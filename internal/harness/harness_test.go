package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/config"
	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/evidence"
	"github.com/hamed0406/shardprobe/internal/fixture"
	"github.com/hamed0406/shardprobe/internal/logging"
	"github.com/hamed0406/shardprobe/internal/notify"
	"github.com/hamed0406/shardprobe/internal/repo"
	"github.com/hamed0406/shardprobe/internal/strategy"
)

const suffix = "pdbqt.gz"

var (
	refKey = domain.MustResourceKey("AC", "AAML")
	idxKey = domain.MustResourceKey("AA", "AARN")
)

func mirror(t *testing.T, served ...domain.PathVariant) string {
	t.Helper()
	srv := fixture.New(zap.NewNop(), fixture.Options{
		Variants: served,
		Files:    fixture.Files(suffix, []byte("ligand-bytes"), refKey, idxKey),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts.URL
}

func testConfig(t *testing.T, root, wd string) config.Config {
	t.Helper()
	return config.Config{
		ServerRoot:          root,
		Variants:            []domain.PathVariant{domain.Variant2D, domain.Variant3D},
		FetchVariants:       []domain.PathVariant{domain.Variant2D, domain.Variant3D},
		TestKey:             refKey.String(),
		IndexKey:            idxKey.String(),
		Suffix:              suffix,
		WorkDir:             wd,
		LogDir:              filepath.Join(wd, "logs"),
		ConnectTimeout:      time.Second,
		TransferTimeout:     2 * time.Second,
		ProbeConnectTimeout: time.Second,
		ProbeTimeout:        2 * time.Second,
		UserAgent:           "shardprobe-test",
	}
}

func run(t *testing.T, cfg config.Config) (*bytes.Buffer, func() ([]domain.ProbeOutcome, []repo.ExistenceRow, []string)) {
	t.Helper()
	var console bytes.Buffer
	h := New(zap.NewNop(), cfg, &console)
	rep, sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return &console, func() ([]domain.ProbeOutcome, []repo.ExistenceRow, []string) {
		return rep.Outcomes, rep.Existence, sum.Warnings
	}
}

func kinds(outs []domain.ProbeOutcome) []string {
	var ks []string
	for _, o := range outs {
		ks = append(ks, o.Strategy+"@"+string(o.Target.Variant)+"="+string(o.Kind)+"/"+string(o.ErrorKind))
	}
	return ks
}

func TestRun_ServedAndUnservedVariants(t *testing.T) {
	wd := t.TempDir()
	cfg := testConfig(t, mirror(t, domain.Variant3D), wd)

	var console bytes.Buffer
	rep, sum, err := New(zap.NewNop(), cfg, &console).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"direct-flat@2D=FAILED/NonSuccessResponse",
		"direct-flat@3D=SUCCESS/",
		"auto-create-dirs@2D=FAILED/NonSuccessResponse",
		"auto-create-dirs@3D=SUCCESS/",
		"mkdir-then-fetch@2D=FAILED/NonSuccessResponse",
		"mkdir-then-fetch@3D=SUCCESS/",
	}
	if diff := cmp.Diff(want, kinds(rep.Outcomes)); diff != "" {
		t.Fatalf("outcomes (-want +got):\n%s", diff)
	}
	if rep.Outcomes[1].Target.URL != cfg.ServerRoot+"/3D/AC/AAML/ACAAML.pdbqt.gz" {
		t.Fatalf("unexpected url %s", rep.Outcomes[1].Target.URL)
	}

	if diff := cmp.Diff([]domain.PathVariant{domain.Variant3D}, sum.ServedVariants); diff != "" {
		t.Fatalf("served (-want +got):\n%s", diff)
	}
	if !sum.IndexConventionMatches || len(sum.Warnings) != 0 || sum.Host != "reachable" {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(rep.Existence) != 4 {
		t.Fatalf("want 4 existence rows, got %d", len(rep.Existence))
	}
	for _, row := range rep.Existence {
		want := domain.NotFound
		if row.Result.Variant == domain.Variant3D {
			want = domain.Exists
		}
		if row.Result.Class != want {
			t.Fatalf("%s %s: want %s, got %s", row.Role, row.Result.Variant, want, row.Result.Class)
		}
	}

	out := console.String()
	for _, s := range []string{"REACHABLE", "SUCCESS direct-flat 3D", "FAILED  mkdir-then-fetch 2D", "served variants: 3D"} {
		if !strings.Contains(out, s) {
			t.Fatalf("console missing %q:\n%s", s, out)
		}
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	wd := t.TempDir()
	cfg := testConfig(t, mirror(t, domain.Variant3D), wd)

	_, first := run(t, cfg)
	_, second := run(t, cfg)
	a, _, _ := first()
	b, _, _ := second()
	if diff := cmp.Diff(kinds(a), kinds(b)); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRun_LeavesOnlyLogs(t *testing.T) {
	wd := t.TempDir()
	cfg := testConfig(t, mirror(t, domain.Variant3D), wd)

	// leftovers of an interrupted earlier run
	stale := filepath.Join(wd, "AC", "AAML", "ACAAML.pdbqt.gz")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	run(t, cfg)

	err := filepath.WalkDir(wd, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == wd || p == cfg.LogDir {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(p, ".log") {
			t.Errorf("unexpected leftover %s", p)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range strategy.Defaults(strategy.Policy{}) {
		if _, err := os.Stat(filepath.Join(cfg.LogDir, s.Name+".log")); err != nil {
			t.Fatalf("strategy log for %s: %v", s.Name, err)
		}
	}
}

func TestRun_KeepsOperatorFiles(t *testing.T) {
	wd := t.TempDir()
	cfg := testConfig(t, mirror(t, domain.Variant3D), wd)

	// files a batch download already placed next to the probed shards
	kept := []string{
		filepath.Join(wd, "AC", "BBBB", "ACBBBB.pdbqt.gz"),
		filepath.Join(wd, "AC", "AAML", "ACAAML.sdf.gz"),
		filepath.Join(wd, "AA", "CDEF", "AACDEF.pdbqt.gz"),
		filepath.Join(wd, "AA", "AARN", "AAAARN.pdbqt.gz"),
	}
	for _, p := range kept {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("downloaded"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	run(t, cfg)

	for _, p := range kept {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("%s removed by run: %v", p, err)
		}
		if string(b) != "downloaded" {
			t.Fatalf("%s rewritten: %q", p, b)
		}
	}
	if _, err := os.Stat(filepath.Join(wd, "AC", "AAML", "ACAAML.pdbqt.gz")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("fetched artifact left behind: %v", err)
	}
}

func TestRun_StrategyLogHoldsMarkers(t *testing.T) {
	wd := t.TempDir()
	cfg := testConfig(t, mirror(t, domain.Variant3D), wd)

	run(t, cfg)

	b, err := os.ReadFile(logging.StrategyLogPath(cfg.LogDir, "direct-flat"))
	if err != nil {
		t.Fatal(err)
	}
	log := string(b)
	for _, want := range []string{"SUCCESS direct-flat 3D", "FAILED  direct-flat 2D", "strategy_start"} {
		if !strings.Contains(log, want) {
			t.Fatalf("direct-flat.log missing %q:\n%s", want, log)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(log), "\n") {
		if n := strings.Count(line, `"strategy"`); n > 1 {
			t.Fatalf("strategy field repeated %d times: %s", n, line)
		}
	}
}

func TestRun_NothingServedMeansEveryFetchFails(t *testing.T) {
	cfg := testConfig(t, mirror(t), t.TempDir())

	_, get := run(t, cfg)
	outs, rows, warns := get()
	for _, o := range outs {
		if o.Succeeded() {
			t.Fatalf("fetch succeeded although nothing is served: %+v", o)
		}
	}
	for _, r := range rows {
		if r.Result.Class != domain.NotFound {
			t.Fatalf("want NotFound everywhere, got %+v", r.Result)
		}
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings %v", warns)
	}
}

func TestRun_UnreachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	root := "http://" + ln.Addr().String()
	_ = ln.Close()

	cfg := testConfig(t, root, t.TempDir())
	rep, sum, err := New(zap.NewNop(), cfg, &bytes.Buffer{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Connectivity == nil || rep.Connectivity.Reachable {
		t.Fatalf("want unreachable connectivity, got %+v", rep.Connectivity)
	}
	for _, o := range rep.Outcomes {
		if o.ErrorKind != domain.ErrHostUnreachable {
			t.Fatalf("want HostUnreachable, got %+v", o)
		}
	}
	for _, r := range rep.Existence {
		if r.Result.Class != domain.Unreachable {
			t.Fatalf("want Unreachable, got %+v", r.Result)
		}
	}
	if !strings.Contains(sum.Attribution, "connectivity") {
		t.Fatalf("unexpected attribution %q", sum.Attribution)
	}
}

func TestRun_IndexFileSuppliesKeyAndVariant(t *testing.T) {
	wd := t.TempDir()
	root := mirror(t, domain.Variant3D)
	idx := filepath.Join(wd, "zinc.uri")
	if err := os.WriteFile(idx, []byte("# index\n"+root+"/3D/AA/AARN/AAAARN.pdbqt.gz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t, root, wd)
	cfg.IndexKey = ""
	cfg.IndexFile = idx

	rep, sum, err := New(zap.NewNop(), cfg, &bytes.Buffer{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.IndexKey != idxKey || rep.IndexVariant != domain.Variant3D {
		t.Fatalf("index not taken from file: %s %s", rep.IndexKey, rep.IndexVariant)
	}
	if !sum.IndexConventionMatches || !strings.Contains(sum.IndexConvention, "declares 3D") {
		t.Fatalf("unexpected convention %v %q", sum.IndexConventionMatches, sum.IndexConvention)
	}
}

func TestRun_FatalLocalErrors(t *testing.T) {
	wd := t.TempDir()
	root := mirror(t, domain.Variant3D)

	blocker := filepath.Join(wd, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t, root, wd)
	cfg.LogDir = filepath.Join(blocker, "logs")
	if _, _, err := New(zap.NewNop(), cfg, &bytes.Buffer{}).Run(context.Background()); err == nil {
		t.Fatal("want error when strategy logs cannot be created")
	}

	cfg = testConfig(t, root, wd)
	cfg.TestKey = "A1"
	if _, _, err := New(zap.NewNop(), cfg, &bytes.Buffer{}).Run(context.Background()); err == nil {
		t.Fatal("want error for malformed test key")
	}

	cfg = testConfig(t, root, wd)
	cfg.IndexFile = filepath.Join(wd, "absent.uri")
	if _, _, err := New(zap.NewNop(), cfg, &bytes.Buffer{}).Run(context.Background()); err == nil {
		t.Fatal("want error for unreadable index")
	}
}

func TestRun_InterruptedRunStillReports(t *testing.T) {
	cfg := testConfig(t, mirror(t, domain.Variant3D), t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var console bytes.Buffer
	rep, _, err := New(zap.NewNop(), cfg, &console).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Outcomes) != 0 || len(rep.Existence) != 0 {
		t.Fatalf("cancelled run should stop early: %+v", rep)
	}
	if !strings.Contains(console.String(), "interrupted") {
		t.Fatalf("console should say the run was interrupted:\n%s", console.String())
	}
}

func TestRun_PostsSummaryNotification(t *testing.T) {
	var (
		mu   sync.Mutex
		text string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		text = payload["text"]
		mu.Unlock()
	}))
	defer hook.Close()

	cfg := testConfig(t, mirror(t, domain.Variant3D), t.TempDir())
	cfg.SlackWebhookURL = hook.URL
	h := New(zap.NewNop(), cfg, &bytes.Buffer{})
	if len(h.Notifier) != 1 {
		t.Fatalf("want slack notifier wired, got %d", len(h.Notifier))
	}
	if _, _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(text, "served variants: 3D") {
		t.Fatalf("notification missing summary: %q", text)
	}
}

func TestRun_NotificationFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, mirror(t, domain.Variant3D), t.TempDir())
	h := New(zap.NewNop(), cfg, &bytes.Buffer{})
	h.Notifier = notify.Multi{notify.NewSlack("http://127.0.0.1:1/hook", "")}
	if _, _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("notification errors must not fail the run: %v", err)
	}
}

type captureArchive struct {
	saved []string
}

func (c *captureArchive) SaveReport(ctx context.Context, r evidence.Report) error {
	c.saved = append(c.saved, r.RunID)
	return nil
}

func TestRun_ArchivesReport(t *testing.T) {
	cfg := testConfig(t, mirror(t, domain.Variant3D), t.TempDir())
	h := New(zap.NewNop(), cfg, &bytes.Buffer{})
	arch := &captureArchive{}
	h.Archive = arch

	rep, _, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(arch.saved) != 1 || arch.saved[0] != rep.RunID {
		t.Fatalf("want report %s archived once, got %v", rep.RunID, arch.saved)
	}
}
