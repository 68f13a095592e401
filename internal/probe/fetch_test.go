package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/fixture"
)

var testKey = domain.MustResourceKey("AC", "AAML")

func fixtureServer(t *testing.T, opts fixture.Options) (*fixture.Server, string) {
	t.Helper()
	if opts.Files == nil {
		opts.Files = fixture.Files("pdbqt.gz", []byte("ligand-bytes"), testKey)
	}
	if opts.Variants == nil {
		opts.Variants = []domain.PathVariant{domain.Variant3D}
	}
	s := fixture.New(zap.NewNop(), opts)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func TestFetch_WritesFileAndDigest(t *testing.T) {
	_, root := fixtureServer(t, fixture.Options{})
	dest := filepath.Join(t.TempDir(), "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 2*time.Second, 0, "")
	res, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "ligand-bytes" {
		t.Fatalf("unexpected file %q err=%v", data, err)
	}
	sum := sha256.Sum256([]byte("ligand-bytes"))
	if res.SHA256 != hex.EncodeToString(sum[:]) || res.Bytes != int64(len(data)) || res.Status != 200 || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFetch_NonSuccessWritesNothing(t *testing.T) {
	_, root := fixtureServer(t, fixture.Options{})
	dir := t.TempDir()
	dest := filepath.Join(dir, "AC", "AAML", "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 2*time.Second, 2, "")
	res, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/2D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest, CreateDirs: true})
	if KindOf(err) != domain.ErrNonSuccessResponse {
		t.Fatalf("want NonSuccessResponse, got %v", err)
	}
	if res.Status != http.StatusNotFound || res.Attempts != 1 {
		t.Fatalf("404 should not be retried: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "AC")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no directories should be created on non-2xx, stat err=%v", err)
	}
}

func TestFetch_CreateDirsAfterSuccess(t *testing.T) {
	_, root := fixtureServer(t, fixture.Options{})
	dest := filepath.Join(t.TempDir(), "AC", "AAML", "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 2*time.Second, 0, "")
	if _, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest, CreateDirs: true}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fi, err := os.Stat(dest); err != nil || fi.Size() == 0 {
		t.Fatalf("nested file missing: %v", err)
	}
}

func TestFetch_MissingParentIsDirectoryFailure(t *testing.T) {
	_, root := fixtureServer(t, fixture.Options{})
	dest := filepath.Join(t.TempDir(), "AC", "AAML", "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 2*time.Second, 0, "")
	_, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest})
	if KindOf(err) != domain.ErrDirectoryCreation {
		t.Fatalf("want DirectoryCreationFailure, got %v", err)
	}
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	s, root := fixtureServer(t, fixture.Options{FailFirst: 2})
	dest := filepath.Join(t.TempDir(), "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 2*time.Second, 2, "")
	res, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Attempts != 3 || s.Hits(http.MethodGet) != 3 {
		t.Fatalf("want 3 attempts, got %d (hits=%d)", res.Attempts, s.Hits(http.MethodGet))
	}
}

func TestFetch_RetryBudgetExhausted(t *testing.T) {
	_, root := fixtureServer(t, fixture.Options{FailFirst: 5})
	dest := filepath.Join(t.TempDir(), "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 2*time.Second, 1, "")
	res, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest})
	if KindOf(err) != domain.ErrNonSuccessResponse || res.Attempts != 2 || res.Status != http.StatusServiceUnavailable {
		t.Fatalf("want 2 failed attempts with 503, got %+v err=%v", res, err)
	}
}

func TestFetch_TransferTimeout(t *testing.T) {
	_, root := fixtureServer(t, fixture.Options{Delay: 300 * time.Millisecond})
	dest := filepath.Join(t.TempDir(), "ACAAML.pdbqt.gz")

	f := NewFetcher(time.Second, 50*time.Millisecond, 0, "")
	_, err := f.Fetch(context.Background(), FetchRequest{URL: root + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: dest})
	if KindOf(err) != domain.ErrTransferTimeout {
		t.Fatalf("want TransferTimeout, got %v (%s)", err, KindOf(err))
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no file should remain after timeout")
	}
}

func TestFetch_RefusedConnectionIsHostUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	f := NewFetcher(time.Second, 2*time.Second, 0, "")
	_, err = f.Fetch(context.Background(), FetchRequest{URL: "http://" + addr + "/3D/AC/AAML/ACAAML.pdbqt.gz", Dest: filepath.Join(t.TempDir(), "x")})
	if KindOf(err) != domain.ErrHostUnreachable {
		t.Fatalf("want HostUnreachable, got %v (%s)", err, KindOf(err))
	}
}
