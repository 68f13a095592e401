package strategy

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/shard"
)

// Clean removes what a strategy can leave for target: the flat and nested
// files, their partial downloads, and the shard directories once they are
// empty. Anything else under the working directory is left alone. Missing
// paths are not errors.
func Clean(t domain.ResolvedTarget) error {
	var err error
	err = multierr.Append(err, removeFile(t.FlatPath))
	err = multierr.Append(err, removeFile(t.NestedPath))
	err = multierr.Append(err, removeParts(t.FlatPath))
	err = multierr.Append(err, removeParts(t.NestedPath))
	err = multierr.Append(err, removeEmptyDir(filepath.Dir(t.NestedPath)))
	err = multierr.Append(err, removeEmptyDir(shard.BucketDir(t)))
	return err
}

func removeFile(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// removeParts deletes temp files of interrupted transfers into dest.
func removeParts(dest string) error {
	pattern := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	var errs error
	for _, m := range matches {
		errs = multierr.Append(errs, removeFile(m))
	}
	return errs
}

// removeEmptyDir removes dir only when nothing else lives in it.
func removeEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return removeFile(dir)
}
