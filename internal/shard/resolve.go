// Package shard maps resource keys onto the remote and local shard layout.
package shard

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/hamed0406/shardprobe/internal/domain"
)

const DefaultSuffix = "pdbqt.gz"

// Resolve derives the remote URL and local paths for key under variant:
//
//	<root>/<variant>/<bucket>/<subbucket>/<bucket><subbucket>.<suffix>
//	<workDir>/<bucket>/<subbucket>/<bucket><subbucket>.<suffix>
//
// It does not touch the filesystem.
func Resolve(root string, key domain.ResourceKey, variant domain.PathVariant, suffix, workDir string) (domain.ResolvedTarget, error) {
	if key.IsZero() {
		return domain.ResolvedTarget{}, errors.New("resolve: empty resource key")
	}
	root = strings.TrimRight(strings.TrimSpace(root), "/")
	if root == "" {
		return domain.ResolvedTarget{}, errors.New("resolve: empty server root")
	}
	if !strings.Contains(root, "://") {
		root = "http://" + root
	}
	if _, err := url.ParseRequestURI(root); err != nil {
		return domain.ResolvedTarget{}, err
	}
	v := strings.Trim(string(variant), "/")
	if v == "" {
		return domain.ResolvedTarget{}, errors.New("resolve: empty path variant")
	}
	suffix = strings.TrimPrefix(strings.TrimSpace(suffix), ".")
	if suffix == "" {
		return domain.ResolvedTarget{}, errors.New("resolve: empty suffix")
	}
	if workDir == "" {
		workDir = "."
	}

	file := key.String() + "." + suffix
	return domain.ResolvedTarget{
		Key:        key,
		Variant:    domain.PathVariant(v),
		URL:        root + path.Join("/", v, key.Bucket(), key.SubBucket(), file),
		FileName:   file,
		WorkDir:    workDir,
		FlatPath:   filepath.Join(workDir, file),
		NestedPath: filepath.Join(workDir, key.Bucket(), key.SubBucket(), file),
	}, nil
}

// BucketDir is the top-level local directory a nested transfer creates.
func BucketDir(t domain.ResolvedTarget) string {
	return filepath.Join(t.WorkDir, t.Key.Bucket())
}
