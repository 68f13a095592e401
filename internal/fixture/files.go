package fixture

import (
	"io/fs"
	"path"
	"testing/fstest"

	"github.com/hamed0406/shardprobe/internal/domain"
)

// Files builds an in-memory tree holding content for every key at
// <bucket>/<subbucket>/<key>.<suffix>.
func Files(suffix string, content []byte, keys ...domain.ResourceKey) fs.FS {
	m := fstest.MapFS{}
	for _, k := range keys {
		name := path.Join(k.Bucket(), k.SubBucket(), k.String()+"."+suffix)
		m[name] = &fstest.MapFile{Data: content, Mode: 0o644}
	}
	return m
}
