package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	BucketLen    = 2
	SubBucketLen = 4
)

// ResourceKey identifies a resource by its two-level shard: a 2-character
// bucket code and a 4-character sub-bucket code (e.g. "AC"+"AAML").
type ResourceKey struct {
	bucket    string
	subBucket string
}

func NewResourceKey(bucket, subBucket string) (ResourceKey, error) {
	if err := checkCode("bucket", bucket, BucketLen); err != nil {
		return ResourceKey{}, err
	}
	if err := checkCode("sub-bucket", subBucket, SubBucketLen); err != nil {
		return ResourceKey{}, err
	}
	return ResourceKey{bucket: bucket, subBucket: subBucket}, nil
}

// ParseResourceKey splits a compound key such as "ACAAML" into its codes.
// A slash-separated form ("AC/AAML") is accepted as well.
func ParseResourceKey(s string) (ResourceKey, error) {
	s = strings.TrimSpace(s)
	if b, sb, ok := strings.Cut(s, "/"); ok {
		return NewResourceKey(b, sb)
	}
	if len(s) != BucketLen+SubBucketLen {
		return ResourceKey{}, fmt.Errorf("resource key %q: want %d characters, got %d", s, BucketLen+SubBucketLen, len(s))
	}
	return NewResourceKey(s[:BucketLen], s[BucketLen:])
}

func MustResourceKey(bucket, subBucket string) ResourceKey {
	k, err := NewResourceKey(bucket, subBucket)
	if err != nil {
		panic(err)
	}
	return k
}

func checkCode(what, code string, n int) error {
	if code == "" {
		return fmt.Errorf("%s code is empty", what)
	}
	if len(code) != n {
		return fmt.Errorf("%s code %q: want %d characters, got %d", what, code, n, len(code))
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return fmt.Errorf("%s code %q: must be alphabetic", what, code)
		}
	}
	return nil
}

func (k ResourceKey) Bucket() string    { return k.bucket }
func (k ResourceKey) SubBucket() string { return k.subBucket }
func (k ResourceKey) IsZero() bool      { return k.bucket == "" && k.subBucket == "" }

// String returns the compound form used as the file stem, e.g. "ACAAML".
func (k ResourceKey) String() string { return k.bucket + k.subBucket }

func (k ResourceKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ResourceKey) UnmarshalText(b []byte) error {
	parsed, err := ParseResourceKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PathVariant is a remote path prefix namespace ("2D", "3D", ...).
type PathVariant string

const (
	Variant2D PathVariant = "2D"
	Variant3D PathVariant = "3D"
)

func ParseVariants(csv string) []PathVariant {
	var out []PathVariant
	seen := map[PathVariant]bool{}
	for _, p := range strings.Split(csv, ",") {
		v := PathVariant(strings.Trim(strings.TrimSpace(p), "/"))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ResolvedTarget is the remote URL and matching local paths for a key under
// one variant. NestedPath always has the same bucket/sub-bucket/file depth as
// the URL path below the variant.
type ResolvedTarget struct {
	Key        ResourceKey `json:"key"`
	Variant    PathVariant `json:"variant"`
	URL        string      `json:"url"`
	FileName   string      `json:"file_name"`
	WorkDir    string      `json:"work_dir"`
	FlatPath   string      `json:"flat_path"`
	NestedPath string      `json:"nested_path"`
}

// DirMode says who is responsible for the nested parent directories.
type DirMode int

const (
	DirFlat       DirMode = iota // write into the working directory itself
	DirAutoCreate                // the transfer creates parents after a 2xx
	DirPrecreate                 // parents are created before the transfer
)

func (m DirMode) String() string {
	switch m {
	case DirFlat:
		return "flat"
	case DirAutoCreate:
		return "auto-create"
	case DirPrecreate:
		return "precreate"
	}
	return "unknown"
}

// Strategy is a named retrieval procedure with its own timeout/retry policy.
type Strategy struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Mode           DirMode       `json:"mode"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	Timeout        time.Duration `json:"timeout"`
	Retries        int           `json:"retries"`
}
