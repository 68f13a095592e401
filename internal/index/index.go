// Package index reads production resource indexes: plain URL lists (.uri)
// and rsync command files, and extracts the sharded keys they reference.
package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/hamed0406/shardprobe/internal/domain"
)

var ErrNoEntries = errors.New("index holds no sharded entries")

// Entry is one sharded reference found in an index.
type Entry struct {
	Line    int
	Source  string
	Variant domain.PathVariant
	Key     domain.ResourceKey
	// Suffix is empty when the line names a shard directory but no file.
	Suffix string
}

func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse returns every line that references a sharded resource, in file
// order. Blank lines, comments and lines without a shard path are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if e, ok := ParseLine(sc.Text()); ok {
			e.Line = n
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read index line %d: %w", n+1, err)
	}
	return out, nil
}

// First returns the first entry of the index, which supplies the index key
// and the variant the index declares.
func First(entries []Entry) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrNoEntries
	}
	return entries[0], nil
}

func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}
	if strings.HasPrefix(line, "rsync ") {
		return parseRsync(line)
	}
	return parseURL(line, "")
}

// parseRsync finds the rsync:// source and uses an --include pattern as the
// file name when the source is a shard directory.
func parseRsync(line string) (Entry, bool) {
	var source, include string
	fields := strings.Fields(line)
	for i, f := range fields {
		switch {
		case strings.HasPrefix(f, "rsync://") && source == "":
			source = f
		case f == "--include" && i+1 < len(fields) && include == "":
			include = fields[i+1]
		case strings.HasPrefix(f, "--include=") && include == "":
			include = strings.TrimPrefix(f, "--include=")
		}
	}
	if source == "" {
		return Entry{}, false
	}
	return parseURL(source, strings.Trim(include, `"'`))
}

func parseURL(raw, include string) (Entry, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Entry{}, false
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i := 0; i+2 < len(segs); i++ {
		key, err := domain.NewResourceKey(segs[i+1], segs[i+2])
		if err != nil {
			continue
		}
		file := include
		if i+3 < len(segs) {
			file = segs[i+3]
		}
		suffix, ok := suffixOf(key, file)
		if !ok {
			continue
		}
		return Entry{Source: raw, Variant: domain.PathVariant(segs[i]), Key: key, Suffix: suffix}, true
	}
	return Entry{}, false
}

func suffixOf(key domain.ResourceKey, file string) (string, bool) {
	if file == "" || strings.ContainsAny(file, "*?[") {
		return "", true
	}
	rest, ok := strings.CutPrefix(file, key.String()+".")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
