// Package strategy runs retrieval strategies against resolved targets and
// turns each run into a ProbeOutcome.
package strategy

import (
	"time"

	"github.com/hamed0406/shardprobe/internal/domain"
)

const (
	NameDirectFlat     = "direct-flat"
	NameAutoCreateDirs = "auto-create-dirs"
	NameMkdirThenFetch = "mkdir-then-fetch"
)

// Policy is the timeout/retry budget shared by the built-in strategies.
type Policy struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
	Retries        int
}

// Defaults returns the three strategies in the order they are run.
func Defaults(p Policy) []domain.Strategy {
	mk := func(name, desc string, mode domain.DirMode) domain.Strategy {
		return domain.Strategy{
			Name:           name,
			Description:    desc,
			Mode:           mode,
			ConnectTimeout: p.ConnectTimeout,
			Timeout:        p.Timeout,
			Retries:        p.Retries,
		}
	}
	return []domain.Strategy{
		mk(NameDirectFlat, "fetch into the working directory, no directories", domain.DirFlat),
		mk(NameAutoCreateDirs, "fetch into the nested path, transfer creates parents", domain.DirAutoCreate),
		mk(NameMkdirThenFetch, "create nested parents, then fetch", domain.DirPrecreate),
	}
}
