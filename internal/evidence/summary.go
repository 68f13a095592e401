package evidence

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/repo"
)

type HostVerdict string

const (
	HostReachable   HostVerdict = "reachable"
	HostUnreachable HostVerdict = "unreachable"
	HostUnknown     HostVerdict = "unknown"
)

// Summary is the legible digest of a Report.
type Summary struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`

	// ServedVariants are the variants under which the reference key exists.
	ServedVariants []domain.PathVariant `json:"served_variants"`
	// IndexKeyVariants are the variants under which the index key exists.
	IndexKeyVariants []domain.PathVariant `json:"index_key_variants"`

	IndexConventionMatches bool   `json:"index_convention_matches"`
	IndexConvention        string `json:"index_convention"`

	Host        HostVerdict `json:"host"`
	Attribution string      `json:"attribution,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
}

func Summarize(r Report) Summary {
	var s Summary

	for _, o := range r.Outcomes {
		label := o.Strategy + "@" + string(o.Target.Variant)
		if o.Succeeded() {
			s.Succeeded = append(s.Succeeded, label)
		} else {
			s.Failed = append(s.Failed, label+" ("+string(o.Kind)+" "+string(o.ErrorKind)+")")
		}
	}

	ref := byVariant(r.Existence, repo.RoleReference)
	idx := byVariant(r.Existence, repo.RoleIndex)
	s.ServedVariants = existing(r.Variants, ref)
	s.IndexKeyVariants = existing(r.Variants, idx)

	s.Host = HostUnknown
	if r.Connectivity != nil {
		s.Host = HostUnreachable
		if r.Connectivity.Reachable {
			s.Host = HostReachable
		}
	}

	s.IndexConventionMatches, s.IndexConvention = indexConvention(r, s)
	if len(s.Succeeded) == 0 && len(r.Outcomes) > 0 {
		switch s.Host {
		case HostUnreachable:
			s.Attribution = "every strategy failed and the host is unreachable: failures are attributable to connectivity, not path or strategy"
		case HostReachable:
			s.Attribution = "every strategy failed while the host is reachable: failures are attributable to the path variant or strategy"
		}
	}
	s.Warnings = consistency(r, ref)
	return s
}

func byVariant(rows []repo.ExistenceRow, role repo.KeyRole) map[domain.PathVariant]domain.ExistenceResult {
	m := map[domain.PathVariant]domain.ExistenceResult{}
	for _, row := range rows {
		if row.Role == role {
			m[row.Result.Variant] = row.Result
		}
	}
	return m
}

func existing(order []domain.PathVariant, m map[domain.PathVariant]domain.ExistenceResult) []domain.PathVariant {
	var out []domain.PathVariant
	for _, v := range order {
		if r, ok := m[v]; ok && r.Class == domain.Exists {
			out = append(out, v)
		}
	}
	return out
}

func indexConvention(r Report, s Summary) (bool, string) {
	if r.IndexKey.IsZero() {
		return false, "no index key was probed"
	}
	var common []domain.PathVariant
	for _, v := range s.IndexKeyVariants {
		if slices.Contains(s.ServedVariants, v) {
			common = append(common, v)
		}
	}

	if r.IndexVariant != "" {
		declared := slices.Contains(s.IndexKeyVariants, r.IndexVariant)
		switch {
		case declared && slices.Contains(s.ServedVariants, r.IndexVariant):
			return true, fmt.Sprintf("index declares %s and both keys resolve under %s", r.IndexVariant, r.IndexVariant)
		case declared:
			return true, fmt.Sprintf("index key %s resolves under the declared variant %s; reference key does not", r.IndexKey, r.IndexVariant)
		case len(s.IndexKeyVariants) > 0:
			return false, fmt.Sprintf("index declares %s but its key resolves only under %s", r.IndexVariant, joinVariants(s.IndexKeyVariants))
		}
	}

	switch {
	case len(common) > 0:
		return true, fmt.Sprintf("index key convention matches: both keys resolve under %s", joinVariants(common))
	case len(s.ServedVariants) > 0 && len(s.IndexKeyVariants) == 0:
		return false, fmt.Sprintf("reference key resolves under %s but index key %s resolves nowhere: index key naming differs", joinVariants(s.ServedVariants), r.IndexKey)
	case len(s.ServedVariants) == 0 && len(s.IndexKeyVariants) > 0:
		return true, fmt.Sprintf("index key resolves under %s but the reference key does not: reference data is stale", joinVariants(s.IndexKeyVariants))
	case len(s.IndexKeyVariants) > 0:
		return false, fmt.Sprintf("keys resolve under different variants (reference %s, index %s)", joinVariants(s.ServedVariants), joinVariants(s.IndexKeyVariants))
	}
	return false, "neither key resolves under any probed variant"
}

// consistency cross-checks cheap existence probes against full fetches of
// the reference key.
func consistency(r Report, ref map[domain.PathVariant]domain.ExistenceResult) []string {
	var warns []string
	fetched := map[domain.PathVariant][]domain.ProbeOutcome{}
	for _, o := range r.Outcomes {
		if o.Target.Key == r.ReferenceKey {
			fetched[o.Target.Variant] = append(fetched[o.Target.Variant], o)
		}
	}

	allNotFound := len(ref) > 0
	for _, e := range ref {
		if e.Class != domain.NotFound {
			allNotFound = false
		}
	}
	if allNotFound {
		for _, v := range r.Variants {
			for _, o := range fetched[v] {
				if o.Succeeded() {
					warns = append(warns, fmt.Sprintf("existence probe says NotFound everywhere but %s fetched under %s", o.Strategy, v))
				}
			}
		}
	}

	for _, v := range r.Variants {
		e, ok := ref[v]
		outs := fetched[v]
		if !ok || len(outs) == 0 {
			continue
		}
		anyOK := slices.ContainsFunc(outs, domain.ProbeOutcome.Succeeded)
		switch {
		case e.Class == domain.Exists && !anyOK:
			warns = append(warns, fmt.Sprintf("%s reports Exists but every fetch under %s failed", v, v))
		case e.Class == domain.NotFound && anyOK && !allNotFound:
			warns = append(warns, fmt.Sprintf("%s reports NotFound but a fetch under %s succeeded", v, v))
		}
	}
	return warns
}

func joinVariants(vs []domain.PathVariant) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}
