package repo

import (
	"context"

	"github.com/hamed0406/shardprobe/internal/domain"
)

// KeyRole says why a key was probed.
type KeyRole string

const (
	RoleReference KeyRole = "reference" // key known to exist in the probe's reference data
	RoleIndex     KeyRole = "index"     // key shaped like the production resource index
)

// ExistenceRow is one existence check tagged with the role of its key.
type ExistenceRow struct {
	Role   KeyRole
	Result domain.ExistenceResult
}

// EvidenceStore collects the evidence of a single run, in arrival order.
type EvidenceStore interface {
	AppendOutcome(ctx context.Context, o domain.ProbeOutcome) error
	AppendExistence(ctx context.Context, role KeyRole, r domain.ExistenceResult) error
	SetConnectivity(ctx context.Context, c domain.Connectivity) error

	Outcomes(ctx context.Context) ([]domain.ProbeOutcome, error)
	Existence(ctx context.Context) ([]ExistenceRow, error)
	// Connectivity returns nil until SetConnectivity was called.
	Connectivity(ctx context.Context) (*domain.Connectivity, error)
}
