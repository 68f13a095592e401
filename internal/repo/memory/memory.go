package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/repo"
)

var _ repo.EvidenceStore = (*Store)(nil)

// Store keeps one run's evidence in memory. A new Store is created per run,
// so nothing from a previous run is ever merged in.
type Store struct {
	mu           sync.RWMutex
	outcomes     []domain.ProbeOutcome
	existence    []repo.ExistenceRow
	connectivity *domain.Connectivity
}

func New() *Store {
	return &Store{
		outcomes:  make([]domain.ProbeOutcome, 0, 8),
		existence: make([]repo.ExistenceRow, 0, 8),
	}
}

func (m *Store) AppendOutcome(ctx context.Context, o domain.ProbeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *Store) AppendExistence(ctx context.Context, role repo.KeyRole, r domain.ExistenceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existence = append(m.existence, repo.ExistenceRow{Role: role, Result: r})
	return nil
}

func (m *Store) SetConnectivity(ctx context.Context, c domain.Connectivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = &c
	return nil
}

func (m *Store) Outcomes(ctx context.Context) ([]domain.ProbeOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ProbeOutcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out, nil
}

func (m *Store) Existence(ctx context.Context) ([]repo.ExistenceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repo.ExistenceRow, len(m.existence))
	copy(out, m.existence)
	return out, nil
}

func (m *Store) Connectivity(ctx context.Context) (*domain.Connectivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.connectivity == nil {
		return nil, nil
	}
	c := *m.connectivity
	return &c, nil
}
