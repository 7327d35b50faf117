package server

import (
	"context"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/repository"
)

// RepositoryAdapter adapts repositories to server.Database interface
type RepositoryAdapter struct {
	repos *repository.Repositories
}

// NewRepositoryAdapter creates a new repository adapter
func NewRepositoryAdapter(repos *repository.Repositories) *RepositoryAdapter {
	return &RepositoryAdapter{repos: repos}
}

// GetSources returns sources, only active ones if activeOnly is set
func (r *RepositoryAdapter) GetSources(ctx context.Context, activeOnly bool) ([]*domain.Source, error) {
	return r.repos.Source.GetSources(ctx, activeOnly)
}

// GetSource returns a source by id
func (r *RepositoryAdapter) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	return r.repos.Source.GetSource(ctx, id)
}

// GetRuns returns recent runs of the source
func (r *RepositoryAdapter) GetRuns(ctx context.Context, sourceID int64, limit int) ([]*domain.RunStats, error) {
	return r.repos.Run.GetRuns(ctx, sourceID, limit)
}

// ListEvents returns stored events matching the filter
func (r *RepositoryAdapter) ListEvents(ctx context.Context, f repository.EventFilter) ([]*domain.StoredEvent, error) {
	return r.repos.Event.ListEvents(ctx, f)
}

// CountEvents returns number of events per approval status
func (r *RepositoryAdapter) CountEvents(ctx context.Context) (map[domain.ApprovalStatus]int, error) {
	return r.repos.Event.CountEvents(ctx)
}
