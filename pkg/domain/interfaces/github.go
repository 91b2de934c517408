package interfaces

import (
	"context"

	"github.com/m-mizutani/hangar/pkg/domain/model"
)

// ReleaseLister defines operations for reading releases from GitHub
type ReleaseLister interface {
	// ListReleases returns one page of releases of owner/repo (1-based page)
	ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]*model.Release, error)
}
