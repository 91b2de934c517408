package interfaces

import (
	"context"

	"github.com/m-mizutani/hangar/pkg/domain/model"
)

// ArchiveUseCase extracts downloaded archives
type ArchiveUseCase interface {
	// Extract decompresses archivePath into destDir, flattens a single wrapper directory and
	// removes the archive on success
	Extract(ctx context.Context, archivePath, destDir string) (*model.ExtractionResult, error)
}

// DownloadUseCase coordinates asset downloads
type DownloadUseCase interface {
	Start(ctx context.Context, req *model.DownloadRequest) (*model.DownloadRequest, error)
	Status(id string) (*model.DownloadStatus, bool)
	List() []*model.DownloadStatus
	Acknowledge(id string) bool
	Active() int
}

// CatalogUseCase serves cached release lists per category
type CatalogUseCase interface {
	FetchAllReleases(ctx context.Context, owner, repo string) ([]*model.Release, error)
	Refresh(ctx context.Context, category string) (*model.CatalogSnapshot, error)
	Get(category string) (*model.CatalogSnapshot, bool)
	Sources() []model.CatalogSource
}
