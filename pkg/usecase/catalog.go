package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

// ReleasesPerPage is the page size used when listing releases
const ReleasesPerPage = 100

type catalogKey struct {
	owner    string
	repo     string
	category string
}

type catalogUseCase struct {
	lister  interfaces.ReleaseLister
	sources map[string]model.CatalogSource
	now     func() time.Time

	mu    sync.RWMutex
	seq   uint64
	cache map[catalogKey]*catalogEntry
}

// catalogEntry remembers which Refresh call produced the snapshot
type catalogEntry struct {
	seq      uint64
	snapshot *model.CatalogSnapshot
}

// NewCatalog creates a new instance of CatalogUseCase serving the given sources
func NewCatalog(lister interfaces.ReleaseLister, sources []model.CatalogSource) interfaces.CatalogUseCase {
	uc := &catalogUseCase{
		lister:  lister,
		sources: make(map[string]model.CatalogSource, len(sources)),
		now:     time.Now,
		cache:   make(map[catalogKey]*catalogEntry),
	}
	for _, src := range sources {
		uc.sources[src.Category] = src
	}
	return uc
}

// FetchAllReleases walks the release pages of owner/repo in order until a short page
func (uc *catalogUseCase) FetchAllReleases(ctx context.Context, owner, repo string) ([]*model.Release, error) {
	logger := ctxlog.From(ctx)

	var all []*model.Release
	for page := 1; ; page++ {
		releases, err := uc.lister.ListReleases(ctx, owner, repo, page, ReleasesPerPage)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch releases",
				goerr.T(types.ErrTagCatalogFetchFailed),
				goerr.V("owner", owner),
				goerr.V("repo", repo),
				goerr.V("page", page),
			)
		}

		all = append(all, releases...)
		logger.Debug("Fetched release page",
			"owner", owner,
			"repo", repo,
			"page", page,
			"count", len(releases),
		)

		if len(releases) < ReleasesPerPage {
			break
		}
	}

	if all == nil {
		all = []*model.Release{}
	}
	return all, nil
}

// Refresh re-downloads the whole release history of category. The cached snapshot is replaced
// only when every page was fetched. When refreshes overlap, the one started last wins regardless
// of which finishes first.
func (uc *catalogUseCase) Refresh(ctx context.Context, category string) (*model.CatalogSnapshot, error) {
	src, ok := uc.sources[category]
	if !ok {
		return nil, goerr.New("unknown catalog category", goerr.T(types.ErrTagNotFound), goerr.V("category", category))
	}

	uc.mu.Lock()
	uc.seq++
	seq := uc.seq
	uc.mu.Unlock()

	releases, err := uc.FetchAllReleases(ctx, src.Owner, src.Repo)
	if err != nil {
		return nil, err
	}

	snapshot := &model.CatalogSnapshot{
		Source:    src,
		Releases:  releases,
		FetchedAt: uc.now(),
	}

	key := catalogKey{owner: src.Owner, repo: src.Repo, category: src.Category}
	uc.mu.Lock()
	if cur, ok := uc.cache[key]; ok && cur.seq > seq {
		uc.mu.Unlock()
		ctxlog.From(ctx).Debug("Newer catalog refresh already stored, discarding result",
			"category", category,
			"releases", len(releases),
		)
		return cur.snapshot, nil
	}
	uc.cache[key] = &catalogEntry{seq: seq, snapshot: snapshot}
	uc.mu.Unlock()

	ctxlog.From(ctx).Info("Catalog refreshed",
		"category", category,
		"owner", src.Owner,
		"repo", src.Repo,
		"releases", len(releases),
	)
	return snapshot, nil
}

// Get returns the cached snapshot of category
func (uc *catalogUseCase) Get(category string) (*model.CatalogSnapshot, bool) {
	src, ok := uc.sources[category]
	if !ok {
		return nil, false
	}

	uc.mu.RLock()
	defer uc.mu.RUnlock()
	entry, ok := uc.cache[catalogKey{owner: src.Owner, repo: src.Repo, category: src.Category}]
	if !ok {
		return nil, false
	}
	return entry.snapshot, true
}

// Sources returns the configured sources ordered by category
func (uc *catalogUseCase) Sources() []model.CatalogSource {
	list := make([]model.CatalogSource, 0, len(uc.sources))
	for _, src := range uc.sources {
		list = append(list, src)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Category < list[j].Category })
	return list
}
