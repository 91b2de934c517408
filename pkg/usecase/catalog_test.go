package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/usecase"
)

type listCall struct {
	Owner   string
	Repo    string
	Page    int
	PerPage int
}

// mockLister serves pre-built pages; errAt fails the given page
type mockLister struct {
	pages [][]*model.Release
	errAt int
	calls []listCall
}

func (m *mockLister) ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]*model.Release, error) {
	m.calls = append(m.calls, listCall{Owner: owner, Repo: repo, Page: page, PerPage: perPage})
	if m.errAt == page {
		return nil, goerr.New("GET releases: 502 Bad Gateway", goerr.V("status", 502))
	}
	if page-1 < len(m.pages) {
		return m.pages[page-1], nil
	}
	return nil, nil
}

func makePage(offset, n int) []*model.Release {
	page := make([]*model.Release, n)
	for i := range page {
		page[i] = &model.Release{
			ID:      int64(offset + i),
			TagName: fmt.Sprintf("v%d", offset+i),
		}
	}
	return page
}

func TestCatalog_FetchAllReleases(t *testing.T) {
	ctx := context.Background()

	t.Run("three pages", func(t *testing.T) {
		lister := &mockLister{pages: [][]*model.Release{
			makePage(0, 100),
			makePage(100, 100),
			makePage(200, 37),
		}}
		uc := usecase.NewCatalog(lister, nil)

		releases, err := uc.FetchAllReleases(ctx, "owner", "repo")
		gt.NoError(t, err)
		gt.A(t, releases).Length(237)
		gt.A(t, lister.calls).Length(3)

		for i, call := range lister.calls {
			gt.Equal(t, call.Page, i+1)
			gt.Equal(t, call.PerPage, 100)
			gt.Equal(t, call.Owner, "owner")
			gt.Equal(t, call.Repo, "repo")
		}

		// order preserved across pages
		gt.Equal(t, releases[0].TagName, "v0")
		gt.Equal(t, releases[100].TagName, "v100")
		gt.Equal(t, releases[236].TagName, "v236")
	})

	t.Run("empty first page", func(t *testing.T) {
		lister := &mockLister{pages: [][]*model.Release{{}}}
		uc := usecase.NewCatalog(lister, nil)

		releases, err := uc.FetchAllReleases(ctx, "owner", "repo")
		gt.NoError(t, err)
		gt.True(t, releases != nil)
		gt.A(t, releases).Length(0)
		gt.A(t, lister.calls).Length(1)
	})

	t.Run("full page followed by empty page", func(t *testing.T) {
		lister := &mockLister{pages: [][]*model.Release{makePage(0, 100), {}}}
		uc := usecase.NewCatalog(lister, nil)

		releases, err := uc.FetchAllReleases(ctx, "owner", "repo")
		gt.NoError(t, err)
		gt.A(t, releases).Length(100)
		gt.A(t, lister.calls).Length(2)
	})

	t.Run("error discards partial results", func(t *testing.T) {
		lister := &mockLister{
			pages: [][]*model.Release{makePage(0, 100), makePage(100, 100)},
			errAt: 2,
		}
		uc := usecase.NewCatalog(lister, nil)

		releases, err := uc.FetchAllReleases(ctx, "owner", "repo")
		gt.Error(t, err)
		gt.True(t, releases == nil)
		gt.True(t, goerr.HasTag(err, types.ErrTagCatalogFetchFailed))
		gt.A(t, lister.calls).Length(2)
	})
}

// gatedLister holds its first call until release is closed
type gatedLister struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *gatedLister) ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]*model.Release, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first {
		close(g.started)
		<-g.release
		return makePage(0, 1), nil
	}
	return makePage(0, 2), nil
}

func TestCatalog_Refresh(t *testing.T) {
	ctx := context.Background()
	sources := []model.CatalogSource{
		{Category: "tools", Owner: "acme", Repo: "tools"},
		{Category: "games", Owner: "acme", Repo: "games"},
	}

	t.Run("caches snapshot per category", func(t *testing.T) {
		lister := &mockLister{pages: [][]*model.Release{makePage(0, 3)}}
		uc := usecase.NewCatalog(lister, sources)

		_, ok := uc.Get("games")
		gt.False(t, ok)

		snapshot, err := uc.Refresh(ctx, "games")
		gt.NoError(t, err)
		gt.A(t, snapshot.Releases).Length(3)
		gt.Equal(t, snapshot.Source.Repo, "games")
		gt.Equal(t, lister.calls[0].Repo, "games")

		cached, ok := uc.Get("games")
		gt.True(t, ok)
		gt.A(t, cached.Releases).Length(3)

		_, ok = uc.Get("tools")
		gt.False(t, ok)
	})

	t.Run("failed refresh keeps previous cache", func(t *testing.T) {
		lister := &mockLister{pages: [][]*model.Release{makePage(0, 5)}}
		uc := usecase.NewCatalog(lister, sources)

		_, err := uc.Refresh(ctx, "tools")
		gt.NoError(t, err)

		lister.errAt = 1
		_, err = uc.Refresh(ctx, "tools")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagCatalogFetchFailed))

		cached, ok := uc.Get("tools")
		gt.True(t, ok)
		gt.A(t, cached.Releases).Length(5)
	})

	t.Run("overlapping refreshes keep the later one", func(t *testing.T) {
		lister := &gatedLister{started: make(chan struct{}), release: make(chan struct{})}
		uc := usecase.NewCatalog(lister, sources)

		slow := make(chan *model.CatalogSnapshot, 1)
		go func() {
			snapshot, err := uc.Refresh(ctx, "tools")
			gt.NoError(t, err)
			slow <- snapshot
		}()
		<-lister.started

		fast, err := uc.Refresh(ctx, "tools")
		gt.NoError(t, err)
		gt.A(t, fast.Releases).Length(2)

		close(lister.release)
		gt.A(t, (<-slow).Releases).Length(2)

		cached, ok := uc.Get("tools")
		gt.True(t, ok)
		gt.A(t, cached.Releases).Length(2)
	})

	t.Run("unknown category", func(t *testing.T) {
		uc := usecase.NewCatalog(&mockLister{}, sources)

		_, err := uc.Refresh(ctx, "music")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagNotFound))
	})

	t.Run("sources sorted by category", func(t *testing.T) {
		uc := usecase.NewCatalog(&mockLister{}, sources)
		list := uc.Sources()
		gt.A(t, list).Length(2)
		gt.Equal(t, list[0].Category, "games")
		gt.Equal(t, list[1].Category, "tools")
	})
}
