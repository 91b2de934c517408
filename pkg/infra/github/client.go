package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

// Client lists releases through the GitHub REST API
type Client struct {
	githubClient *github.Client
}

type config struct {
	token          string
	appID          int64
	installationID int64
	privateKey     []byte
	baseURL        string
	httpClient     *http.Client
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithToken authenticates with a personal access token
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithApp authenticates as a GitHub App installation
func WithApp(appID, installationID int64, privateKey []byte) Option {
	return func(c *config) {
		c.appID = appID
		c.installationID = installationID
		c.privateKey = privateKey
	}
}

// WithBaseURL points the client at another API root (GitHub Enterprise, tests)
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// NewClient creates a new GitHub client. Without credentials it uses anonymous access.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if cfg.appID != 0 {
		transport := httpClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		itr, err := ghinstallation.New(transport, cfg.appID, cfg.installationID, cfg.privateKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create GitHub App transport", goerr.V("app_id", cfg.appID))
		}
		if cfg.baseURL != "" {
			itr.BaseURL = strings.TrimSuffix(cfg.baseURL, "/")
		}
		httpClient = &http.Client{Transport: itr, Timeout: httpClient.Timeout}
	}

	githubClient := github.NewClient(httpClient)
	if cfg.token != "" && cfg.appID == 0 {
		githubClient = githubClient.WithAuthToken(cfg.token)
	}

	if cfg.baseURL != "" {
		base := cfg.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub API base URL", goerr.V("base_url", cfg.baseURL))
		}
		githubClient.BaseURL = u
	}

	return &Client{githubClient: githubClient}, nil
}

// ListReleases returns one page of releases of owner/repo
func (c *Client) ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]*model.Release, error) {
	releases, resp, err := c.githubClient.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		opts := []goerr.Option{
			goerr.T(types.ErrTagCatalogFetchFailed),
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("page", page),
		}
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) {
			opts = append(opts, goerr.V("message", ghErr.Message))
		}
		if resp != nil {
			opts = append(opts, goerr.V("status", resp.StatusCode))
		}
		return nil, goerr.Wrap(err, "failed to list releases", opts...)
	}

	result := make([]*model.Release, 0, len(releases))
	for _, r := range releases {
		result = append(result, toRelease(r))
	}
	return result, nil
}

func toRelease(r *github.RepositoryRelease) *model.Release {
	release := &model.Release{
		ID:          r.GetID(),
		Name:        r.GetName(),
		TagName:     r.GetTagName(),
		Body:        r.GetBody(),
		HTMLURL:     r.GetHTMLURL(),
		Draft:       r.GetDraft(),
		Prerelease:  r.GetPrerelease(),
		PublishedAt: r.GetPublishedAt().Time,
		Assets:      make([]model.Asset, 0, len(r.Assets)),
	}
	for _, a := range r.Assets {
		release.Assets = append(release.Assets, model.Asset{
			ID:            a.GetID(),
			Name:          a.GetName(),
			ContentType:   a.GetContentType(),
			Size:          int64(a.GetSize()),
			DownloadCount: int64(a.GetDownloadCount()),
			DownloadURL:   a.GetBrowserDownloadURL(),
		})
	}
	return release
}

// StatusCode returns the HTTP status recorded on a catalog fetch error, or 0
func StatusCode(err error) int {
	if status, ok := goerr.Values(err)["status"].(int); ok {
		return status
	}
	return 0
}
