package model

import "time"

// Release is a read-only projection of a GitHub release
type Release struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TagName     string    `json:"tag_name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []Asset   `json:"assets"`
}

// Asset is a single downloadable file attached to a release
type Asset struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	DownloadCount int64  `json:"download_count"`
	DownloadURL   string `json:"download_url"`
}

// CatalogSource binds a content category to the repository its releases come from
type CatalogSource struct {
	Category string `toml:"category" json:"category"`
	Owner    string `toml:"owner" json:"owner"`
	Repo     string `toml:"repo" json:"repo"`
}

// CatalogSnapshot is the cached release list of one category
type CatalogSnapshot struct {
	Source    CatalogSource `json:"source"`
	Releases  []*Release    `json:"releases"`
	FetchedAt time.Time     `json:"fetched_at"`
}
