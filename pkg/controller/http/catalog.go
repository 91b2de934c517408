package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

type catalogHandler struct {
	uc interfaces.CatalogUseCase
}

type catalogEntry struct {
	model.CatalogSource
	Loaded    bool       `json:"loaded"`
	Releases  int        `json:"releases"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

func (h *catalogHandler) list(w http.ResponseWriter, r *http.Request) {
	sources := h.uc.Sources()
	entries := make([]catalogEntry, 0, len(sources))
	for _, src := range sources {
		entry := catalogEntry{CatalogSource: src}
		if snapshot, ok := h.uc.Get(src.Category); ok {
			entry.Loaded = true
			entry.Releases = len(snapshot.Releases)
			fetchedAt := snapshot.FetchedAt
			entry.FetchedAt = &fetchedAt
		}
		entries = append(entries, entry)
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (h *catalogHandler) get(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	snapshot, ok := h.uc.Get(category)
	if !ok {
		handleError(w, r, goerr.New("catalog is not loaded",
			goerr.T(types.ErrTagNotFound),
			goerr.V("category", category),
		))
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

func (h *catalogHandler) refresh(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	snapshot, err := h.uc.Refresh(r.Context(), category)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagCatalogFetchFailed) {
			writeUpstreamError(w, r, err)
			return
		}
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

// writeUpstreamError answers 502 and passes on the status GitHub returned, if any
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	body := map[string]any{"error": err.Error()}
	if status, ok := goerr.Values(err)["status"].(int); ok {
		body["upstream_status"] = status
	}
	writeJSON(w, r, http.StatusBadGateway, body)
}
