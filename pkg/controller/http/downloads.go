package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

type downloadHandler struct {
	uc         interfaces.DownloadUseCase
	defaultDir string
}

type startDownloadRequest struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	Destination string `json:"destination"`
	AutoExtract bool   `json:"auto_extract"`
}

func (h *downloadHandler) start(w http.ResponseWriter, r *http.Request) {
	var input startDownloadRequest
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}

	dest := input.Destination
	if dest == "" {
		dest = h.defaultDir
	}

	req, err := h.uc.Start(r.Context(), &model.DownloadRequest{
		ID:          input.ID,
		URL:         input.URL,
		FileName:    input.FileName,
		Destination: dest,
		AutoExtract: input.AutoExtract,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, req)
}

func (h *downloadHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.uc.List())
}

func (h *downloadHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, ok := h.uc.Status(id)
	if !ok {
		handleError(w, r, goerr.New("download not found", goerr.T(types.ErrTagNotFound), goerr.V("id", id)))
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (h *downloadHandler) acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.uc.Acknowledge(id) {
		// live downloads are not acknowledgeable
		if _, ok := h.uc.Status(id); ok {
			writeError(w, goerr.New("download is still in progress"), http.StatusConflict)
			return
		}
		handleError(w, r, goerr.New("download not found", goerr.T(types.ErrTagNotFound), goerr.V("id", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
