package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

type extractHandler struct {
	uc interfaces.ArchiveUseCase
}

type extractRequest struct {
	ArchivePath string `json:"archive_path"`
	Destination string `json:"destination"`
}

func (h *extractHandler) extract(w http.ResponseWriter, r *http.Request) {
	var input extractRequest
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}
	if input.ArchivePath == "" || input.Destination == "" {
		handleError(w, r, goerr.New("archive_path and destination are required", goerr.T(types.ErrTagInvalidRequest)))
		return
	}

	result, err := h.uc.Extract(r.Context(), input.ArchivePath, input.Destination)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
