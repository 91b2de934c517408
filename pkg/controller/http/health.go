package http

import (
	"net/http"

	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

// newHealthHandler handles health check requests
func newHealthHandler(downloads interfaces.DownloadUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := &model.HealthStatus{
			Status:  "healthy",
			Service: "hangar",
			Version: types.Version,
		}
		if downloads != nil {
			status.ActiveDownloads = downloads.Active()
		}

		writeJSON(w, r, http.StatusOK, status)
	}
}
