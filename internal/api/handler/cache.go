package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/flight-support/internal/api/response"
)

// CacheFlusher empties a cache and reports how many keys it removed
type CacheFlusher interface {
	FlushAll(ctx context.Context) (int64, error)
}

// FlushCache clears the recent messages cache
func FlushCache(cache CacheFlusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := cache.FlushAll(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "failed to flush cache: "+err.Error())
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}
