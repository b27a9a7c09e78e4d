package api

import (
	"net/http"
	"strconv"

	"github.com/mathparenting/tutor-gateway/internal/repository"
)

const defaultRecentLimit = 50

// AdminHandler serves operational read endpoints backed by the usage store.
type AdminHandler struct {
	usage *repository.PostgresUsageRepository
}

func NewAdminHandler(usage *repository.PostgresUsageRepository) *AdminHandler {
	return &AdminHandler{usage: usage}
}

func (h *AdminHandler) handleRecentUsage(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.usage.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load usage records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}
