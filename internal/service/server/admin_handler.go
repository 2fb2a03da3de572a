package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// AdminHandler handles admin requests
type AdminHandler struct {
	loader    ImageLoader
	disk      DiskCache
	replanner Replanner
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(loader ImageLoader, disk DiskCache, replanner Replanner, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		loader:    loader,
		disk:      disk,
		replanner: replanner,
		logger:    logger,
	}
}

// HandleReset empties both cache tiers and re-plans storage
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.loader.ClearMemory()

	removed, err := h.disk.Clear()
	if err != nil {
		h.logger.Error("failed to clear disk cache", zap.Error(err))
		http.Error(w, "Failed to clear disk cache", http.StatusInternalServerError)
		return
	}

	plan, changed, err := h.replanner.Replan()
	if err != nil {
		h.logger.Error("failed to replan storage", zap.Error(err))
		http.Error(w, "Failed to replan storage", http.StatusInternalServerError)
		return
	}

	h.logger.Info("cache reset",
		zap.Int("removed", removed),
		zap.Stringer("plan", plan),
		zap.Bool("reconfigured", changed))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"removed":      removed,
		"plan":         newPlanView(plan),
		"reconfigured": changed,
	})
}
