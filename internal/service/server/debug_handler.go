package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/domain/vo"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// planView is the JSON form of a CapacityPlan
type planView struct {
	Tier           string `json:"tier"`
	RootPath       string `json:"root_path,omitempty"`
	RequestedBytes int64  `json:"requested_bytes"`
	Requested      string `json:"requested"`
	NoCache        bool   `json:"no_cache"`
}

func newPlanView(p domain.CapacityPlan) planView {
	v := planView{
		RequestedBytes: p.RequestedBytes,
		Requested:      vo.HumanBytes(p.RequestedBytes),
		NoCache:        p.IsNoCache(),
	}
	if p.IsNoCache() {
		v.Tier = "none"
		return v
	}
	v.Tier = p.Tier.Kind.String()
	v.RootPath = p.Tier.RootPath
	return v
}

// DebugHandler handles debug endpoint requests
type DebugHandler struct {
	planner   port.CapacityPlanner
	budget    domain.CacheBudget
	disk      DiskCache
	memory    port.MemoryCache
	downloads DownloadQueue
	logger    *zap.Logger
}

// NewDebugHandler creates a new DebugHandler. downloads may be nil.
func NewDebugHandler(planner port.CapacityPlanner, budget domain.CacheBudget, disk DiskCache, memory port.MemoryCache, downloads DownloadQueue, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		planner:   planner,
		budget:    budget,
		disk:      disk,
		memory:    memory,
		downloads: downloads,
		logger:    logger,
	}
}

// HandlePlan runs capacity planning against the current storage state
func (h *DebugHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plan, err := h.planner.Plan(h.budget.ExternalBytes, h.budget.InternalBytes, h.budget.MarginBytes)
	if err != nil {
		h.logger.Error("capacity planning failed", zap.Error(err))
		http.Error(w, "Capacity planning failed", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"plan":              newPlanView(plan),
		"prefer_disk_cache": h.planner.PreferDiskCache(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleStats handles debug statistics requests
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.disk.Stats()
	if err != nil {
		h.logger.Error("failed to get cache stats", zap.Error(err))
		http.Error(w, "Failed to get cache stats", http.StatusInternalServerError)
		return
	}

	stats.MemoryHits, stats.MemoryMisses, stats.MemoryBytes = h.memory.Stats()
	if h.downloads != nil {
		stats.PendingDownloads = h.downloads.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
