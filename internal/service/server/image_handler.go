package server

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
)

// ImageHandler serves cached images: /images?url={source}
type ImageHandler struct {
	loader ImageLoader
	logger *zap.Logger
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(loader ImageLoader, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		loader: loader,
		logger: logger,
	}
}

// HandleImage handles image requests
func (h *ImageHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}

	img, err := h.loader.Load(r.Context(), url)
	if err != nil {
		h.writeLoadError(w, url, err)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(img.Size(), 10))
	w.Header().Set("X-Cache-Profile", h.loader.Profile().Name)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(img.Data)
}

func (h *ImageHandler) writeLoadError(w http.ResponseWriter, url string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, "Invalid image URL", http.StatusBadRequest)
	case errors.Is(err, domain.ErrHostNotAllowed):
		http.Error(w, "Image host not allowed", http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Image not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrOffline):
		http.Error(w, "Network unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrQueueClosed), errors.Is(err, domain.ErrQueueFull):
		http.Error(w, "Download queue unavailable", http.StatusServiceUnavailable)
	case domain.IsRetryable(err):
		if retryAfter, _ := domain.GetRetryAfter(err); retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		}
		h.logger.Info("upstream busy", zap.String("url", url), zap.Error(err))
		http.Error(w, "Upstream busy, retry later", http.StatusServiceUnavailable)
	default:
		h.logger.Warn("image load failed", zap.String("url", url), zap.Error(err))
		http.Error(w, "Failed to load image", http.StatusBadGateway)
	}
}
