package httpfetch

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/port"
	"github.com/vertextoedge/picture-cache/internal/util/ratelimiter"
)

// Connectivity probes a well-known URL to decide whether the network is up
type Connectivity struct {
	probeURL string
	client   *http.Client
	memo     *ratelimiter.Memo
	logger   *zap.Logger
}

var _ port.ConnectivityChecker = (*Connectivity)(nil)

// NewConnectivity creates a checker. An empty probeURL disables the probe
// and reports the network as always reachable.
func NewConnectivity(probeURL string, timeout time.Duration, logger *zap.Logger) *Connectivity {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &Connectivity{
		probeURL: probeURL,
		client:   &http.Client{Timeout: timeout},
		memo:     ratelimiter.NewMemo(0),
		logger:   logger,
	}
}

// WithProbeInterval reuses a probe result for interval instead of probing
// before every download.
func (c *Connectivity) WithProbeInterval(interval time.Duration) *Connectivity {
	c.memo = ratelimiter.NewMemo(interval)
	return c
}

// Check returns true if the probe URL answered with any HTTP response
func (c *Connectivity) Check(ctx context.Context) bool {
	if c.probeURL == "" {
		return true
	}
	return c.memo.Get(func() bool { return c.probe(ctx) })
}

func (c *Connectivity) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		c.logger.Warn("invalid connectivity probe url", zap.String("url", c.probeURL), zap.Error(err))
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("connectivity probe failed", zap.String("url", c.probeURL), zap.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}
