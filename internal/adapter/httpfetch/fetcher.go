package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// Config contains downloader configuration
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// AllowedHosts restricts downloads to these hosts. An entry of the form
	// "*.example.com" matches any subdomain of example.com. Empty allows
	// every host.
	AllowedHosts []string
}

// DefaultConfig returns default downloader configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:      20 * time.Second,
		MaxBodyBytes: 10 * 1024 * 1024,
		UserAgent:    "picture-cache",
	}
}

// Fetcher downloads images over HTTP
type Fetcher struct {
	config *Config
	client *http.Client
}

var _ port.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a new Fetcher. A nil client uses a client with the
// configured timeout that applies the URL checks to every redirect.
func NewFetcher(cfg *Config, client *http.Client) *Fetcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	f := &Fetcher{config: cfg}
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return f.checkURL(req.URL)
			},
		}
	}
	f.client = client
	return f
}

// Fetch downloads rawURL. 429 and 5xx responses are returned as retryable
// errors carrying the server's Retry-After hint.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := f.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.NewRetryableError(
			fmt.Errorf("upstream returned %s", resp.Status),
			parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, rawURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isImageType(contentType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnexpectedType, contentType)
	}

	if resp.ContentLength > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrBodyTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", domain.ErrBodyTooLarge, f.config.MaxBodyBytes)
	}

	return &domain.Image{
		SourceURL:   rawURL,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// checkURL accepts absolute http(s) URLs whose host passes AllowedHosts
func (f *Fetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidInput)
	}
	if !hostAllowed(f.config.AllowedHosts, host) {
		return fmt.Errorf("%w: %s", domain.ErrHostNotAllowed, host)
	}
	return nil
}

func hostAllowed(allowed []string, host string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}

func isImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
