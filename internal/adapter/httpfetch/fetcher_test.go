package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
)

func TestFetcher_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "picture-cache-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>"))
	})
	mux.HandleFunc("/busy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(make([]byte, 64))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(&Config{MaxBodyBytes: 32, UserAgent: "picture-cache-test"}, nil)
	ctx := context.Background()

	img, err := f.Fetch(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(img.Data))
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, srv.URL+"/ok.png", img.SourceURL)

	_, err = f.Fetch(ctx, srv.URL+"/page")
	assert.ErrorIs(t, err, domain.ErrUnexpectedType)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.Fetch(ctx, srv.URL+"/busy")
	require.Error(t, err)
	after, ok := domain.GetRetryAfter(err)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, after)

	_, err = f.Fetch(ctx, srv.URL+"/big")
	assert.ErrorIs(t, err, domain.ErrBodyTooLarge)

	_, err = f.Fetch(ctx, "://bad")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFetcher_RejectsUnsupportedURLs(t *testing.T) {
	f := NewFetcher(nil, nil)

	for _, raw := range []string{
		"example.com/a.png",
		"file:///etc/passwd",
		"ftp://example.com/a.png",
		"gopher://example.com/",
		"http:///a.png",
	} {
		_, err := f.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}

func TestFetcher_AllowedHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "http://blocked.invalid/a.png", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	f := NewFetcher(&Config{AllowedHosts: []string{"127.0.0.1", "*.Example.com"}}, nil)
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/a.png")
	require.NoError(t, err)

	_, err = f.Fetch(ctx, "http://evil.test/a.png")
	assert.ErrorIs(t, err, domain.ErrHostNotAllowed)

	_, err = f.Fetch(ctx, srv.URL+"/redirect")
	assert.ErrorIs(t, err, domain.ErrHostNotAllowed, "redirects are checked too")

	tests := []struct {
		host string
		want bool
	}{
		{"img.example.com", true},
		{"a.b.example.com", true},
		{"example.com", false},
		{"badexample.com", false},
		{"127.0.0.1", true},
		{"localhost", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hostAllowed(f.config.AllowedHosts, tt.host), tt.host)
	}
	assert.True(t, hostAllowed(nil, "anything.test"))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 30*time.Second)
}

func TestConnectivity_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))

	logger := zap.NewNop()
	ctx := context.Background()

	assert.True(t, NewConnectivity(srv.URL, time.Second, logger).Check(ctx))
	assert.True(t, NewConnectivity("", 0, logger).Check(ctx), "disabled probe reports online")

	url := srv.URL
	srv.Close()
	assert.False(t, NewConnectivity(url, time.Second, logger).Check(ctx))
}

func TestConnectivity_ProbeInterval(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx := context.Background()

	c := NewConnectivity(srv.URL, time.Second, zap.NewNop()).WithProbeInterval(time.Hour)
	for i := 0; i < 5; i++ {
		assert.True(t, c.Check(ctx))
	}
	assert.Equal(t, int32(1), hits.Load())

	uncached := NewConnectivity(srv.URL, time.Second, zap.NewNop())
	uncached.Check(ctx)
	uncached.Check(ctx)
	assert.Equal(t, int32(3), hits.Load())
}
