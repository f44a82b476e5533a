package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
)

func TestHTTPTransferFull(t *testing.T) {
	body := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "unit")
	tr := &HTTPTransferrer{Client: srv.Client()}

	var last int64
	written, err := tr.Transfer(context.Background(), srv.URL, dst, nil, func(w, total int64) {
		last = w
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)
	assert.Equal(t, int64(len(body)), last)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPTransferResumesPartialFile(t *testing.T) {
	body := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write(body)
			return
		}
		offset, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
		if err != nil || offset >= len(body) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(body)-1, len(body)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[offset:])
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "unit")
	require.NoError(t, os.WriteFile(dst, body[:6], 0o600))

	tr := &HTTPTransferrer{Client: srv.Client()}
	written, err := tr.Transfer(context.Background(), srv.URL, dst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPTransferRestartsWhenRangeIgnored(t *testing.T) {
	body := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Server ignores the range request and sends the full body.
		w.Write(body)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "unit")
	require.NoError(t, os.WriteFile(dst, []byte("stale partial"), 0o600))

	tr := &HTTPTransferrer{Client: srv.Client()}
	written, err := tr.Transfer(context.Background(), srv.URL, dst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPTransferCompleteFileTreatedAsComplete(t *testing.T) {
	body := []byte("0123456789abcdef")
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write(body)
			return
		}
		offset, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
		if err != nil || offset >= len(body) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(body)))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(body)-1, len(body)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[offset:])
	}))
	defer srv.Close()

	// The unit finished in an earlier attempt; a bundle retry must not fail
	// on it, and must not re-download it.
	dst := filepath.Join(t.TempDir(), "unit")
	require.NoError(t, os.WriteFile(dst, body, 0o600))

	tr := &HTTPTransferrer{Client: srv.Client()}
	written, err := tr.Transfer(context.Background(), srv.URL, dst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)
	assert.Equal(t, 1, requests)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPTransferRestartsAfterUnsatisfiableRange(t *testing.T) {
	body := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Bare 416 without a Content-Range length.
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "unit")
	require.NoError(t, os.WriteFile(dst, []byte("stale file longer than the resource"), 0o600))

	tr := &HTTPTransferrer{Client: srv.Client()}
	written, err := tr.Transfer(context.Background(), srv.URL, dst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestHTTPTransferErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	tr := &HTTPTransferrer{Client: srv.Client()}
	_, err := tr.Transfer(context.Background(), srv.URL, filepath.Join(t.TempDir(), "unit"), nil, nil)
	require.Error(t, err)
}

func TestHTTPTransferCancelThroughHandle(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 64*1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	handles := make(chan interfaces.TransferHandle, 1)
	dst := filepath.Join(t.TempDir(), "unit")

	tr := &HTTPTransferrer{Client: srv.Client()}
	done := make(chan error, 1)
	go func() {
		_, err := tr.Transfer(context.Background(), srv.URL, dst,
			func(h interfaces.TransferHandle) { handles <- h }, nil)
		done <- err
	}()

	h := <-handles
	h.Cancel()
	err := <-done
	require.Error(t, err)

	// Canceled jobs restart from zero on retry; the partial file is gone.
	assert.NoFileExists(t, dst)
}
