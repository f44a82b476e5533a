package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/TalWayn72/EduSphere-sub002/pkg/interfaces"
)

const copyChunkSize = 32 * 1024

// HTTPTransferrer is the production resumable transfer primitive. It resumes
// interrupted transfers with HTTP range requests when a partial file is
// already on disk, and supports pause/resume/cancel through the handle it
// hands to the caller. Timeouts are whatever the injected client enforces.
type HTTPTransferrer struct {
	Client *http.Client
}

type httpHandle struct {
	mu       sync.Mutex
	paused   bool
	canceled bool
	gate     chan struct{}
	cancel   context.CancelFunc
}

func (h *httpHandle) Pause() {
	h.mu.Lock()
	if !h.paused {
		h.paused = true
		h.gate = make(chan struct{})
	}
	h.mu.Unlock()
}

func (h *httpHandle) Resume() {
	h.mu.Lock()
	if h.paused {
		h.paused = false
		close(h.gate)
	}
	h.mu.Unlock()
}

func (h *httpHandle) Cancel() {
	h.mu.Lock()
	h.canceled = true
	h.mu.Unlock()
	h.cancel()
}

func (h *httpHandle) wasCanceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

// waitIfPaused blocks while the handle is paused. Cancellation wins.
func (h *httpHandle) waitIfPaused(ctx context.Context) error {
	h.mu.Lock()
	paused, gate := h.paused, h.gate
	h.mu.Unlock()
	if !paused {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transfer downloads src into dst. An existing partial dst is continued with
// a range request; servers that ignore the range restart from zero and the
// partial file is truncated. A range the server rejects as unsatisfiable
// means the local file is at or past the resource length: when its size
// matches the Content-Range length it is already complete, otherwise the
// transfer restarts from zero. Cancelling through the handle removes the
// partial file, so a later retry restarts rather than resumes.
func (t *HTTPTransferrer) Transfer(ctx context.Context, src, dst string, started func(interfaces.TransferHandle), progress func(written, total int64)) (written int64, err error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := &httpHandle{cancel: cancel}
	defer func() {
		if err != nil && handle.wasCanceled() {
			os.Remove(dst)
		}
	}()
	if started != nil {
		started(handle)
	}

	var offset int64
	if info, statErr := os.Stat(dst); statErr == nil {
		offset = info.Size()
	}

	resp, err := t.request(ctx, client, src, offset)
	if err != nil {
		return 0, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Full body; any partial file restarts from zero.
		offset = 0
	case http.StatusPartialContent:
	case http.StatusRequestedRangeNotSatisfiable:
		length, ok := completeLength(resp.Header.Get("Content-Range"))
		resp.Body.Close()
		if ok && length == offset {
			return offset, nil
		}
		offset = 0
		resp, err = t.request(ctx, client, src, 0)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return 0, fmt.Errorf("request %s: unexpected status %s", src, resp.Status)
		}
	default:
		resp.Body.Close()
		return 0, fmt.Errorf("request %s: unexpected status %s", src, resp.Status)
	}
	defer resp.Body.Close()

	flags := os.O_WRONLY | os.O_CREATE
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(dst, flags, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", dst, err)
	}
	defer out.Close()

	total := offset
	if resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	written = offset
	buf := make([]byte, copyChunkSize)
	for {
		if err := handle.waitIfPaused(ctx); err != nil {
			return written, err
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write %s: %w", dst, err)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("read %s: %w", src, readErr)
		}
	}
	return written, nil
}

func (t *HTTPTransferrer) request(ctx context.Context, client *http.Client, src string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", src, err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", src, err)
	}
	return resp, nil
}

// completeLength extracts the resource length from a "bytes */N"
// Content-Range header on an unsatisfiable-range response.
func completeLength(contentRange string) (int64, bool) {
	rest, ok := strings.CutPrefix(contentRange, "bytes */")
	if !ok {
		return 0, false
	}
	length, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || length < 0 {
		return 0, false
	}
	return length, true
}
