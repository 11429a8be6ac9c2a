// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscope/ytrelay/internal/extract"
)

// fakeBackend serves canned chunks and records how it was opened.
type fakeBackend struct {
	mu       sync.Mutex
	chunks   [][]byte
	tailErr  error // returned after the chunks are exhausted; nil means EOF
	openErr  error
	ranges   bool
	blockEnd bool // after the chunks, block until ctx is canceled

	gotRange string
	canceled chan struct{} // closed when a blocked stream observes cancel
}

func newFakeBackend(ranges bool, chunks ...[]byte) *fakeBackend {
	return &fakeBackend{chunks: chunks, ranges: ranges, canceled: make(chan struct{})}
}

func (b *fakeBackend) Resolve(context.Context, string) (*extract.Manifest, error) {
	return nil, nil
}

func (b *fakeBackend) Open(ctx context.Context, _ extract.Format, opts extract.OpenOptions) (io.ReadCloser, error) {
	b.mu.Lock()
	b.gotRange = opts.RangeHeader
	b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &fakeStream{backend: b, ctx: ctx, chunks: b.chunks}, nil
}

func (b *fakeBackend) SupportsRanges() bool { return b.ranges }
func (b *fakeBackend) Name() string         { return "fake" }

func (b *fakeBackend) rangeSeen() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gotRange
}

type fakeStream struct {
	backend *fakeBackend
	ctx     context.Context
	chunks  [][]byte
	pos     int
	closed  sync.Once
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.pos < len(s.chunks) {
		n := copy(p, s.chunks[s.pos])
		s.pos++
		return n, nil
	}
	if s.backend.blockEnd {
		<-s.ctx.Done()
		s.closed.Do(func() { close(s.backend.canceled) })
		return 0, s.ctx.Err()
	}
	if s.backend.tailErr != nil {
		return 0, s.backend.tailErr
	}
	return 0, io.EOF
}

func (s *fakeStream) Close() error { return nil }

func testManifest() *extract.Manifest {
	return &extract.Manifest{
		VideoID: "dQw4w9WgXcQ",
		Formats: []extract.Format{{
			Container:     extract.ContainerMP4,
			MimeType:      "audio/mp4; codecs=\"mp4a.40.2\"",
			ContentLength: 10,
			Handle:        "h",
		}},
	}
}

func serveOnce(rl *Relay, m *extract.Manifest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rl.Serve(w, r, m, m.Formats[0]); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func TestServeForwardsRange(t *testing.T) {
	b := newFakeBackend(true, []byte("partial"))
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Range", "bytes=100-")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusPartialContent, res.StatusCode)
	assert.Equal(t, "bytes=100-", b.rangeSeen())
	assert.Empty(t, res.Header.Get("Content-Range"), "no total length is known to report")

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "partial", string(body))
}

func TestServeIgnorePolicyAlways200(t *testing.T) {
	b := newFakeBackend(true, []byte("full body"))
	rl := New(b, RangeIgnore, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Range", "bytes=100-")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, b.rangeSeen(), "range must not reach upstream under the ignore policy")

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "full body", string(body))
}

func TestServeBackendWithoutRangesForces200(t *testing.T) {
	b := newFakeBackend(false, []byte("x"))
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Range", "bytes=0-")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, b.rangeSeen())
}

func TestServeHeaders(t *testing.T) {
	b := newFakeBackend(true, []byte("0123456789"))
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "audio/mp4", res.Header.Get("Content-Type"))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "bytes", res.Header.Get("Accept-Ranges"))
	assert.Equal(t, "10", res.Header.Get("Content-Length"))
	assert.Equal(t, `inline; filename="dQw4w9WgXcQ.m4a"`, res.Header.Get("Content-Disposition"))
}

func TestServeOpenErrorLeavesConnectionUsable(t *testing.T) {
	b := newFakeBackend(true)
	b.openErr = extract.Wrap("fake", "open", extract.ErrUpstreamUnavailable, nil)
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	// Serve returned before writing anything, so the handler could still
	// produce a clean error response.
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestServeUpstreamErrorMidStreamAbortsConnection(t *testing.T) {
	// Fewer bytes than the declared content length, then a transport error.
	b := newFakeBackend(true, []byte("some "), []byte("byt"))
	b.tailErr = io.ErrUnexpectedEOF
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	_, err = io.ReadAll(res.Body)
	assert.Error(t, err, "connection must be aborted, not completed cleanly")
}

func TestServeClientDisconnectCancelsUpstream(t *testing.T) {
	b := newFakeBackend(true, []byte("head"))
	b.blockEnd = true
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(res.Body, buf)
	require.NoError(t, err)

	cancel()
	_ = res.Body.Close()

	select {
	case <-b.canceled:
		// Upstream read observed the cancellation.
	case <-time.After(2 * time.Second):
		t.Fatal("upstream was not canceled after client disconnect")
	}
}

func TestServeHEADSendsHeadersOnly(t *testing.T) {
	b := newFakeBackend(true, []byte("0123456789"))
	rl := New(b, RangeForward, zerolog.New(io.Discard))
	srv := httptest.NewServer(serveOnce(rl, testManifest()))
	defer srv.Close()

	res, err := http.Head(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "audio/mp4", res.Header.Get("Content-Type"))
	body, _ := io.ReadAll(res.Body)
	assert.Empty(t, body)
}
