// SPDX-License-Identifier: MIT

// Package relay pipes one upstream audio stream to one HTTP client with
// range and streaming semantics a browser media element expects.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/metrics"
)

// chunkSize is the copy buffer size. 64 KiB keeps memory per session small
// while staying well above typical TCP segment sizes.
const chunkSize = 64 * 1024

// Policy decides how a client Range header is treated.
type Policy int

const (
	// RangeForward forwards the client range upstream and answers 206.
	RangeForward Policy = iota
	// RangeIgnore always serves the full body with 200. Use when upstream
	// content lengths are unreliable and partial-content bookkeeping causes
	// more harm than seeking is worth.
	RangeIgnore
)

// Relay executes relay sessions against a fixed backend.
type Relay struct {
	backend extract.Backend
	policy  Policy
	logger  zerolog.Logger
}

// New creates a Relay.
func New(backend extract.Backend, policy Policy, logger zerolog.Logger) *Relay {
	return &Relay{backend: backend, policy: policy, logger: logger}
}

// Serve proxies the chosen format to the client. The format was selected
// before the session started and is never re-resolved here.
//
// An error return means no response bytes were written and the caller still
// owns the connection. Once streaming has begun, failures are handled
// internally: client disconnects end the session quietly, upstream errors
// abort the connection without touching the already-sent headers.
func (rl *Relay) Serve(w http.ResponseWriter, r *http.Request, m *extract.Manifest, f extract.Format) error {
	ctx := r.Context()

	rangeHeader := r.Header.Get("Range")
	honorRange := rangeHeader != "" && rl.policy == RangeForward && rl.backend.SupportsRanges()

	opts := extract.OpenOptions{}
	if honorRange {
		opts.RangeHeader = rangeHeader
	}

	upstream, err := rl.backend.Open(ctx, f, opts)
	if err != nil {
		metrics.IncRelayError(rl.backend.Name(), "open")
		return err
	}
	defer upstream.Close()

	h := w.Header()
	h.Set("Content-Type", f.BaseMIME())
	h.Set("Cache-Control", "no-store")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", m.VideoID+"."+f.Container.Ext()))
	if f.ContentLength > 0 && !honorRange && rangeHeader == "" {
		h.Set("Content-Length", strconv.FormatInt(f.ContentLength, 10))
	}

	status := http.StatusOK
	if honorRange {
		// No Content-Range: Open returns only the body, and synthesizing
		// the total from a possibly stale manifest length would misstate
		// it. Media players accept the bare 206.
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}

	metrics.IncActiveSessions(rl.backend.Name())
	defer metrics.DecActiveSessions(rl.backend.Name())

	rl.pipe(ctx, w, upstream, m.VideoID)
	return nil
}

// pipe copies upstream to the client in order, flushing each chunk so
// playback starts before the transfer completes.
func (rl *Relay) pipe(ctx context.Context, w http.ResponseWriter, upstream io.Reader, videoID string) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, chunkSize)
	var written int64

	for {
		n, rerr := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; ctx cancellation tears down upstream.
				rl.logger.Debug().
					Str("video_id", videoID).
					Int64("bytes", written).
					Msg("client disconnected mid-stream")
				metrics.AddRelayedBytes(rl.backend.Name(), written)
				return
			}
			written += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}

		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF):
			metrics.AddRelayedBytes(rl.backend.Name(), written)
			rl.logger.Debug().
				Str("video_id", videoID).
				Int64("bytes", written).
				Msg("relay session complete")
			return
		case ctx.Err() != nil:
			// Downstream cancellation propagated into the upstream read.
			metrics.AddRelayedBytes(rl.backend.Name(), written)
			rl.logger.Debug().
				Str("video_id", videoID).
				Int64("bytes", written).
				Msg("relay session canceled by client")
			return
		default:
			// Upstream died after the response started. Headers are out;
			// the only honest move is to abort the connection. Retrying
			// would duplicate already-delivered bytes.
			metrics.AddRelayedBytes(rl.backend.Name(), written)
			metrics.IncRelayError(rl.backend.Name(), "stream")
			rl.logger.Error().
				Err(rerr).
				Str("video_id", videoID).
				Int64("bytes", written).
				Msg("upstream error mid-stream, aborting connection")
			panic(http.ErrAbortHandler)
		}
	}
}
