// SPDX-License-Identifier: MIT

// Package ytlib implements the extraction backend on top of the in-process
// github.com/kkdai/youtube/v2 client. It is the default backend: no external
// binary, and range requests can be forwarded to the upstream CDN.
package ytlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/soundscope/ytrelay/internal/extract"
)

const backendName = "ytlib"

// The googlevideo CDN rejects requests without a plausible browser
// fingerprint, so every streaming fetch carries these headers.
const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	browserOrigin    = "https://www.youtube.com"
	browserReferer   = "https://www.youtube.com/"
)

// Backend resolves manifests with the youtube library and opens streams with
// a plain HTTP client against the deciphered format URL.
type Backend struct {
	client youtube.Client
	http   *http.Client
	logger zerolog.Logger
}

// New creates a ytlib backend.
func New(logger zerolog.Logger) *Backend {
	return &Backend{
		client: youtube.Client{},
		// No overall timeout: the same client serves unbounded streaming
		// transfers. Dial/TLS handshakes are still bounded.
		http: &http.Client{
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		logger: logger,
	}
}

// Name implements extract.Backend.
func (b *Backend) Name() string { return backendName }

// SupportsRanges implements extract.Backend.
func (b *Backend) SupportsRanges() bool { return true }

// Resolve implements extract.Backend. The opaque handle of each returned
// format is its deciphered stream URL, so Open never re-resolves the video.
func (b *Backend) Resolve(ctx context.Context, url string) (*extract.Manifest, error) {
	if _, err := youtube.ExtractVideoID(url); err != nil {
		return nil, extract.Wrap(backendName, "resolve", extract.ErrInvalidURL, err)
	}

	video, err := b.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, mapVideoError("resolve", err)
	}

	audio := video.Formats.Type("audio")
	m := &extract.Manifest{
		VideoID: video.ID,
		Title:   video.Title,
		Formats: make([]extract.Format, 0, len(audio)),
	}

	for i := range audio {
		f := &audio[i]
		streamURL, err := b.client.GetStreamURLContext(ctx, video, f)
		if err != nil {
			b.logger.Debug().
				Err(err).
				Int("itag", f.ItagNo).
				Str("video_id", video.ID).
				Msg("skipping format without stream URL")
			continue
		}
		m.Formats = append(m.Formats, extract.Format{
			Container:     extract.ContainerFromMIME(f.MimeType),
			MimeType:      f.MimeType,
			Codec:         codecFromMIME(f.MimeType),
			ContentLength: f.ContentLength,
			Handle:        streamURL,
		})
	}

	return m, nil
}

// Open implements extract.Backend. It fetches the format's stream URL
// directly, forwarding the client byte range when one was supplied.
func (b *Backend) Open(ctx context.Context, f extract.Format, opts extract.OpenOptions) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Handle, nil)
	if err != nil {
		return nil, extract.Wrap(backendName, "open", extract.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Origin", browserOrigin)
	req.Header.Set("Referer", browserReferer)
	if opts.RangeHeader != "" {
		req.Header.Set("Range", opts.RangeHeader)
	}

	res, err := b.http.Do(req)
	if err != nil {
		return nil, extract.Wrap(backendName, "open", extract.ErrUpstreamUnavailable, err)
	}

	switch res.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return res.Body, nil
	case http.StatusForbidden:
		_ = res.Body.Close()
		return nil, extract.Wrap(backendName, "open", extract.ErrUpstreamBlocked,
			fmt.Errorf("upstream answered HTTP %d", res.StatusCode))
	case http.StatusNotFound, http.StatusGone:
		_ = res.Body.Close()
		return nil, extract.Wrap(backendName, "open", extract.ErrVideoUnavailable,
			fmt.Errorf("upstream answered HTTP %d", res.StatusCode))
	default:
		_ = res.Body.Close()
		return nil, extract.Wrap(backendName, "open", extract.ErrUpstreamUnavailable,
			fmt.Errorf("upstream answered HTTP %d", res.StatusCode))
	}
}

// mapVideoError translates youtube library failures into the relay taxonomy.
func mapVideoError(op string, err error) error {
	switch {
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return extract.Wrap(backendName, op, extract.ErrInvalidURL, err)
	case errors.Is(err, youtube.ErrLoginRequired):
		return extract.Wrap(backendName, op, extract.ErrUpstreamBlocked, err)
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return extract.Wrap(backendName, op, extract.ErrVideoUnavailable, err)
	}

	var status *youtube.ErrPlayabiltyStatus
	if errors.As(err, &status) {
		if strings.Contains(strings.ToLower(status.Reason), "bot") {
			return extract.Wrap(backendName, op, extract.ErrUpstreamBlocked, err)
		}
		return extract.Wrap(backendName, op, extract.ErrVideoUnavailable, err)
	}

	return extract.Wrap(backendName, op, extract.ErrUpstreamUnavailable, err)
}

// codecFromMIME pulls the codecs parameter out of a MIME type string.
func codecFromMIME(mime string) string {
	const marker = "codecs="
	i := strings.Index(mime, marker)
	if i < 0 {
		return ""
	}
	codec := mime[i+len(marker):]
	return strings.Trim(codec, "\" ")
}
