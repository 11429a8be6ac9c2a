// SPDX-License-Identifier: MIT

// Package extract defines the extraction backend abstraction: enumerating
// the audio stream formats of a video and opening one of them for reading.
package extract

import (
	"context"
	"io"
	"strings"
)

// Container is the closed set of audio containers the relay distinguishes.
type Container int

const (
	ContainerOther Container = iota
	ContainerMP4
	ContainerWebM
)

// DefaultMIME returns the fallback Content-Type for a container when the
// format descriptor carries no usable MIME type.
func (c Container) DefaultMIME() string {
	switch c {
	case ContainerMP4:
		return "audio/mp4"
	case ContainerWebM:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// Ext returns the filename extension for a container.
func (c Container) Ext() string {
	switch c {
	case ContainerMP4:
		return "m4a"
	case ContainerWebM:
		return "webm"
	default:
		return "bin"
	}
}

// ContainerFromMIME classifies a MIME type string into the container enum.
func ContainerFromMIME(mime string) Container {
	switch {
	case strings.HasPrefix(mime, "audio/mp4"):
		return ContainerMP4
	case strings.HasPrefix(mime, "audio/webm"):
		return ContainerWebM
	default:
		return ContainerOther
	}
}

// Format describes one audio-only stream variant of a video. The Handle is
// an opaque value only the producing backend knows how to open.
type Format struct {
	Container     Container `json:"container"`
	MimeType      string    `json:"mimeType"`
	Codec         string    `json:"codec"`
	ContentLength int64     `json:"contentLength"` // 0 when unknown
	Handle        string    `json:"handle"`
}

// BaseMIME returns the media type without codec parameters, falling back to
// the container default when the descriptor carries none.
func (f Format) BaseMIME() string {
	mime := f.MimeType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return f.Container.DefaultMIME()
	}
	return mime
}

// Manifest is the audio-only format list of one video, in upstream order.
type Manifest struct {
	VideoID string   `json:"videoId"`
	Title   string   `json:"title"`
	Formats []Format `json:"formats"`
}

// OpenOptions carries per-open parameters for a streaming fetch.
type OpenOptions struct {
	// RangeHeader is the verbatim client Range value to forward upstream.
	// Empty requests the full body.
	RangeHeader string
}

// Backend enumerates and opens YouTube media streams.
type Backend interface {
	// Resolve validates the URL and fetches the audio-only format manifest.
	Resolve(ctx context.Context, url string) (*Manifest, error)

	// Open starts a streaming fetch of the given format. The returned reader
	// is bound to ctx: canceling ctx releases the upstream connection.
	Open(ctx context.Context, f Format, opts OpenOptions) (io.ReadCloser, error)

	// SupportsRanges reports whether Open honors OpenOptions.RangeHeader.
	SupportsRanges() bool

	// Name identifies the backend in logs and metrics.
	Name() string
}

// SelectAudio picks one format from the manifest: an audio/mp4 descriptor if
// present (broadest client playback compatibility), otherwise the first
// descriptor in manifest order. It fails with ErrNoAudioStream when the
// manifest is empty.
func SelectAudio(m *Manifest) (Format, error) {
	if m == nil || len(m.Formats) == 0 {
		return Format{}, ErrNoAudioStream
	}
	for _, f := range m.Formats {
		if f.Container == ContainerMP4 {
			return f, nil
		}
	}
	return m.Formats[0], nil
}
