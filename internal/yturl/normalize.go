// SPDX-License-Identifier: MIT

// Package yturl canonicalizes the YouTube URL variants accepted by the relay.
package yturl

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURL marks input that cannot be mapped to a YouTube video.
var ErrInvalidURL = errors.New("yturl: not a recognizable YouTube video URL")

const watchPrefix = "https://www.youtube.com/watch?v="

// Normalize rewrites the accepted YouTube URL variants to the canonical
// watch form. Unrecognized input passes through unchanged; validity is
// confirmed downstream by the extraction backend. Normalize is pure and
// idempotent.
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	host := strings.ToLower(u.Hostname())

	// youtu.be short links carry the video ID as the path.
	if host == "youtu.be" {
		id := strings.TrimPrefix(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		if id != "" {
			return watchPrefix + id
		}
		return raw
	}

	// m.youtube.com, music.youtube.com, www.youtube.com and friends.
	if strings.Contains(host, ".youtube.") || host == "youtube.com" {
		if v := u.Query().Get("v"); v != "" {
			return watchPrefix + v
		}
	}

	return raw
}

// VideoID extracts the 11-character video identifier from a URL accepted by
// Normalize. It returns ErrInvalidURL when no identifier can be found.
func VideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())

	var id string
	switch {
	case host == "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
	case strings.Contains(host, "youtube.com"):
		id = u.Query().Get("v")
	default:
		return "", ErrInvalidURL
	}

	if len(id) != 11 {
		return "", ErrInvalidURL
	}
	return id, nil
}
