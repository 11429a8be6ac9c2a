// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"

	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/yturl"
)

// statusForError maps relay errors onto HTTP status codes and the
// plain-text bodies the client sees. Structured error payloads are
// deliberately absent; the consumer is an <audio> element.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, yturl.ErrInvalidURL), errors.Is(err, extract.ErrInvalidURL):
		return http.StatusBadRequest, "Invalid YouTube URL"
	case errors.Is(err, extract.ErrUpstreamBlocked):
		return http.StatusForbidden,
			"YouTube is blocking automated requests for this video. " +
				"Export a fresh cookies.txt while signed in, or try another video."
	case errors.Is(err, extract.ErrNoAudioStream):
		return http.StatusInternalServerError, "No audio stream available"
	case errors.Is(err, extract.ErrVideoUnavailable):
		return http.StatusInternalServerError, "Video unavailable"
	default:
		return http.StatusInternalServerError, "Failed to fetch audio"
	}
}
