// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/metrics"
	"github.com/soundscope/ytrelay/internal/yturl"
)

// handleAudio is GET/HEAD /api/audio?url=<raw>: normalize, resolve, select
// one audio format, then hand the connection to the relay.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}

	canonical := yturl.Normalize(raw)
	videoID, err := yturl.VideoID(canonical)
	if err != nil {
		code, msg := statusForError(err)
		http.Error(w, msg, code)
		return
	}

	logger := s.logger.With().
		Str("video_id", videoID).
		Str("remote_addr", r.RemoteAddr).
		Logger()

	m, err := s.resolveManifest(r, videoID, canonical)
	if err != nil {
		metrics.IncRelayError(s.backend.Name(), "resolve")
		code, msg := statusForError(err)
		logger.Warn().Err(err).Int("status", code).Msg("manifest resolution failed")
		http.Error(w, msg, code)
		return
	}

	format, err := extract.SelectAudio(m)
	if err != nil {
		metrics.IncRelayError(s.backend.Name(), "select")
		code, msg := statusForError(err)
		logger.Warn().Err(err).Int("status", code).Msg("no usable audio format")
		http.Error(w, msg, code)
		return
	}

	logger.Info().
		Str("backend", s.backend.Name()).
		Str("content_type", format.BaseMIME()).
		Msg("starting relay session")
	if err := s.relay.Serve(w, r, m, format); err != nil {
		code, msg := statusForError(err)
		logger.Warn().Err(err).Int("status", code).Msg("upstream open failed")
		http.Error(w, msg, code)
		return
	}
}

// resolveManifest consults the optional cache before asking the backend,
// then populates the cache on a miss.
func (s *Server) resolveManifest(r *http.Request, videoID, canonical string) (*extract.Manifest, error) {
	ctx := r.Context()
	start := time.Now()

	if s.cache != nil {
		if m, ok := s.cache.Get(ctx, videoID); ok {
			metrics.ObserveResolveDuration(s.backend.Name(), true, time.Since(start))
			return m, nil
		}
	}

	m, err := extract.Resolve(ctx, s.backend, canonical, s.cfg.ResolveTimeout)
	if err != nil {
		return nil, err
	}
	metrics.ObserveResolveDuration(s.backend.Name(), false, time.Since(start))

	if s.cache != nil {
		s.cache.Put(ctx, videoID, m)
	}
	return m, nil
}
