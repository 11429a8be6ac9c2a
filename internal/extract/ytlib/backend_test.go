// SPDX-License-Identifier: MIT

package ytlib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/log"
)

func TestResolveRejectsNonVideoURL(t *testing.T) {
	b := New(log.WithComponent("test"))
	_, err := b.Resolve(context.Background(), "https://example.com/watch?v=nope")
	assert.ErrorIs(t, err, extract.ErrInvalidURL)
}

func TestMapVideoError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{youtube.ErrVideoIDMinLength, extract.ErrInvalidURL},
		{youtube.ErrInvalidCharactersInVideoID, extract.ErrInvalidURL},
		{youtube.ErrLoginRequired, extract.ErrUpstreamBlocked},
		{youtube.ErrVideoPrivate, extract.ErrVideoUnavailable},
		{&youtube.ErrPlayabiltyStatus{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm you're not a bot"}, extract.ErrUpstreamBlocked},
		{&youtube.ErrPlayabiltyStatus{Status: "UNPLAYABLE", Reason: "Video unavailable"}, extract.ErrVideoUnavailable},
		{errors.New("dial tcp: connection refused"), extract.ErrUpstreamUnavailable},
	}

	for _, tc := range cases {
		assert.ErrorIs(t, mapVideoError("resolve", tc.in), tc.want, "input %v", tc.in)
	}
}

func TestOpenForwardsRangeAndBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	b := New(log.WithComponent("test"))
	rc, err := b.Open(context.Background(), extract.Format{Handle: srv.URL}, extract.OpenOptions{RangeHeader: "bytes=100-"})
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "bytes=100-", got.Get("Range"))
	assert.Equal(t, browserUserAgent, got.Get("User-Agent"))
	assert.Equal(t, browserOrigin, got.Get("Origin"))
}

func TestOpenStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, extract.ErrUpstreamBlocked},
		{http.StatusNotFound, extract.ErrVideoUnavailable},
		{http.StatusGone, extract.ErrVideoUnavailable},
		{http.StatusBadGateway, extract.ErrUpstreamUnavailable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		b := New(log.WithComponent("test"))
		_, err := b.Open(context.Background(), extract.Format{Handle: srv.URL}, extract.OpenOptions{})
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		srv.Close()
	}
}

func TestCodecFromMIME(t *testing.T) {
	assert.Equal(t, "mp4a.40.2", codecFromMIME("audio/mp4; codecs=\"mp4a.40.2\""))
	assert.Equal(t, "opus", codecFromMIME("audio/webm; codecs=\"opus\""))
	assert.Equal(t, "", codecFromMIME("audio/mp4"))
}
