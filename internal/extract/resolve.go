// SPDX-License-Identifier: MIT

package extract

import (
	"context"
	"errors"
	"time"
)

// Resolve runs b.Resolve under a bounded timeout with a single retry on
// transport failure. Video-level failures (invalid, unavailable, blocked)
// are never retried. Streaming transfers are never retried either; retry
// exists only for the manifest fetch, before any response bytes commit.
func Resolve(ctx context.Context, b Backend, url string, timeout time.Duration) (*Manifest, error) {
	attempt := func() (*Manifest, error) {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return b.Resolve(rctx, url)
	}

	m, err := attempt()
	if err == nil {
		return m, nil
	}
	if ctx.Err() != nil || !errors.Is(err, ErrUpstreamUnavailable) {
		return nil, err
	}
	return attempt()
}
