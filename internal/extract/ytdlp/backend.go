// SPDX-License-Identifier: MIT

// Package ytdlp implements the extraction backend by shelling out to the
// yt-dlp binary. It is the pluggable fallback strategy for videos the
// in-process library cannot decipher; it needs exported browser cookies to
// survive upstream bot detection and cannot forward byte ranges.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/soundscope/ytrelay/internal/creds"
	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/yturl"
)

const backendName = "ytdlp"

// botDetectionSignature is the stderr marker yt-dlp prints when YouTube
// serves its "confirm you're not a bot" interstitial.
const botDetectionSignature = "sign in to confirm you're not a bot"

// Backend drives a yt-dlp subprocess per operation.
type Backend struct {
	binPath string
	creds   creds.Provider
	logger  zerolog.Logger
}

// New creates a ytdlp backend. provider may be creds.None{} when no cookie
// file is configured.
func New(binPath string, provider creds.Provider, logger zerolog.Logger) *Backend {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if provider == nil {
		provider = creds.None{}
	}
	return &Backend{binPath: binPath, creds: provider, logger: logger}
}

// Name implements extract.Backend.
func (b *Backend) Name() string { return backendName }

// SupportsRanges implements extract.Backend. yt-dlp writes a continuous
// stream to stdout; there is no way to forward a client byte range.
func (b *Backend) SupportsRanges() bool { return false }

// ytdlpJSON mirrors the fields of `yt-dlp -J` output the relay consumes.
type ytdlpJSON struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Formats []struct {
		FormatID string  `json:"format_id"`
		Ext      string  `json:"ext"`
		ACodec   string  `json:"acodec"`
		VCodec   string  `json:"vcodec"`
		Filesize float64 `json:"filesize"`
	} `json:"formats"`
}

// Resolve implements extract.Backend.
func (b *Backend) Resolve(ctx context.Context, url string) (*extract.Manifest, error) {
	id, err := yturl.VideoID(url)
	if err != nil {
		return nil, extract.Wrap(backendName, "resolve", extract.ErrInvalidURL, err)
	}

	args := append(b.commonArgs(), "-J", "--no-playlist", url)
	cmd := exec.CommandContext(ctx, b.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, b.classify("resolve", stderr.String(), err)
	}

	var data ytdlpJSON
	if err := json.Unmarshal(stdout.Bytes(), &data); err != nil {
		return nil, extract.Wrap(backendName, "resolve", extract.ErrUpstreamUnavailable,
			fmt.Errorf("parse yt-dlp manifest: %w", err))
	}
	if data.ID == "" {
		data.ID = id
	}

	m := &extract.Manifest{VideoID: data.ID, Title: data.Title}
	for _, f := range data.Formats {
		if !isAudioOnly(f.ACodec, f.VCodec) {
			continue
		}
		container := containerForExt(f.Ext)
		m.Formats = append(m.Formats, extract.Format{
			Container:     container,
			MimeType:      container.DefaultMIME(),
			Codec:         f.ACodec,
			ContentLength: int64(f.Filesize),
			// yt-dlp re-requests the stream by format id, so the handle
			// carries both the id and the watch URL it belongs to.
			Handle: f.FormatID + "|" + url,
		})
	}

	return m, nil
}

// Open implements extract.Backend. It starts yt-dlp writing the selected
// format to stdout and hands the pipe to the caller. RangeHeader is ignored
// (SupportsRanges is false); the relay serves the full body instead.
func (b *Backend) Open(ctx context.Context, f extract.Format, _ extract.OpenOptions) (io.ReadCloser, error) {
	formatID, url, ok := strings.Cut(f.Handle, "|")
	if !ok || formatID == "" || url == "" {
		return nil, extract.Wrap(backendName, "open", extract.ErrInvalidURL,
			fmt.Errorf("malformed format handle %q", f.Handle))
	}

	args := append(b.commonArgs(), "-f", formatID, "-o", "-", url)
	cmd := exec.CommandContext(ctx, b.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, extract.Wrap(backendName, "open", extract.ErrUpstreamUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, extract.Wrap(backendName, "open", extract.ErrUpstreamUnavailable, err)
	}

	// Block until the first byte (or immediate exit) so startup failures
	// surface as a clean error response instead of an empty 200 body.
	br := bufio.NewReaderSize(stdout, 64*1024)
	if _, err := br.Peek(1); err != nil {
		werr := cmd.Wait()
		return nil, b.classify("open", stderr.String(), errors.Join(err, werr))
	}

	return &processStream{r: br, cmd: cmd, logger: b.logger}, nil
}

// commonArgs returns the flags shared by every yt-dlp invocation, including
// the cookie jar when the credential provider is configured.
func (b *Backend) commonArgs() []string {
	args := []string{"--no-warnings", "--quiet", "--no-check-certificate"}
	c, err := b.creds.Load()
	switch {
	case err == nil:
		args = append(args, "--cookies", c.CookiesPath)
	case errors.Is(err, creds.ErrNotConfigured):
		// Run without cookies until upstream objects.
	default:
		b.logger.Warn().Err(err).Msg("credential provider failed, running without cookies")
	}
	return args
}

// classify maps yt-dlp stderr output onto the relay error taxonomy.
func (b *Backend) classify(op, stderr string, err error) error {
	// yt-dlp prints a typographic apostrophe in "you’re not a bot".
	s := strings.ToLower(strings.ReplaceAll(stderr, "’", "'"))
	switch {
	case strings.Contains(s, botDetectionSignature):
		return extract.Wrap(backendName, op, extract.ErrUpstreamBlocked,
			fmt.Errorf("YouTube is blocking automated requests; export a fresh cookies.txt while signed in: %w", err))
	case strings.Contains(s, "video unavailable"),
		strings.Contains(s, "private video"),
		strings.Contains(s, "has been removed"),
		strings.Contains(s, "not available in your country"):
		return extract.Wrap(backendName, op, extract.ErrVideoUnavailable, err)
	case strings.Contains(s, "is not a valid url"),
		strings.Contains(s, "unsupported url"):
		return extract.Wrap(backendName, op, extract.ErrInvalidURL, err)
	default:
		return extract.Wrap(backendName, op, extract.ErrUpstreamUnavailable, err)
	}
}

func isAudioOnly(acodec, vcodec string) bool {
	return acodec != "" && acodec != "none" && (vcodec == "" || vcodec == "none")
}

func containerForExt(ext string) extract.Container {
	switch ext {
	case "m4a", "mp4":
		return extract.ContainerMP4
	case "webm":
		return extract.ContainerWebM
	default:
		return extract.ContainerOther
	}
}

// processStream adapts a running yt-dlp process to io.ReadCloser.
type processStream struct {
	r      io.Reader
	cmd    *exec.Cmd
	logger zerolog.Logger
}

func (p *processStream) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

// Close reaps the subprocess. Killing first makes Close safe to call while
// the process is still streaming (client disconnect).
func (p *processStream) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	if err := p.cmd.Wait(); err != nil {
		p.logger.Debug().Err(err).Msg("yt-dlp exited after close")
	}
	return nil
}
