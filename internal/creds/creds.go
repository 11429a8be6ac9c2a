// SPDX-License-Identifier: MIT

// Package creds provides YouTube credential material (an exported browser
// cookie jar) to extraction backends through an injectable provider, so the
// relay never reads a fixed path directly and tests can substitute doubles.
package creds

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrNotConfigured signals that no credential source is set up. Backends
// treat this as "run without cookies" until upstream starts blocking.
var ErrNotConfigured = errors.New("creds: no cookie file configured")

// Credentials is the material a backend attaches to upstream requests.
type Credentials struct {
	// CookiesPath points at a Netscape-format cookies.txt export.
	CookiesPath string
}

// Provider loads credentials on demand.
type Provider interface {
	Load() (Credentials, error)
}

// None is a Provider that is never configured.
type None struct{}

func (None) Load() (Credentials, error) { return Credentials{}, ErrNotConfigured }

// FileProvider serves credentials from a cookies.txt path and tracks its
// existence with fsnotify, so an operator can drop in a fresh export after
// an upstream bot-detection block without restarting the daemon.
type FileProvider struct {
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	present bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider creates a FileProvider for path. The watcher is best
// effort: when it cannot be established the provider still answers Load
// with a fresh stat.
func NewFileProvider(path string, logger zerolog.Logger) *FileProvider {
	p := &FileProvider{path: path, logger: logger, done: make(chan struct{})}
	p.refresh()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn().Err(err).Msg("cookie file watcher unavailable, falling back to stat per load")
		return p
	}
	// Watch the directory: editors and scp replace the file, which drops a
	// watch registered on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("cannot watch cookie file directory")
		_ = w.Close()
		return p
	}
	p.watcher = w
	go p.watch()
	return p
}

// Load implements Provider.
func (p *FileProvider) Load() (Credentials, error) {
	if p.watcher == nil {
		p.refresh()
	}
	p.mu.RLock()
	present := p.present
	p.mu.RUnlock()
	if !present {
		return Credentials{}, ErrNotConfigured
	}
	return Credentials{CookiesPath: p.path}, nil
}

// Close stops the file watcher.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

func (p *FileProvider) refresh() {
	_, err := os.Stat(p.path)
	p.mu.Lock()
	p.present = err == nil
	p.mu.Unlock()
}

func (p *FileProvider) watch() {
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != p.path {
				continue
			}
			p.refresh()
			p.logger.Info().
				Str("path", p.path).
				Str("op", ev.Op.String()).
				Bool("present", p.configured()).
				Msg("cookie file changed")
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("cookie file watcher error")
		}
	}
}

func (p *FileProvider) configured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.present
}
