// SPDX-License-Identifier: MIT

package creds

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscope/ytrelay/internal/log"
)

func TestNoneProvider(t *testing.T) {
	_, err := None{}.Load()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFileProviderMissingFile(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "cookies.txt"), log.WithComponent("test"))
	defer p.Close()

	_, err := p.Load()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFileProviderExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	p := NewFileProvider(path, log.WithComponent("test"))
	defer p.Close()

	c, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, path, c.CookiesPath)
}

func TestFileProviderPicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")

	p := NewFileProvider(path, log.WithComponent("test"))
	defer p.Close()

	_, err := p.Load()
	require.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := p.Load(); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("provider never observed the new cookie file")
}
