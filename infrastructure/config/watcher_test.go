package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcher_DisabledOutsideDevelopment(t *testing.T) {
	cfg := newDefaults()
	cfg.Environment = Production

	w, err := NewWatcher(filepath.Join(t.TempDir(), "boardsync.yaml"), cfg, zap.NewNop())

	require.NoError(t, err)
	assert.Same(t, cfg, w.Config())
	w.Stop()
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	path := writeConfigFile(t, "environment: development\npresence:\n  typing_ttl: 3s\n")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	w.OnChange(func(next *Config) {
		select {
		case reloaded <- next:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("environment: development\npresence:\n  typing_ttl: 7s\n"), 0o600))

	select {
	case next := <-reloaded:
		assert.Equal(t, 7*time.Second, time.Duration(next.Presence.TypingTTL))
		assert.Equal(t, 7*time.Second, time.Duration(w.Config().Presence.TypingTTL))
	case <-time.After(5 * time.Second):
		t.Fatal("reload never fired")
	}
}

func TestWatcher_InvalidReloadKeepsCurrentConfig(t *testing.T) {
	path := writeConfigFile(t, "environment: development\n")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	notified := make(chan struct{}, 1)
	w.OnChange(func(*Config) {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("environment: sandbox\n"), 0o600))

	select {
	case <-notified:
		t.Fatal("invalid config must not notify")
	case <-time.After(time.Second):
	}
	assert.Equal(t, Development, w.Config().Environment)
}
