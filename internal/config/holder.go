package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/joho/godotenv"
)

// Loader produces a fresh Config.
type Loader func() (Config, error)

// Holder publishes the current Config to concurrent readers. A failed
// reload keeps the previous value.
type Holder struct {
	current atomic.Pointer[Config]
	load    Loader
}

func NewHolder(cfg Config, load Loader) *Holder {
	h := &Holder{load: load}
	h.current.Store(&cfg)
	return h
}

// Load reads the environment once and returns a Holder that re-reads it on Reload.
func Load() (*Holder, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	return NewHolder(cfg, Read), nil
}

func (h *Holder) Current() *Config {
	return h.current.Load()
}

// SigningSecret satisfies interaction.SecretSource.
func (h *Holder) SigningSecret() string {
	return h.current.Load().Slack.SigningSecret
}

func (h *Holder) Reload(ctx context.Context) error {
	if h.load == nil {
		return nil
	}
	cfg, err := h.load()
	if err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "config reload rejected, keeping previous", xslog.Error(err))
		return fmt.Errorf("reload config: %w", err)
	}
	h.current.Store(&cfg)
	xslog.FromContext(ctx).InfoContext(ctx, "config reloaded")
	return nil
}

// WatchSignals reloads on SIGHUP until ctx is done.
func (h *Holder) WatchSignals(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			_ = h.Reload(ctx)
		}
	}
}

// EnvFile is the dotenv file loaded at startup and watched for changes.
const EnvFile = ".env"

// WatchFile overlays path onto the process environment and reloads every
// time it is written. The parent directory is watched so editors that
// replace the file atomically are still observed.
func (h *Holder) WatchFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	logger := xslog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := godotenv.Overload(abs); err != nil {
				logger.WarnContext(ctx, "failed to read env file", xslog.Error(err))
				continue
			}
			_ = h.Reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "env file watcher error", xslog.Error(err))
		}
	}
}
