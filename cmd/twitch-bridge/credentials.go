package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// credentials is the on-disk application credential file. The
// authorization code is written back after a successful exchange so
// the file reflects the last validated triple.
type credentials struct {
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	AuthorizationCode string `yaml:"authorization_code,omitempty"`
}

// selfWriteFilter tells apart the persistence hook's own rewrite of
// the credentials file from a genuine edit. Without it, every
// successful authorization would retrigger the flow it just finished:
// the hook writes the validated triple, the watcher sees the write,
// and UpdateClientCredentials tears the fresh session down again.
type selfWriteFilter struct {
	mu   sync.Mutex
	last credentials
}

// markSaved records the triple about to be written by the hook.
func (f *selfWriteFilter) markSaved(c credentials) {
	f.mu.Lock()
	f.last = c
	f.mu.Unlock()
}

// isSelfWrite reports whether a watcher event carries exactly the
// triple the hook last wrote.
func (f *selfWriteFilter) isSelfWrite(c credentials) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return c == f.last && c != (credentials{})
}

func loadCredentials(path string) (credentials, error) {
	var creds credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}

	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parsing %s: %w", path, err)
	}

	return creds, nil
}

func saveCredentials(path string, creds credentials) error {
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	// The file holds the client secret; keep it owner-only.
	return os.WriteFile(path, data, 0o600)
}

// watchCredentials invokes onChange with the freshly loaded file each
// time it is rewritten. Editors replace files rather than writing in
// place, so the watch sits on the parent directory and events are
// debounced.
func watchCredentials(ctx context.Context, path string, logger *slog.Logger, onChange func(credentials)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	const debounce = 500 * time.Millisecond

	var timer *time.Timer

	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}

			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}

			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			creds, err := loadCredentials(path)
			if err != nil {
				logger.Warn("Failed to reload credentials file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)

				continue
			}

			logger.Info("Credentials file changed", slog.String("path", path))
			onChange(creds)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}

			logger.Warn("Watcher error", slog.String("error", err.Error()))
		}
	}
}
