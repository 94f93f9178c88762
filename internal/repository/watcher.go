package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Proton-105/minibank/internal/errors"
)

// Watch reloads the collection whenever another process replaces the
// document. Writes made by this store are recognised by their file stamp
// and skipped. A document that fails validation is logged and ignored, so
// the in-memory state stays the last good one. Watch blocks until ctx is done.
func (s *AccountStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched rather than the file because every write
	// replaces the file via rename.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(ctx); err != nil {
				s.log.ErrorContext(ctx, "ignoring external store change", slog.Any("error", err))
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WarnContext(ctx, "store watcher error", slog.Any("error", werr))
		}
	}
}

func (s *AccountStore) reload(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return errors.NewStorageError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info.ModTime().Equal(s.stamp.modTime) && info.Size() == s.stamp.size {
		return nil
	}

	accounts, stamp, err := s.read()
	if err != nil {
		return err
	}

	s.accounts = accounts
	s.stamp = stamp
	s.nextID = max(s.nextID, nextIDFor(accounts))

	s.log.InfoContext(ctx, "account store reloaded after external change", slog.Int("accounts", len(accounts)))
	return nil
}
