package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the transcript at path into the server every time the file
// is written or re-created, until ctx is done. A transcript that cannot be
// read is logged and the previous one keeps being served.
//
// The parent directory is watched rather than the file so that editors
// which replace the file on save keep triggering reloads.
func (s *Server) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating transcript watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching transcript dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.reload(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("transcript watcher error: %w", err)
		}
	}
}

func (s *Server) reload(path string) {
	transcript, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("could not read transcript, keeping previous one",
			"path", path,
			"error", err,
		)
		return
	}

	if err := s.Load(transcript); err != nil {
		s.logger.Warn("could not load transcript, keeping previous one",
			"path", path,
			"error", err,
		)
		return
	}

	s.logger.Info("reloaded transcript",
		"path", path,
		"transcript_bytes", len(transcript),
	)
}
