package tasksync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long the watcher waits after the last filesystem
// event before importing, so a git checkout that rewrites the file in
// several steps triggers one import.
const watchSettle = 500 * time.Millisecond

// Watcher imports the JSONL file when something other than the engine
// writes it. Events caused by our own exports are recognized by comparing
// the file hash against the engine's last export fingerprint.
type Watcher struct {
	engine *Engine
	log    *slog.Logger
}

// NewWatcher creates a watcher for the engine's JSONL path.
func NewWatcher(engine *Engine, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{engine: engine, log: log}
}

// Run blocks, watching the file's directory until ctx is canceled. The
// directory rather than the file is watched because atomic renames replace
// the inode the file watch would be pinned to.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.engine.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Base(w.engine.Path())
	settle := time.NewTimer(watchSettle)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
			} else if !settle.Stop() {
				select {
				case <-settle.C:
				default:
				}
			}
			settle.Reset(watchSettle)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-settle.C:
			pending = false
			if w.selfWrite() {
				w.log.Debug("ignoring own export", "path", w.engine.Path())
				continue
			}
			w.log.Info("tasks file changed externally, importing", "path", w.engine.Path())
			if res, err := w.engine.Import(ctx); err != nil {
				w.log.Error("watch import failed", "error", err)
			} else if len(res.Errors) > 0 {
				w.log.Warn("watch import finished with problems", "errors", len(res.Errors))
			}
		}
	}
}

// selfWrite reports whether the file on disk matches the engine's last
// export, meaning the event came from our own atomic rename.
func (w *Watcher) selfWrite() bool {
	sum, err := hashFile(w.engine.Path())
	return err == nil && sum == w.engine.Fingerprint()
}
