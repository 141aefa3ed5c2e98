// Package tasksync keeps the SQLite store and the flat JSONL file in sync.
//
// The JSONL file is the git-merged interchange format: one task per line,
// id ascending, with each task's outbound dependency edges embedded. The
// database is the source of truth between syncs; the file is authoritative
// only at import time, where newer records win field-by-record.
package tasksync

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/telemetry"
	"github.com/gobby-dev/gobby/internal/types"
)

// MetaFileName is the sidecar recording the last export, written next to
// the JSONL file.
const MetaFileName = "tasks_meta.json"

// maxLineSize bounds a single JSONL line. A task with a large description
// still fits comfortably.
const maxLineSize = 4 * 1024 * 1024

// Meta is the sidecar content. content_hash is the sha256 of the JSONL
// bytes at last export, used to skip no-op exports and to tell our own
// writes apart from external edits.
type Meta struct {
	LastExportAt time.Time `json:"last_export_at"`
	ContentHash  string    `json:"content_hash"`
}

// ImportResult summarizes one import run. Malformed lines and unresolvable
// edges are skipped and reported here, never fatal on their own.
type ImportResult struct {
	Created   int
	Updated   int
	Skipped   int
	Malformed int
	Errors    []string
	Cycles    [][]string
}

// EngineStatus is a snapshot of the engine's sync state.
type EngineStatus struct {
	LastExportAt time.Time
	Pending      bool
	Fingerprint  string
}

// Engine coordinates imports and exports for one store and one JSONL path.
type Engine struct {
	store storage.Storage
	path  string
	log   *slog.Logger

	mu           sync.Mutex
	lastExportAt time.Time
	fingerprint  string
	pending      bool
}

// NewEngine creates a sync engine for the store and JSONL file path. It
// loads the sidecar, if present, to recover the last export fingerprint.
func NewEngine(store storage.Storage, path string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{store: store, path: path, log: log}
	if meta, err := readMeta(e.metaPath()); err == nil {
		e.lastExportAt = meta.LastExportAt
		e.fingerprint = meta.ContentHash
	}
	return e
}

// Path returns the JSONL file path.
func (e *Engine) Path() string { return e.path }

func (e *Engine) metaPath() string {
	return filepath.Join(filepath.Dir(e.path), MetaFileName)
}

// MarkDirty records that the store changed since the last export. The
// flush manager reads Pending via Status; this is its trigger.
func (e *Engine) MarkDirty() {
	e.mu.Lock()
	e.pending = true
	e.mu.Unlock()
}

// Status returns the current sync state.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		LastExportAt: e.lastExportAt,
		Pending:      e.pending,
		Fingerprint:  e.fingerprint,
	}
}

// Fingerprint returns the sha256 hex of the last exported content.
func (e *Engine) Fingerprint() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fingerprint
}

// Export writes the full store content to the JSONL file atomically.
//
// Tasks are serialized id ascending with embedded outbound edges, so the
// same store state always produces byte-identical output and git merges
// stay line-stable. The export is skipped only when the content hash
// matches the last export AND the file on disk still carries those bytes;
// a deleted or externally edited file is rewritten even if the store did
// not change.
func (e *Engine) Export(ctx context.Context) error {
	content, err := e.serialize(ctx)
	if err != nil {
		telemetry.CountSync(ctx, "export", "error")
		return err
	}

	sum := fmt.Sprintf("%x", sha256.Sum256(content))

	e.mu.Lock()
	remembered := e.fingerprint
	e.mu.Unlock()
	if sum == remembered {
		if onDisk, err := hashFile(e.path); err == nil && onDisk == sum {
			e.mu.Lock()
			e.pending = false
			e.mu.Unlock()
			e.log.Debug("export skipped, content unchanged", "hash", sum[:12])
			telemetry.CountSync(ctx, "export", "unchanged")
			return nil
		}
		e.log.Info("tracked file missing or diverged, rewriting", "path", e.path)
	}

	if err := writeFileAtomic(e.path, content); err != nil {
		telemetry.CountSync(ctx, "export", "error")
		return fmt.Errorf("%w: write %s: %v", storage.ErrIO, e.path, err)
	}

	exportedAt := time.Now().UTC()
	meta := Meta{LastExportAt: exportedAt, ContentHash: sum}
	if err := writeMeta(e.metaPath(), meta); err != nil {
		// The export itself succeeded; a stale sidecar only costs one
		// redundant export later.
		e.log.Warn("sidecar write failed", "path", e.metaPath(), "error", err)
	}

	e.mu.Lock()
	e.lastExportAt = exportedAt
	e.fingerprint = sum
	e.pending = false
	e.mu.Unlock()

	e.log.Info("exported tasks", "path", e.path, "bytes", len(content), "hash", sum[:12])
	telemetry.CountSync(ctx, "export", "ok")
	return nil
}

// serialize renders the canonical JSONL bytes for the current store state.
func (e *Engine) serialize(ctx context.Context) ([]byte, error) {
	tasks, err := e.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	deps, err := e.store.ListDependencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}

	byTask := map[string][]*types.Dependency{}
	for _, d := range deps {
		// TaskID is implied by the owning line; drop it from the output.
		embedded := &types.Dependency{DependsOn: d.DependsOn, Type: d.Type, CreatedAt: d.CreatedAt}
		byTask[d.TaskID] = append(byTask[d.TaskID], embedded)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	var buf bytes.Buffer
	for _, t := range tasks {
		t.Dependencies = byTask[t.ID]
		line, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal task %s: %w", t.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Import reads the JSONL file and merges it into the store.
//
// A missing file is a clean no-op: file absence never deletes tasks.
// Malformed lines are skipped and reported. A non-empty file from which no
// record parses at all is treated as corruption. After merging, a
// whole-graph cycle audit runs because imported edge sets bypass the
// incremental guard; found cycles are reported, not repaired.
func (e *Engine) Import(ctx context.Context) (*ImportResult, error) {
	res := &ImportResult{}

	data, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		e.log.Debug("no tasks file, skipping import", "path", e.path)
		telemetry.CountSync(ctx, "import", "absent")
		return res, nil
	}
	if err != nil {
		telemetry.CountSync(ctx, "import", "error")
		return nil, fmt.Errorf("%w: read %s: %v", storage.ErrIO, e.path, err)
	}

	type record struct {
		task *types.Task
		line int
	}
	var records []record

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	nonEmpty := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		nonEmpty++
		var t types.Task
		if err := json.Unmarshal(line, &t); err != nil {
			res.Malformed++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		if t.ID == "" {
			res.Malformed++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: record has no id", lineNo))
			continue
		}
		t.SetDefaults()
		records = append(records, record{task: &t, line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		telemetry.CountSync(ctx, "import", "error")
		return nil, fmt.Errorf("%w: scan %s: %v", storage.ErrIO, e.path, err)
	}
	if nonEmpty > 0 && len(records) == 0 {
		telemetry.CountSync(ctx, "import", "error")
		return res, fmt.Errorf("%w: %s has %d lines and none parsed", storage.ErrIntegrity, e.path, nonEmpty)
	}

	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.task.ID] = true
	}

	// Pass 1: merge task records. Pass 2: replace edge sets for the
	// records that won, filtering edges whose target neither the file nor
	// the store knows.
	type winner struct {
		id   string
		deps []*types.Dependency
		line int
	}
	var winners []winner
	for _, r := range records {
		deps := r.task.Dependencies
		r.task.Dependencies = nil
		outcome, err := e.store.MergeTask(ctx, r.task)
		if err != nil {
			res.Malformed++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d (%s): %v", r.line, r.task.ID, err))
			continue
		}
		switch outcome {
		case types.MergeCreated:
			res.Created++
		case types.MergeUpdated:
			res.Updated++
		default:
			res.Skipped++
			continue
		}
		winners = append(winners, winner{id: r.task.ID, deps: deps, line: r.line})
	}

	for _, w := range winners {
		kept := w.deps[:0]
		for _, d := range w.deps {
			if d.DependsOn == "" || d.DependsOn == w.id {
				res.Errors = append(res.Errors, fmt.Sprintf("line %d (%s): invalid edge target %q", w.line, w.id, d.DependsOn))
				continue
			}
			if !known[d.DependsOn] {
				if t, err := e.store.GetTask(ctx, d.DependsOn); err != nil || t == nil {
					res.Errors = append(res.Errors, fmt.Sprintf("line %d (%s): edge target %s unknown", w.line, w.id, d.DependsOn))
					continue
				}
			}
			kept = append(kept, d)
		}
		if err := e.store.ReplaceDependencies(ctx, w.id, kept); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d (%s): %v", w.line, w.id, err))
		}
	}

	cycles, err := e.store.CheckCycles(ctx)
	if err != nil {
		telemetry.CountSync(ctx, "import", "error")
		return res, err
	}
	res.Cycles = cycles
	for _, c := range cycles {
		e.log.Warn("imported graph contains a blocking cycle", "cycle", c)
	}

	// The merged store content now corresponds to this file; remember its
	// hash so the next debounce pass can tell our state from new edits.
	sum := fmt.Sprintf("%x", sha256.Sum256(data))
	e.mu.Lock()
	if res.Created == 0 && res.Updated == 0 {
		e.fingerprint = sum
	}
	e.mu.Unlock()

	e.log.Info("imported tasks",
		"path", e.path, "created", res.Created, "updated", res.Updated,
		"skipped", res.Skipped, "malformed", res.Malformed, "cycles", len(cycles))
	telemetry.CountSync(ctx, "import", "ok")
	return res, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path. The rename is retried briefly because antivirus
// and indexer processes on some platforms hold short-lived locks.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(250*time.Millisecond),
	), 5)
	err := backoff.Retry(func() error {
		return os.Rename(tmp, path)
	}, policy)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// hashFile returns the sha256 hex of the file's current content.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

func readMeta(path string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

func writeMeta(path string, m Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(data, '\n'))
}
