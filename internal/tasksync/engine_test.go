package tasksync

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobby-dev/gobby/internal/storage"
	"github.com/gobby-dev/gobby/internal/storage/sqlite"
	"github.com/gobby-dev/gobby/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *sqlite.SQLiteStore) {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.New(filepath.Join(dir, "test.db"), "gb")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, filepath.Join(dir, "tasks.jsonl"), nil), store
}

func mustCreate(t *testing.T, store *sqlite.SQLiteStore, title string) *types.Task {
	t.Helper()
	task, err := store.CreateTask(context.Background(), &types.Task{ProjectID: "demo", Title: title})
	require.NoError(t, err)
	return task
}

func TestExportFormat(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	a := mustCreate(t, store, "Alpha")
	b := mustCreate(t, store, "Beta")
	_, err := store.AddDependency(ctx, &types.Dependency{TaskID: a.ID, DependsOn: b.ID, Type: types.DepBlocks})
	require.NoError(t, err)

	require.NoError(t, e.Export(ctx))

	data, err := os.ReadFile(e.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	// Lines are id ascending, one JSON object each.
	assert.True(t, strings.Contains(lines[0], `"id":"`))
	var prev string
	for _, line := range lines {
		id := line[strings.Index(line, `"id":"`)+6:]
		id = id[:strings.Index(id, `"`)]
		assert.Greater(t, id, prev)
		prev = id
	}

	// The blocking task carries its edge; optional empty fields are absent.
	joined := string(data)
	assert.Contains(t, joined, `"depends_on":"`+b.ID+`"`)
	assert.NotContains(t, joined, `"assignee"`)
	assert.NotContains(t, joined, `"closed_reason"`)

	// Sidecar records the export.
	meta, err := readMeta(e.metaPath())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256(data)), meta.ContentHash)
	assert.False(t, meta.LastExportAt.IsZero())
}

func TestExportUnchangedSkipsWrite(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustCreate(t, store, "Stable")
	require.NoError(t, e.Export(ctx))

	before, err := os.Stat(e.Path())
	require.NoError(t, err)

	// Make the second export distinguishable by mtime if it rewrote.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Export(ctx))

	after, err := os.Stat(e.Path())
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "identical content must not be rewritten")
}

func TestExportRewritesDeletedFile(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustCreate(t, store, "Persistent")
	require.NoError(t, e.Export(ctx))

	before, err := os.ReadFile(e.Path())
	require.NoError(t, err)

	// Someone removed the tracked file; the store itself did not change.
	require.NoError(t, os.Remove(e.Path()))
	require.NoError(t, e.Export(ctx))

	after, err := os.ReadFile(e.Path())
	require.NoError(t, err, "an unchanged fingerprint must not mask a missing file")
	assert.Equal(t, before, after)
}

func TestExportRepairsDivergedFile(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	mustCreate(t, store, "Authoritative")
	require.NoError(t, e.Export(ctx))

	canonical, err := os.ReadFile(e.Path())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(e.Path(), []byte("scribbled over\n"), 0o644))
	require.NoError(t, e.Export(ctx))

	after, err := os.ReadFile(e.Path())
	require.NoError(t, err)
	assert.Equal(t, canonical, after, "external edits are overwritten when the store is authoritative")
}

func TestImportRoundTrip(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	a := mustCreate(t, store, "Alpha")
	b := mustCreate(t, store, "Beta")
	_, err := store.AddDependency(ctx, &types.Dependency{TaskID: a.ID, DependsOn: b.ID, Type: types.DepBlocks})
	require.NoError(t, err)
	require.NoError(t, e.Export(ctx))

	// Fresh store, same file: everything comes back.
	dir2 := t.TempDir()
	store2, err := sqlite.New(filepath.Join(dir2, "test.db"), "gb")
	require.NoError(t, err)
	defer store2.Close()
	e2 := NewEngine(store2, e.Path(), nil)

	res, err := e2.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Malformed)
	assert.Empty(t, res.Cycles)

	blockers, err := store2.GetBlockers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	assert.Equal(t, b.ID, blockers[0].ID)
}

func TestImportMissingFile(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.Import(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Created+res.Updated+res.Skipped+res.Malformed)
}

func TestImportAbsenceDoesNotDelete(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	local := mustCreate(t, store, "Local only")

	// File contains one other task but not the local one.
	now := time.Now().UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf(`{"id":"gb-ffffff","project_id":"demo","title":"From file","priority":2,"created_at":%q,"updated_at":%q}`, now, now)
	require.NoError(t, os.WriteFile(e.Path(), []byte(line+"\n"), 0o644))

	res, err := e.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	_, err = store.GetTask(ctx, local.ID)
	assert.NoError(t, err, "absence from the file never deletes")
}

func TestImportSkipsMalformedLines(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	content := strings.Join([]string{
		fmt.Sprintf(`{"id":"gb-aaaaaa","project_id":"demo","title":"Good","priority":2,"created_at":%q,"updated_at":%q}`, now, now),
		`{this is not json`,
		`{"project_id":"demo","title":"No id"}`,
		fmt.Sprintf(`{"id":"gb-cccccc","project_id":"demo","title":"Also good","priority":2,"created_at":%q,"updated_at":%q}`, now, now),
	}, "\n")
	require.NoError(t, os.WriteFile(e.Path(), []byte(content+"\n"), 0o644))

	res, err := e.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Malformed)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "line 2")
	assert.Contains(t, res.Errors[1], "line 3")

	_, err = store.GetTask(ctx, "gb-aaaaaa")
	assert.NoError(t, err)
	_, err = store.GetTask(ctx, "gb-cccccc")
	assert.NoError(t, err)
}

func TestImportAllMalformedIsIntegrityError(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, os.WriteFile(e.Path(), []byte("garbage\nmore garbage\n"), 0o644))

	_, err := e.Import(context.Background())
	require.Error(t, err)
	assert.True(t, storage.IsIntegrity(err))
}

func TestImportUnknownEdgeTargetReported(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf(`{"id":"gb-aaaaaa","project_id":"demo","title":"Edgy","priority":2,"created_at":%q,"updated_at":%q,"dependencies":[{"depends_on":"gb-nowhere","dep_type":"blocks"}]}`, now, now)
	require.NoError(t, os.WriteFile(e.Path(), []byte(line+"\n"), 0o644))

	res, err := e.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "gb-nowhere")

	blockers, err := store.GetBlockers(ctx, "gb-aaaaaa")
	require.NoError(t, err)
	assert.Empty(t, blockers)
}

func TestImportReportsCycles(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	content := strings.Join([]string{
		fmt.Sprintf(`{"id":"gb-aaaaaa","project_id":"demo","title":"A","priority":2,"created_at":%q,"updated_at":%q,"dependencies":[{"depends_on":"gb-bbbbbb","dep_type":"blocks"}]}`, now, now),
		fmt.Sprintf(`{"id":"gb-bbbbbb","project_id":"demo","title":"B","priority":2,"created_at":%q,"updated_at":%q,"dependencies":[{"depends_on":"gb-aaaaaa","dep_type":"blocks"}]}`, now, now),
	}, "\n")
	require.NoError(t, os.WriteFile(e.Path(), []byte(content+"\n"), 0o644))

	res, err := e.Import(ctx)
	require.NoError(t, err, "cycles are reported, not fatal")
	require.Len(t, res.Cycles, 1)
	assert.ElementsMatch(t, []string{"gb-aaaaaa", "gb-bbbbbb"}, res.Cycles[0])
}

func TestMarkDirtyAndStatus(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	assert.False(t, e.Status().Pending)
	e.MarkDirty()
	assert.True(t, e.Status().Pending)

	mustCreate(t, store, "Something")
	require.NoError(t, e.Export(ctx))

	st := e.Status()
	assert.False(t, st.Pending, "export clears the pending flag")
	assert.NotEmpty(t, st.Fingerprint)
	assert.False(t, st.LastExportAt.IsZero())
}
