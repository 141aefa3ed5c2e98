package tasksync

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushManagerDebounce(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	fm := NewFlushManager(e, 50*time.Millisecond, nil)
	fm.Start(ctx)
	defer fm.Stop()

	store.RegisterChangeListener(func() {
		e.MarkDirty()
		fm.MarkDirty()
	})

	// Several mutations inside one window coalesce into a single export.
	mustCreate(t, store, "One")
	mustCreate(t, store, "Two")
	mustCreate(t, store, "Three")

	_, err := os.Stat(e.Path())
	assert.True(t, os.IsNotExist(err), "nothing exported before the window elapses")

	require.Eventually(t, func() bool {
		_, err := os.Stat(e.Path())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(e.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, countLines(data), "one export carries all three tasks")
}

func TestFlushManagerFlushNow(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	fm := NewFlushManager(e, time.Hour, nil) // window never elapses on its own
	fm.Start(ctx)
	defer fm.Stop()

	mustCreate(t, store, "Immediate")
	require.NoError(t, fm.FlushNow())

	data, err := os.ReadFile(e.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, countLines(data))
}

func TestFlushManagerStopFlushesPending(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	fm := NewFlushManager(e, time.Hour, nil)
	fm.Start(ctx)

	store.RegisterChangeListener(func() {
		e.MarkDirty()
		fm.MarkDirty()
	})
	mustCreate(t, store, "Pending at shutdown")

	fm.Stop()

	data, err := os.ReadFile(e.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, countLines(data), "Stop drains the dirty flag")
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
