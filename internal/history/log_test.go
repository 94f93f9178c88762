package history

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/internal/errors"
)

func newLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "history")
	l := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, l.Initialize())
	return l, dir
}

func TestReadAll_EmptyHistory(t *testing.T) {
	l, dir := newLog(t)
	ctx := context.Background()

	text, err := l.ReadAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Empty, text)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.txt"), []byte("  \n"), 0o600))
	text, err = l.ReadAll(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Empty, text)
}

func TestAppend_KeepsOrderAndSeparators(t *testing.T) {
	l, dir := newLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, 7, "first"))
	require.NoError(t, l.Append(ctx, 7, "second\nline"))

	raw, err := os.ReadFile(filepath.Join(dir, "7.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first\n"+separator+"\nsecond\nline\n"+separator+"\n", string(raw))

	text, err := l.ReadAll(ctx, 7)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "first"))
	assert.True(t, strings.HasSuffix(text, separator))
	assert.Less(t, strings.Index(text, "first"), strings.Index(text, "second"))
}

func TestAppend_Concurrent(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, 3, "entry"))
		}()
	}
	wg.Wait()

	text, err := l.ReadAll(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 20, strings.Count(text, "entry"))
	assert.Equal(t, 20, strings.Count(text, separator))
}

func TestAppend_StorageFault(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "missing", "dir"), nil)

	err := l.Append(context.Background(), 1, "entry")
	assert.ErrorIs(t, err, errors.ErrStorageFault)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "hello", Tail("hello", 10))
	assert.Equal(t, "llo", Tail("hello", 3))
	assert.Equal(t, "hello", Tail("hello", 0))
	assert.Equal(t, "─b", Tail("a─b", 2))
}
