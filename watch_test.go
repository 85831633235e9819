package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regscan/pkg/history"
	"regscan/pkg/ocr"
	"regscan/pkg/scan"
)

func TestIsSupportedExt(t *testing.T) {
	assert.True(t, isSupportedExt("card.PNG"))
	assert.True(t, isSupportedExt("scan.jpeg"))
	assert.False(t, isSupportedExt("notes.txt"))
	assert.False(t, isSupportedExt("noext"))
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))
	assert.Equal(t, []string{"a.png", "b.jpg"}, listImageFiles(dir))
	assert.Nil(t, listImageFiles(filepath.Join(dir, "missing")))
}

func testScanners(n int, store *history.Store) []*scan.Scanner {
	opts := scan.Options{Recognizer: ocr.Config{SkipPreprocess: true}, Logger: zap.NewNop()}
	return newScanners(n, fixedEngine(cardText, 90), store, opts)
}

func TestProcessFilesSavesSuccessfulScans(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "card.png")
	require.NoError(t, os.WriteFile(good, pngBytes(t), 0o644))
	bad := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(bad, []byte("plain text"), 0o644))

	files := make(chan string, 3)
	files <- good
	files <- bad
	files <- filepath.Join(dir, "missing.png")
	close(files)

	store := history.NewStore(history.NewMemoryKV(), "")
	var mu sync.Mutex
	errs := map[string]error{}
	err := processFiles(context.Background(), testScanners(2, store), files, true, func(path string, _ scan.Result, err error) {
		mu.Lock()
		errs[filepath.Base(path)] = err
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, errs, 3)
	assert.NoError(t, errs["card.png"])
	assert.ErrorIs(t, errs["notes.png"], ocr.ErrNotAnImage)
	assert.Error(t, errs["missing.png"])

	recs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "KA05AB1234", recs[0].ParsedData.RegistrationNo)
}

func TestDirWatcherScansExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	done := filepath.Join(dir, "done")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.png"), pngBytes(t), 0o644))

	store := history.NewStore(history.NewMemoryKV(), "")
	scanned := make(chan string, 4)
	w := &dirWatcher{dir: dir, doneDir: done, debounce: 20 * time.Millisecond, log: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.run(ctx, testScanners(1, store), true, func(path string, _ scan.Result, err error) {
			if err == nil {
				scanned <- filepath.Base(path)
			}
		})
	}()

	waitFor := func(name string) {
		t.Helper()
		select {
		case got := <-scanned:
			assert.Equal(t, name, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("%s was not scanned", name)
		}
	}
	waitFor("first.png")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.png"), pngBytes(t), 0o644))
	waitFor("second.png")

	cancel()
	require.NoError(t, <-errCh)

	assert.FileExists(t, filepath.Join(done, "first.png"))
	assert.FileExists(t, filepath.Join(done, "second.png"))
	recs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
