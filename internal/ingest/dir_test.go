package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDropFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDirSource_TxtOneReplyPerLine(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "processed")
	writeDropFile(t, dir, "thread.txt", "Base 80k, Senior Planner, Chicago, 6 yrs exp\n\n   \njust lurking, no comp info\n")

	src := NewDirSource(dir, processed, 100, 0)
	batches, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)

	b := batches[0]
	assert.Equal(t, "dir", b.Source)
	assert.NotEmpty(t, b.BatchID)
	assert.Equal(t, filepath.Join(dir, "thread.txt"), b.Origin)

	// blank and whitespace-only lines are not replies
	require.Len(t, b.Replies, 2)
	assert.Equal(t, 0, b.Replies[0].Index)
	assert.Equal(t, "Base 80k, Senior Planner, Chicago, 6 yrs exp", b.Replies[0].Text)
	assert.Equal(t, 1, b.Replies[1].Index)
	assert.Equal(t, "just lurking, no comp info", b.Replies[1].Text)
}

func TestDirSource_FinalizeMovesFile(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "processed")
	path := writeDropFile(t, dir, "thread.txt", "comp is 95k base\n")

	src := NewDirSource(dir, processed, 100, 0)
	batches, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)

	// file stays in place until the batch is finalized
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, batches[0].Finalize(context.Background()))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	moved, err := os.ReadFile(filepath.Join(processed, "thread.txt"))
	require.NoError(t, err)
	assert.Equal(t, "comp is 95k base\n", string(moved))
}

func TestDirSource_SkipsUnknownExtensionsAndDirs(t *testing.T) {
	dir := t.TempDir()
	writeDropFile(t, dir, "notes.md", "not a thread")
	writeDropFile(t, dir, "dump.json", "{}")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	src := NewDirSource(dir, filepath.Join(dir, "processed"), 100, 0)
	batches, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestDirSource_MissingDirIsQuiet(t *testing.T) {
	dir := t.TempDir()
	src := NewDirSource(filepath.Join(dir, "absent"), filepath.Join(dir, "processed"), 100, 0)

	batches, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestDirSource_OrderedByName(t *testing.T) {
	dir := t.TempDir()
	writeDropFile(t, dir, "b.txt", "second file\n")
	writeDropFile(t, dir, "a.txt", "first file\n")

	src := NewDirSource(dir, filepath.Join(dir, "processed"), 100, 0)
	batches, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, filepath.Join(dir, "a.txt"), batches[0].Origin)
	assert.Equal(t, filepath.Join(dir, "b.txt"), batches[1].Origin)
}

func TestDirSource_MaxFilesPerScan(t *testing.T) {
	dir := t.TempDir()
	writeDropFile(t, dir, "a.txt", "one\n")
	writeDropFile(t, dir, "b.txt", "two\n")
	writeDropFile(t, dir, "c.txt", "three\n")

	src := NewDirSource(dir, filepath.Join(dir, "processed"), 100, 2)
	batches, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}
