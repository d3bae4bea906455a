package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), DirName, FileName))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestKV(t *testing.T) {
	d := openTemp(t)

	_, err := d.Get("authToken")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.Set("authToken", "a"))
	require.NoError(t, d.Set("authToken", "b"))
	v, err := d.Get("authToken")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.NotEmpty(t, d.UpdatedAt("authToken"))

	require.NoError(t, d.Delete("authToken"))
	require.NoError(t, d.Delete("authToken"))
	_, err = d.Get("authToken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceRunWritesBoth(t *testing.T) {
	d := openTemp(t)

	require.NoError(t, d.ReplaceRun("processingData", `{"n":1}`, &RunRow{
		ID: "r1", SourceType: "text", SelectedTemplate: "tpl", FileLabel: "texto_libre.txt",
		FileCount: 1, Status: "completed", Payload: `{"n":1}`, CreatedAt: "2026-01-01T00:00:00Z",
	}))
	require.NoError(t, d.ReplaceRun("processingData", `{"n":2}`, &RunRow{
		ID: "r2", SourceType: "gmail", SelectedTemplate: "tpl", FileCount: 1,
		Status: "completed", CreatedAt: "2026-01-02T00:00:00Z",
	}))

	v, err := d.Get("processingData")
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, v)

	runs, err := d.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "texto_libre.txt", runs[1].FileLabel)
	assert.Equal(t, `{"n":1}`, runs[1].Payload)
}

func TestReplaceRunIsAtomic(t *testing.T) {
	d := openTemp(t)
	row := &RunRow{ID: "dup", SourceType: "text", SelectedTemplate: "t", FileCount: 1, Status: "completed"}
	require.NoError(t, d.ReplaceRun("k", "first", row))

	// Same run id violates the primary key, so the key must keep its old value.
	err := d.ReplaceRun("k", "second", &RunRow{ID: "dup", SourceType: "text", SelectedTemplate: "t", Status: "completed"})
	require.Error(t, err)

	v, err := d.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestRunCounts(t *testing.T) {
	d := openTemp(t)
	require.NoError(t, d.InsertRun(&RunRow{ID: "1", SourceType: "text", SelectedTemplate: "t", FileCount: 1, Status: "completed"}))
	require.NoError(t, d.InsertRun(&RunRow{ID: "2", SourceType: "text", SelectedTemplate: "t", FileCount: 1, Status: "failed", Error: "boom"}))
	require.NoError(t, d.InsertRun(&RunRow{ID: "3", SourceType: "gmail", SelectedTemplate: "t", FileCount: 1, Status: "completed"}))

	byStatus, err := d.RunCountByStatus()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"completed": 2, "failed": 1}, byStatus)

	bySource, err := d.RunCountBySource()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"text": 2, "gmail": 1}, bySource)
	assert.Equal(t, 3, d.RunCount())

	failed, err := d.ListRuns("failed", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)

	limited, err := d.ListRuns("", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDiscoverDB(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	d, err := Open(filepath.Join(root, DirName, FileName))
	require.NoError(t, err)
	d.Close()

	t.Chdir(nested)
	found := DiscoverDB()
	require.NotEmpty(t, found)
	assert.Equal(t, FileName, filepath.Base(found))
	assert.Equal(t, DirName, filepath.Base(filepath.Dir(found)))
}
