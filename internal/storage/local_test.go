package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestObjectStore(t *testing.T) (*LocalObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	objectStore, err := NewLocalObjectStore(dir)
	require.NoError(t, err)
	return objectStore, dir
}

func TestLocalObjectStore_PutObject(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	bucket := "test-bucket"
	key := "artifacts/model.json"
	content := []byte(`{"kind":"network"}`)

	err := objectStore.PutObject(context.Background(), bucket, key, bytes.NewReader(content))
	require.NoError(t, err)

	filePath := filepath.Join(baseDir, bucket, key)
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalObjectStore_GetObject(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	bucket := "test-bucket"
	key := "artifacts/model.json"
	content := []byte("payload")

	require.NoError(t, objectStore.PutObject(context.Background(), bucket, key, bytes.NewReader(content)))

	data, err := objectStore.GetObject(context.Background(), bucket, key)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalObjectStore_GetObject_NotFound(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	_, err := objectStore.GetObject(context.Background(), "test-bucket", "missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalObjectStore_CreateBucket(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	require.NoError(t, objectStore.CreateBucket(context.Background(), "test-bucket"))

	info, err := os.Stat(filepath.Join(baseDir, "test-bucket"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalObjectStore_ListObjects(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	bucket := "test-bucket"
	files := []string{"artifacts/a.json", "artifacts/b.json", "other/c.json"}
	for _, file := range files {
		require.NoError(t, objectStore.PutObject(context.Background(), bucket, file, bytes.NewReader([]byte("content"))))
	}

	objects, err := objectStore.ListObjects(context.Background(), bucket, "artifacts/")
	require.NoError(t, err)

	var names []string
	for _, obj := range objects {
		names = append(names, obj.Name)
		assert.Equal(t, int64(len("content")), obj.Size)
	}
	assert.ElementsMatch(t, []string{"artifacts/a.json", "artifacts/b.json"}, names)
}

func TestLocalObjectStore_ListObjects_MissingBucket(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	objects, err := objectStore.ListObjects(context.Background(), "no-such-bucket", "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestPutBytes(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	require.NoError(t, PutBytes(context.Background(), objectStore, "test-bucket", "key.json", []byte("blob")))

	data, err := objectStore.GetObject(context.Background(), "test-bucket", "key.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), data)
}
