package filestore

import (
	"bytes"
	"context"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/learnspace/core"
)

func testStore(t *testing.T, store core.FileStore) {
	ctx := context.Background()
	data := []byte("glTF-binary")

	_, err := store.Get(ctx, "models/missing.glb")
	assert.Equal(t, core.ErrFileNotFound, err)

	if !assert.NoError(t, store.Put(ctx, "models/cube.glb", bytes.NewReader(data), int64(len(data)), "model/gltf-binary")) {
		return
	}
	rc, err := store.Get(ctx, "models/cube.glb")
	if assert.NoError(t, err) {
		got, _ := ioutil.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, data, got)
	}

	// overwrite
	assert.NoError(t, store.Put(ctx, "models/cube.glb", bytes.NewReader([]byte("v2")), 2, "model/gltf-binary"))
	rc, err = store.Get(ctx, "models/cube.glb")
	if assert.NoError(t, err) {
		got, _ := ioutil.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, []byte("v2"), got)
	}

	assert.NoError(t, store.Delete(ctx, "models/cube.glb"))
	assert.NoError(t, store.Delete(ctx, "models/cube.glb"))
	_, err = store.Get(ctx, "models/cube.glb")
	assert.Equal(t, core.ErrFileNotFound, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	testStore(t, store)
	assert.Empty(t, store.Keys())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if !assert.NoError(t, err) {
		return
	}
	testStore(t, store)

	ctx := context.Background()
	for _, key := range []string{"../escape", "/etc/passwd", ".", "a/../../b"} {
		err := store.Put(ctx, key, bytes.NewReader(nil), 0, "")
		assert.Equal(t, errUnsafeKey, err, key)
		_, err = store.Get(ctx, key)
		assert.Equal(t, core.ErrFileNotFound, err, key)
	}

	_, err = NewLocalStore("")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()

	conf.Storage.Driver = "memory"
	store, err := New(context.Background(), conf)
	assert.NoError(t, err)
	assert.IsType(t, &memoryStore{}, store)

	conf.Storage.Driver = "local"
	conf.Storage.LocalDir = t.TempDir()
	store, err = New(context.Background(), conf)
	assert.NoError(t, err)
	assert.IsType(t, &localStore{}, store)

	conf.Storage.Driver = "ftp"
	_, err = New(context.Background(), conf)
	assert.EqualError(t, err, `unknown storage driver "ftp"`)
}
