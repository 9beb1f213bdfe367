package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/assistant/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifactStores(t *testing.T) map[string]core.ArtifactStore {
	t.Helper()
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "datastore"))
	require.NoError(t, err)
	return map[string]core.ArtifactStore{
		"memory": NewInMemoryStore(),
		"file":   fileStore,
	}
}

func TestArtifactStore_SaveGetListDelete(t *testing.T) {
	for name, store := range artifactStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("AB12CD34", "plan.md", []byte("# Plan")))
			require.NoError(t, store.Save("AB12CD34", "plan.json", []byte("{}")))

			data, err := store.Get("AB12CD34", "plan.md")
			require.NoError(t, err)
			assert.Equal(t, "# Plan", string(data))

			ids, err := store.List("AB12CD34")
			require.NoError(t, err)
			assert.Equal(t, []string{"plan.json", "plan.md"}, ids)

			require.NoError(t, store.Delete("AB12CD34", "plan.md"))
			_, err = store.Get("AB12CD34", "plan.md")
			assert.True(t, errors.Is(err, core.ErrNotFound))
			assert.ErrorIs(t, store.Delete("AB12CD34", "plan.md"), ErrNotFound)

			empty, err := store.List("nobody")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestInMemoryStore_Isolation(t *testing.T) {
	store := NewInMemoryStore()
	data := []byte("hello")
	require.NoError(t, store.Save("s1", "a1", data))
	data[0] = 'H'

	out, err := store.Get("s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out[0] = 'x'
	again, _ := store.Get("s1", "a1")
	assert.Equal(t, "hello", string(again))
}

func TestFileStore_WritesToDisk(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Save("AGENT", "x.json", []byte(`{"a":1}`)))
	raw, err := os.ReadFile(filepath.Join(root, "AGENT", "x.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Save("..", "x", nil))
	assert.Error(t, store.Save("a", "../x", nil))
	assert.Error(t, store.Save("", "x", nil))
}
