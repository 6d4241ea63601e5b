package transpile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestStorageCommon(t *testing.T) {
	t.Parallel()

	cached, err := NewCachedStorage(NewMemStorage(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cached.Close() })

	tests := []struct {
		name  string
		store Storage
	}{
		{
			name:  "mem",
			store: NewMemStorage(),
		},
		{
			name:  "prefix",
			store: KeyPrefixStorage(NewMemStorage(), "v0.8.20"),
		},
		{
			name:  "cached",
			store: cached,
		},
	}

	if !testing.Short() {
		dir := filepath.Join(t.TempDir(), "badger")
		badgerStorage, err := NewBadgerStorage(dir, 64)
		require.NoError(t, err)
		t.Cleanup(func() { _ = badgerStorage.Close() })

		tests = append(tests, struct {
			name  string
			store Storage
		}{
			name:  "badger",
			store: badgerStorage,
		})
	}

	for _, tc := range tests {
		t.Run(tc.name+"_save_clear", func(t *testing.T) {
			require.NoError(t, tc.store.Save("t1", []byte{1, 2, 3}))
			require.NoError(t, tc.store.Clear())

			keys, err := tc.store.Keys("")
			require.NoError(t, err)
			assert.Empty(t, keys)
			_, ok, err := tc.store.Load("t1")
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run(tc.name+"_save_load_delete", func(t *testing.T) {
			require.NoError(t, tc.store.Clear()) // ensure storage is reset
			data := []byte{1, 2, 3}

			require.NoError(t, tc.store.Save("t1", data))
			got, ok, err := tc.store.Load("t1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, data, got)
			require.NoError(t, tc.store.Delete("t1"))
			_, ok, err = tc.store.Load("t1")
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run(tc.name+"_overwrite", func(t *testing.T) {
			require.NoError(t, tc.store.Clear()) // ensure storage is reset

			require.NoError(t, tc.store.Save("k", []byte("first")))
			require.NoError(t, tc.store.Save("k", []byte("second")))
			got, ok, err := tc.store.Load("k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("second"), got)
		})

		t.Run(tc.name+"_keys", func(t *testing.T) {
			require.NoError(t, tc.store.Clear()) // ensure storage is reset

			require.NoError(t, tc.store.Save("b1", []byte{3}))
			require.NoError(t, tc.store.Save("a2", []byte{2}))
			require.NoError(t, tc.store.Save("a1", []byte{1}))

			keys, err := tc.store.Keys("")
			require.NoError(t, err)
			assert.Equal(t, []string{"a1", "a2", "b1"}, keys)

			keys, err = tc.store.Keys("a")
			require.NoError(t, err)
			assert.Equal(t, []string{"a1", "a2"}, keys)
		})

		t.Run(tc.name+"_blob_isolation", func(t *testing.T) {
			require.NoError(t, tc.store.Clear()) // ensure storage is reset
			want := make([]byte, 1024)
			for i := range want {
				want[i] = byte(i % 251) // deterministic
			}
			saved := append([]byte(nil), want...)
			require.NoError(t, tc.store.Save("live", saved))
			saved[0] = 0xFF // caller mutation must not reach the store

			got, ok, err := tc.store.Load("live")
			require.NoError(t, err)
			require.True(t, ok)
			_ = tc.store.Save("dummy", []byte{1})
			assert.Equal(t, want, got)
		})

		t.Run(tc.name+"_concurrent", func(t *testing.T) {
			require.NoError(t, tc.store.Clear()) // ensure storage is reset

			type payload struct {
				N int
				S string
			}
			makeBlob := func(n int) []byte {
				b, _ := msgpack.Marshal(payload{N: n, S: strings.Repeat("x", 4096)})
				return b
			}
			require.NoError(t, tc.store.Save("target", makeBlob(42)))

			done := make(chan struct{})
			go func() {
				var i int
				for {
					select {
					case <-done:
						return
					default:
					}
					_ = tc.store.Save("w"+strconv.Itoa(i%8), makeBlob(i))
					i++
				}
			}()

			for i := 0; i < 500; i++ {
				got, ok, err := tc.store.Load("target")
				require.NoError(t, err)
				require.True(t, ok)

				var out payload
				require.NoError(t, msgpack.Unmarshal(got, &out))
				require.Equal(t, 42, out.N)
			}
			close(done)
		})
	}
}

func TestBadgerStorage(t *testing.T) {
	t.Run("reopen", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skip in short mode")
		}
		t.Parallel()

		path := filepath.Join(t.TempDir(), "db")
		store, err := NewBadgerStorage(path, 32)
		require.NoError(t, err)
		require.NoError(t, store.Save("persisted", []byte{4, 5, 6}))
		require.NoError(t, store.Close())

		entries, err := os.ReadDir(path)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)

		store, err = NewBadgerStorage(path, 32)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		got, ok, err := store.Load("persisted")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte{4, 5, 6}, got)
	})
}

func TestKeyPrefixStorage(t *testing.T) {
	t.Parallel()

	t.Run("namespaces", func(t *testing.T) {
		backing := NewMemStorage()
		v1 := KeyPrefixStorage(backing, "v0.8.19")
		v2 := KeyPrefixStorage(backing, "v0.8.20")

		require.NoError(t, v1.Save("k", []byte{1}))
		require.NoError(t, v2.Save("k", []byte{2}))

		got, ok, err := v1.Load("k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte{1}, got)

		keys, err := backing.Keys("")
		require.NoError(t, err)
		assert.Equal(t, []string{"v0.8.19;k", "v0.8.20;k"}, keys)

		keys, err = v2.Keys("")
		require.NoError(t, err)
		assert.Equal(t, []string{"k"}, keys)

		require.NoError(t, v1.Clear())
		keys, err = backing.Keys("")
		require.NoError(t, err)
		assert.Equal(t, []string{"v0.8.20;k"}, keys)
	})

	t.Run("empty_prefix", func(t *testing.T) {
		backing := NewMemStorage()
		assert.Same(t, backing, KeyPrefixStorage(backing, ""))
	})
}

func TestCachedStorage(t *testing.T) {
	t.Parallel()

	backing := NewMemStorage()
	require.NoError(t, backing.Save("warm", []byte("from backing")))
	store, err := NewCachedStorage(backing, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	got, ok, err := store.Load("warm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("from backing"), got)

	require.NoError(t, store.Save("k", []byte("value")))
	got, ok, err = backing.Load("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, store.Delete("k"))
	_, ok, err = store.Load("k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = backing.Load("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
