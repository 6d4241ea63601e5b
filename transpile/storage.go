package transpile

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/dgraph-io/ristretto/v2"
)

// Storage persists encoded transpile results by cache key.
type Storage interface {
	Save(key string, blob []byte) error
	// Load returns the blob for key, false if the key is not stored.
	Load(key string) ([]byte, bool, error)
	Delete(key string) error
	// Keys returns the stored keys beginning with prefix, sorted.
	Keys(prefix string) ([]string, error)
	Clear() error
	Close() error
}

// KeyPrefixStorage namespaces another Storage, for example by compiler version. Keys returned are stripped of
// the namespace.
func KeyPrefixStorage(s Storage, prefix string) Storage {
	if prefix == "" {
		return s
	}
	return &prefixStorage{store: s, prefix: prefix + ";"}
}

type prefixStorage struct {
	store  Storage
	prefix string
}

func (p *prefixStorage) Save(key string, blob []byte) error {
	return p.store.Save(p.prefix+key, blob)
}

func (p *prefixStorage) Load(key string) ([]byte, bool, error) {
	return p.store.Load(p.prefix + key)
}

func (p *prefixStorage) Delete(key string) error {
	return p.store.Delete(p.prefix + key)
}

func (p *prefixStorage) Keys(prefix string) ([]string, error) {
	keys, err := p.store.Keys(p.prefix + prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, p.prefix)
	}
	return keys, nil
}

// Clear removes only the keys within the namespace.
func (p *prefixStorage) Clear() error {
	keys, err := p.Keys("")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := p.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (p *prefixStorage) Close() error {
	return p.store.Close()
}

type memStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStorage returns a Storage held in process memory.
func NewMemStorage() Storage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) Save(key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = slices.Clone(blob)
	return nil
}

func (m *memStorage) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(blob), true, nil
}

func (m *memStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *memStorage) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *memStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.data)
	return nil
}

func (m *memStorage) Close() error {
	return nil
}

type badgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens, or creates, a persistent Storage in dir. Records are compressed by the caller so
// the database compression is disabled.
func NewBadgerStorage(dir string, maxMemMB int) (Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir failed: %w", err)
	}

	clamp := func(val, lo, high int64) int64 {
		return min(max(val, lo), high)
	}
	memTableSize := clamp(int64(maxMemMB/4), 8, 64) << 20
	opts := badger.DefaultOptions(dir).
		WithCompression(options.None).
		WithBlockCacheSize(0). // block cache is only useful with compression
		WithIndexCacheSize(clamp(int64(maxMemMB/8), 4, 64) << 20).
		WithNumMemtables(2).
		WithMemTableSize(memTableSize).
		WithBaseTableSize(memTableSize).
		WithValueLogFileSize(64 << 20).
		WithLoggingLevel(badger.ERROR).
		WithMetricsEnabled(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache db failed: %w", err)
	}
	return &badgerStorage{db: db}, nil
}

func (b *badgerStorage) Save(key string, blob []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
}

func (b *badgerStorage) Load(key string) ([]byte, bool, error) {
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (b *badgerStorage) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *badgerStorage) Keys(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

func (b *badgerStorage) Clear() error {
	return b.db.DropAll()
}

func (b *badgerStorage) Close() error {
	return b.db.Close()
}

// cachedStorage keeps recently used records in memory, snappy compressed, in front of a slower store.
type cachedStorage struct {
	store Storage
	cache *ristretto.Cache[string, []byte]
}

// NewCachedStorage fronts store with an in-memory cache bounded to maxMemMB of compressed records.
func NewCachedStorage(store Storage, maxMemMB int) (Storage, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     int64(max(maxMemMB, 1)) << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache failed: %w", err)
	}
	return &cachedStorage{store: store, cache: cache}, nil
}

func (c *cachedStorage) Save(key string, blob []byte) error {
	if err := c.store.Save(key, blob); err != nil {
		return err
	}
	compressed := SnappyCompress(nil, blob)
	c.cache.Set(key, compressed, int64(len(compressed)))
	c.cache.Wait()
	return nil
}

func (c *cachedStorage) Load(key string) ([]byte, bool, error) {
	if compressed, ok := c.cache.Get(key); ok {
		blob, err := SnappyDecompress(nil, compressed)
		if err == nil {
			return blob, true, nil
		}
		c.cache.Del(key) // corrupt entry, fall through to the store
	}
	blob, ok, err := c.store.Load(key)
	if err != nil || !ok {
		return blob, ok, err
	}
	compressed := SnappyCompress(nil, blob)
	c.cache.Set(key, compressed, int64(len(compressed)))
	return blob, true, nil
}

func (c *cachedStorage) Delete(key string) error {
	c.cache.Del(key)
	return c.store.Delete(key)
}

func (c *cachedStorage) Keys(prefix string) ([]string, error) {
	return c.store.Keys(prefix)
}

func (c *cachedStorage) Clear() error {
	c.cache.Clear()
	return c.store.Clear()
}

func (c *cachedStorage) Close() error {
	c.cache.Close()
	return c.store.Close()
}
