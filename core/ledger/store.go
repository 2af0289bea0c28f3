package ledger

import (
	"errors"
	"sort"

	"leverageloop/storage"
)

// cacheStore buffers the writes of one transaction over the committed
// database. Nothing reaches the database until commit.
type cacheStore struct {
	parent  storage.Database
	dirty   map[string][]byte
	deleted map[string]struct{}
}

func newCacheStore(parent storage.Database) *cacheStore {
	return &cacheStore{
		parent:  parent,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (c *cacheStore) Get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if _, ok := c.deleted[k]; ok {
		return nil, false, nil
	}
	if v, ok := c.dirty[k]; ok {
		return append([]byte(nil), v...), true, nil
	}
	v, err := c.parent.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *cacheStore) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	k := string(key)
	delete(c.deleted, k)
	c.dirty[k] = append([]byte(nil), value...)
	return nil
}

func (c *cacheStore) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	k := string(key)
	delete(c.dirty, k)
	c.deleted[k] = struct{}{}
	return nil
}

// commit writes every buffered change in one batch, in key order.
func (c *cacheStore) commit() error {
	batch := c.parent.NewBatch()
	for _, k := range sortedKeys(c.dirty) {
		batch.Put([]byte(k), c.dirty[k])
	}
	deleted := make([]string, 0, len(c.deleted))
	for k := range c.deleted {
		deleted = append(deleted, k)
	}
	sort.Strings(deleted)
	for _, k := range deleted {
		batch.Delete([]byte(k))
	}
	if batch.Len() == 0 {
		return nil
	}
	return batch.Write()
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type prefixStore struct {
	parent KVStore
	prefix []byte
}

func newPrefixStore(parent KVStore, prefix string) prefixStore {
	return prefixStore{parent: parent, prefix: []byte(prefix)}
}

func (p prefixStore) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p prefixStore) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}
	return p.parent.Get(p.key(key))
}

func (p prefixStore) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return p.parent.Set(p.key(key), value)
}

func (p prefixStore) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return p.parent.Delete(p.key(key))
}

type readOnlyStore struct {
	KVStore
}

func (readOnlyStore) Set([]byte, []byte) error { return ErrReadOnly }

func (readOnlyStore) Delete([]byte) error { return ErrReadOnly }
