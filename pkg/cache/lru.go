// Package cache provides a generic in-process LRU cache with secondary indexes,
// so that every entry belonging to one owner can be found or dropped in one call.
package cache

import (
	"container/list"
	"errors"
	"sync"
)

// ErrIndexNotFound is returned when querying an index that was never added.
var ErrIndexNotFound = errors.New("index not found")

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU 线程安全的最近最少使用缓存。capacity <= 0 时不限容量。
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[K]*list.Element

	extractors map[string]func(V) any
	// indexName -> indexValue -> keys
	indices map[string]map[any]map[K]struct{}
}

// New creates an LRU holding at most capacity entries.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	return &LRU[K, V]{
		capacity:   capacity,
		order:      list.New(),
		items:      make(map[K]*list.Element),
		extractors: make(map[string]func(V) any),
		indices:    make(map[string]map[any]map[K]struct{}),
	}
}

// AddIndex registers a secondary index and indexes the existing entries.
func (c *LRU[K, V]) AddIndex(name string, extractor func(V) any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.extractors[name] = extractor
	c.indices[name] = make(map[any]map[K]struct{})
	for k, el := range c.items {
		c.link(name, extractor(el.Value.(*entry[K, V]).value), k)
	}
}

// Set adds or replaces an entry, evicting the least recently used one when full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		c.unindex(e)
		e.value = value
		c.index(e)
		c.order.MoveToFront(el)
		return
	}

	e := &entry[K, V]{key: key, value: value}
	c.items[key] = c.order.PushFront(e)
	c.index(e)

	if c.capacity > 0 && c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
}

// Get returns the entry and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Del removes an entry.
func (c *LRU[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Find returns the entries whose index value matches.
func (c *LRU[K, V]) Find(indexName string, indexValue any) ([]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, ok := c.indices[indexName]
	if !ok {
		return nil, ErrIndexNotFound
	}
	keys := index[indexValue]
	out := make([]V, 0, len(keys))
	for k := range keys {
		out = append(out, c.items[k].Value.(*entry[K, V]).value)
	}
	return out, nil
}

// DelBy removes every entry whose index value matches and returns how many were removed.
func (c *LRU[K, V]) DelBy(indexName string, indexValue any) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, ok := c.indices[indexName]
	if !ok {
		return 0, ErrIndexNotFound
	}
	keys := make([]K, 0, len(index[indexValue]))
	for k := range index[indexValue] {
		keys = append(keys, k)
	}
	for _, k := range keys {
		c.remove(c.items[k])
	}
	return len(keys), nil
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every entry and keeps the registered indexes.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[K]*list.Element)
	for name := range c.extractors {
		c.indices[name] = make(map[any]map[K]struct{})
	}
}

// 以下方法要求调用方持有锁。

func (c *LRU[K, V]) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
	c.unindex(e)
}

func (c *LRU[K, V]) index(e *entry[K, V]) {
	for name, extract := range c.extractors {
		c.link(name, extract(e.value), e.key)
	}
}

func (c *LRU[K, V]) unindex(e *entry[K, V]) {
	for name, extract := range c.extractors {
		v := extract(e.value)
		keys := c.indices[name][v]
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.indices[name], v)
		}
	}
}

func (c *LRU[K, V]) link(name string, v any, key K) {
	keys, ok := c.indices[name][v]
	if !ok {
		keys = make(map[K]struct{})
		c.indices[name][v] = keys
	}
	keys[key] = struct{}{}
}
