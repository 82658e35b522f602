package cache

import "sync"

// Cell holds a single cached value behind a read-write lock. Writers
// replace the value wholesale; readers may observe a slightly stale
// copy but never a torn one. The zero value is an empty cell.
type Cell[T any] struct {
	mu        sync.RWMutex
	value     T
	populated bool
}

func NewCell[T any]() *Cell[T] {
	return &Cell[T]{}
}

// Get returns the cached value and whether the cell has ever been set.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.populated
}

// Set replaces the cached value. There is no merge; the previous value
// is discarded.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	c.value = value
	c.populated = true
	c.mu.Unlock()
}

// Clear empties the cell so the next Get reports no value.
func (c *Cell[T]) Clear() {
	var zero T
	c.mu.Lock()
	c.value = zero
	c.populated = false
	c.mu.Unlock()
}
