package csg

import (
	"sync"

	"github.com/chazu/bso/pkg/mesh"
	"github.com/chazu/bso/pkg/tree"
)

// Cache holds the uncategorized base mesh of each processed node. A Cache
// belongs to one tree; share it between evaluations of that tree only.
// Stored meshes are never handed out directly, callers get clones.
type Cache struct {
	mu     sync.Mutex
	meshes map[tree.NodeID]*mesh.Mesh
	hits   int
	misses int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{meshes: make(map[tree.NodeID]*mesh.Mesh)}
}

func (c *Cache) get(id tree.NodeID) (*mesh.Mesh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.meshes[id]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return m, ok
}

func (c *Cache) put(id tree.NodeID, m *mesh.Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meshes[id] = m
}

// Invalidate drops the mesh of id and of every ancestor, whose combined
// meshes were built from it.
func (c *Cache) Invalidate(t *tree.Tree, id tree.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := t.Get(id); n != nil; n = t.Get(n.Parent) {
		delete(c.meshes, n.ID)
	}
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meshes = make(map[tree.NodeID]*mesh.Mesh)
	c.hits, c.misses = 0, 0
}

// Len returns the number of cached meshes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.meshes)
}

// Stats returns lookup hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
