// Package entitymanager keeps the synchronized entities of one process.
package entitymanager

import (
	"errors"
	"sort"
	"sync"

	"github.com/annelo/driftsync/internal/netsync"
)

var (
	// ErrExists is returned when an id is added twice.
	ErrExists = errors.New("entity with this id already exists")
	// ErrNotFound is returned for unknown ids.
	ErrNotFound = errors.New("entity not found")
)

// EntityManager maps entity ids to their sync bindings.
type EntityManager struct {
	entities map[string]*netsync.Entity
	mu       sync.RWMutex
}

// NewEntityManager creates an empty manager.
func NewEntityManager() *EntityManager {
	return &EntityManager{
		entities: make(map[string]*netsync.Entity),
	}
}

// Add registers an entity under its id.
func (em *EntityManager) Add(e *netsync.Entity) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, exists := em.entities[e.ID()]; exists {
		return ErrExists
	}
	em.entities[e.ID()] = e
	return nil
}

// Get returns the entity with the given id.
func (em *EntityManager) Get(id string) (*netsync.Entity, error) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	e, exists := em.entities[id]
	if !exists {
		return nil, ErrNotFound
	}
	return e, nil
}

// Remove deletes the entity with the given id.
func (em *EntityManager) Remove(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, exists := em.entities[id]; !exists {
		return ErrNotFound
	}
	delete(em.entities, id)
	return nil
}

// All returns every entity ordered by id, so ticks visit them in a stable order.
func (em *EntityManager) All() []*netsync.Entity {
	em.mu.RLock()
	defer em.mu.RUnlock()

	entities := make([]*netsync.Entity, 0, len(em.entities))
	for _, e := range em.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID() < entities[j].ID() })
	return entities
}

// Len returns the number of entities.
func (em *EntityManager) Len() int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.entities)
}
