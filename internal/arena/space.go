package arena

import (
	"sort"
	"sync"

	"github.com/solarlune/resolv"

	"github.com/annelo/driftsync/internal/transform"
)

const (
	tagEntity = "entity"
	// resolv measures bounds in whole units, one tile spans tileSize of them.
	tileSize = 16
)

// Space records the tile every visible entity is registered at. Register and
// Unregister are idempotent.
type Space struct {
	mu      sync.RWMutex
	space   *resolv.Space
	objects map[string]*resolv.Object
	owners  map[*resolv.Object]string
	cells   map[string]transform.Cell
}

// NewSpace creates a registry covering a width x height tile area.
func NewSpace(width, height int) *Space {
	return &Space{
		space:   resolv.NewSpace(width*tileSize, height*tileSize, tileSize, tileSize),
		objects: make(map[string]*resolv.Object),
		owners:  make(map[*resolv.Object]string),
		cells:   make(map[string]transform.Cell),
	}
}

// Register places the entity at cell, moving it if it is already registered.
func (s *Space) Register(entityID string, cell transform.Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, y := tileOrigin(cell)
	if obj, ok := s.objects[entityID]; ok {
		obj.X, obj.Y = x, y
		obj.Update()
	} else {
		obj = resolv.NewObject(x, y, tileSize, tileSize, tagEntity)
		s.space.Add(obj)
		s.objects[entityID] = obj
		s.owners[obj] = entityID
	}
	s.cells[entityID] = cell
}

// Unregister removes the entity from the space.
func (s *Space) Unregister(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[entityID]; ok {
		s.space.Remove(obj)
		delete(s.owners, obj)
		delete(s.objects, entityID)
	}
	delete(s.cells, entityID)
}

// RegisteredCell returns the cell the entity was last registered at.
func (s *Space) RegisteredCell(entityID string) (transform.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[entityID]
	return c, ok
}

// Occupants returns the ids of entities registered at cell, sorted.
func (s *Space) Occupants(cell transform.Cell) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, y := tileOrigin(cell)
	probe := resolv.NewObject(x, y, tileSize, tileSize)
	s.space.Add(probe)
	defer s.space.Remove(probe)

	var ids []string
	if check := probe.Check(0, 0, tagEntity); check != nil {
		for _, obj := range check.ObjectsByTags(tagEntity) {
			if id, ok := s.owners[obj]; ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Registered returns a copy of all registrations.
func (s *Space) Registered() map[string]transform.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]transform.Cell, len(s.cells))
	for id, c := range s.cells {
		out[id] = c
	}
	return out
}

// Len returns the number of registered entities.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

func tileOrigin(c transform.Cell) (float64, float64) {
	return float64(c.X * tileSize), float64(c.Y * tileSize)
}
