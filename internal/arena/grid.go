// Package arena provides the tile grid used for drift collision queries and the
// spatial registry that records which tile each visible entity occupies.
package arena

import (
	"strings"
	"sync"

	"github.com/annelo/driftsync/internal/transform"
)

// Grid is a bounded tile map in local cell space. Everything outside the bounds
// counts as wall.
type Grid struct {
	mu     sync.RWMutex
	width  int
	height int
	solid  []bool
}

// NewGrid creates an empty grid.
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{width: width, height: height, solid: make([]bool, width*height)}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether the cell lies inside the grid. Z is ignored.
func (g *Grid) InBounds(c transform.Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// IsFree reports whether an entity may drift into the cell.
func (g *Grid) IsFree(c transform.Cell) bool {
	if !g.InBounds(c) {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.solid[g.index(c)]
}

// SetSolid marks or clears a wall tile. Out of bounds cells are ignored.
func (g *Grid) SetSolid(c transform.Cell, solid bool) bool {
	if !g.InBounds(c) {
		return false
	}
	g.mu.Lock()
	g.solid[g.index(c)] = solid
	g.mu.Unlock()
	return true
}

// SolidCount returns the number of wall tiles.
func (g *Grid) SolidCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, s := range g.solid {
		if s {
			n++
		}
	}
	return n
}

// String renders the grid with '#' for walls, row y=0 first.
func (g *Grid) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var sb strings.Builder
	sb.Grow((g.width + 1) * g.height)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.solid[y*g.width+x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (g *Grid) index(c transform.Cell) int {
	return c.Y*g.width + c.X
}
