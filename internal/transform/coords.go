package transform

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// InvalidPos marks an entity that is nowhere in the world.
	InvalidPos = mgl64.Vec3{0, 0, -100}
	// Offset compensates the misalignment between the tile grid and the render grid.
	Offset = mgl64.Vec3{-1, -1, 0}
)

// Cell is an integer tile coordinate in local space.
type Cell struct {
	X, Y, Z int
}

// Vec3 returns the cell as a continuous position.
func (c Cell) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(c.X), float64(c.Y), float64(c.Z)}
}

// Add returns the cell shifted by dx, dy.
func (c Cell) Add(dx, dy int) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy, Z: c.Z}
}

func (c Cell) String() string {
	return fmt.Sprintf("[%d,%d,%d]", c.X, c.Y, c.Z)
}

// ToWorld converts a local position to world space.
func ToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return local.Sub(Offset)
}

// ToLocal converts a world position to local space.
func ToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return world.Add(Offset)
}

// RoundWithContext returns the cell an entity moving along impulse is heading into.
// Each axis rounds up unless its impulse component is negative, so a fractional
// position is tested against the tile in front of it rather than the one behind.
func RoundWithContext(v mgl64.Vec3, impulse mgl64.Vec2) Cell {
	return Cell{
		X: roundAxis(v[0], impulse[0]),
		Y: roundAxis(v[1], impulse[1]),
	}
}

func roundAxis(v, direction float64) int {
	// -0.0 < 0 is false, so a signed zero takes the ceiling branch.
	if direction < 0 {
		return int(math.Floor(v))
	}
	return int(math.Ceil(v))
}

// RoundToCell rounds every axis to the nearest integer, halves to even.
func RoundToCell(v mgl64.Vec3) Cell {
	return Cell{
		X: int(math.RoundToEven(v[0])),
		Y: int(math.RoundToEven(v[1])),
		Z: int(math.RoundToEven(v[2])),
	}
}
