package arena

import (
	"github.com/aquilax/go-perlin"

	"github.com/annelo/driftsync/internal/transform"
)

// Параметры шума Перлина, как в генераторе ландшафта.
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = int32(3)
)

// GenerateParams describes a generated arena. The same params always produce
// the same grid, so clients rebuild it from the seed instead of downloading it.
type GenerateParams struct {
	Seed   int64
	Width  int
	Height int
	// Threshold: tiles whose noise value exceeds it become walls.
	Threshold float64
	// Scale: smaller values give larger, smoother obstacles.
	Scale float64
	// Clear lists cells that must stay free, e.g. spawn points.
	Clear []transform.Cell
}

// Generate builds a walled arena with perlin noise obstacles.
func Generate(p GenerateParams) *Grid {
	g := NewGrid(p.Width, p.Height)
	noise := perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, p.Seed)

	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			border := x == 0 || y == 0 || x == g.width-1 || y == g.height-1
			if border || noise.Noise2D(float64(x)*p.Scale, float64(y)*p.Scale) > p.Threshold {
				g.solid[y*g.width+x] = true
			}
		}
	}
	for _, c := range p.Clear {
		if c.X > 0 && c.Y > 0 && c.X < g.width-1 && c.Y < g.height-1 {
			g.solid[g.index(c)] = false
		}
	}
	return g
}
