package drift

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/annelo/driftsync/internal/transform"
)

type cellSet map[transform.Cell]bool

func (s cellSet) IsFree(c transform.Cell) bool { return !s[c] }

func floating(pos mgl64.Vec3, impulse mgl64.Vec2, speed float64) transform.State {
	return transform.State{Active: true, Speed: speed, Impulse: impulse, LocalPos: pos}
}

func TestStepAdvancesIntoFreeCell(t *testing.T) {
	st := floating(mgl64.Vec3{5, 5, 0}, mgl64.Vec2{1, 0}, 2)
	out := Step(&st, 1.5, 0.25, cellSet{})

	assert.Equal(t, OutcomeDrifted, out)
	assert.Equal(t, mgl64.Vec2{1, 0}, st.Impulse)
	assert.Equal(t, mgl64.Vec3{5.75, 5, 0}, st.LocalPos)
}

func TestStepAdvanceMatchesDisplacement(t *testing.T) {
	impulse := mgl64.Vec2{0.6, -0.8}
	start := mgl64.Vec3{10, 10, 0}
	st := floating(start, impulse, 2.5)
	want := start.Add(impulse.Vec3(0).Mul(2.5 * 1 * (1.0 / 60)))

	Step(&st, 1, 1.0/60, cellSet{})
	assert.Equal(t, want, st.LocalPos)
}

func TestStepHaltsOnOccupiedCell(t *testing.T) {
	st := floating(mgl64.Vec3{5, 5, 0}, mgl64.Vec2{1, 0}, 2)
	blocked := cellSet{{X: 6, Y: 5}: true}

	out := Step(&st, 1, 0.1, blocked)

	assert.Equal(t, OutcomeHalted, out)
	assert.Equal(t, mgl64.Vec2{}, st.Impulse)
	assert.Equal(t, 2.0, st.Speed, "speed is left untouched")
	assert.Equal(t, mgl64.Vec3{5, 5, 0}, st.LocalPos, "position is not committed")
	assert.False(t, st.IsFloating())
}

func TestStepLaggingCheck(t *testing.T) {
	// Moving right from 5.0 the target cell is ceil(5.x) = 6 until x passes 6.
	// The state keeps its continuous position, so the blocked cell 7 is only
	// noticed once the candidate rounds into it.
	st := floating(mgl64.Vec3{5, 5, 0}, mgl64.Vec2{1, 0}, 1)
	blocked := cellSet{{X: 7, Y: 5}: true}

	assert.Equal(t, OutcomeDrifted, Step(&st, 1, 0.5, blocked))
	assert.Equal(t, OutcomeDrifted, Step(&st, 1, 0.5, blocked))
	assert.Equal(t, 6.0, st.LocalPos[0])
	assert.Equal(t, OutcomeHalted, Step(&st, 1, 0.5, blocked))
	assert.Equal(t, 6.0, st.LocalPos[0])
}

func TestStepIdleWhenNotFloating(t *testing.T) {
	st := floating(mgl64.Vec3{1, 1, 0}, mgl64.Vec2{}, 3)
	assert.Equal(t, OutcomeIdle, Step(&st, 1, 1, cellSet{}))
	assert.Equal(t, mgl64.Vec3{1, 1, 0}, st.LocalPos)
}

func TestStepWithoutOccupancyKeepsDrifting(t *testing.T) {
	st := floating(mgl64.Vec3{1, 1, 0}, mgl64.Vec2{0, 1}, 1)
	assert.Equal(t, OutcomeUnchecked, Step(&st, 1, 1, nil))
	assert.Equal(t, mgl64.Vec3{1, 2, 0}, st.LocalPos)
	assert.Equal(t, mgl64.Vec2{0, 1}, st.Impulse)
}

func TestPredictIgnoresObstacles(t *testing.T) {
	st := floating(mgl64.Vec3{0, 0, 0}, mgl64.Vec2{-1, 0}, 4)
	Predict(&st, 0.5, 0.5)
	assert.Equal(t, mgl64.Vec3{-1, 0, 0}, st.LocalPos)
}

func TestNextCell(t *testing.T) {
	assert.Equal(t, transform.Cell{X: 6, Y: 4}, NextCell(mgl64.Vec3{5, 5, 0}, mgl64.Vec2{0.6, -0.8}))
	assert.Equal(t, transform.Cell{X: 4, Y: 6}, NextCell(mgl64.Vec3{5, 5, 0}, mgl64.Vec2{-0.6, 0.8}))
}

func TestCanDriftTo(t *testing.T) {
	assert.False(t, CanDriftTo(nil, transform.Cell{}))
	assert.True(t, CanDriftTo(cellSet{}, transform.Cell{X: 1}))
	assert.False(t, CanDriftTo(cellSet{{X: 1}: true}, transform.Cell{X: 1}))
}
