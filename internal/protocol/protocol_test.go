package protocol

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/annelo/driftsync/internal/netsync"
	"github.com/annelo/driftsync/internal/transform"
)

func TestTransformUpdateCarriesFullState(t *testing.T) {
	u := netsync.Update{
		EntityID: "crate-1",
		Seq:      42,
		State: transform.State{
			Active:   true,
			Speed:    2.5,
			Impulse:  mgl64.Vec2{0.6, -0.8},
			LocalPos: mgl64.Vec3{3.25, -1, 0},
		},
	}

	var c Codec
	data, err := c.Marshal(&ServerEvent{Update: NewTransformUpdate(u)})
	require.NoError(t, err)

	var ev ServerEvent
	require.NoError(t, c.Unmarshal(data, &ev))
	require.NotNil(t, ev.Update)
	assert.Nil(t, ev.WorldInfo)
	assert.Equal(t, u, ev.Update.Update())
}

func TestNegativeZeroSurvives(t *testing.T) {
	in := &TransformUpdate{EntityID: "a", ImpulseX: math.Copysign(0, -1)}

	var out TransformUpdate
	require.NoError(t, out.UnmarshalWire(in.AppendWire(nil)))
	assert.True(t, math.Signbit(out.ImpulseX), "-0.0 selects the floor branch of rounding and must not be lost")
	assert.False(t, math.Signbit(out.ImpulseY))
}

func TestHiddenStateEncodesSentinel(t *testing.T) {
	u := netsync.Update{EntityID: "x", Seq: 1, State: transform.Hidden()}
	got := NewTransformUpdate(u).Update()
	assert.Equal(t, transform.InvalidPos, got.State.LocalPos)
	assert.False(t, got.State.Active)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	b := (&EntitySpawn{EntityID: "barrel", X: 4, Y: 5}).AppendWire(nil)
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer server")
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type) // wrong type for a known field
	b = protowire.AppendFixed64(b, 7)

	var s EntitySpawn
	require.NoError(t, s.UnmarshalWire(b))
	assert.Equal(t, "barrel", s.EntityID)
	assert.Equal(t, mgl64.Vec3{4, 5, 0}, s.Spawn())
}

func TestUnmarshalResetsMessage(t *testing.T) {
	m := &EntityRequest{EntityID: "old", X: 1, Notify: true}
	require.NoError(t, m.UnmarshalWire((&EntityRequest{EntityID: "new"}).AppendWire(nil)))
	assert.Equal(t, &EntityRequest{EntityID: "new"}, m)
}

func TestTruncatedInput(t *testing.T) {
	b := (&WorldInfo{ClientID: "c", Seed: -5, Width: 20}).AppendWire(nil)

	var w WorldInfo
	assert.Error(t, w.UnmarshalWire(b[:len(b)-1]))
}

func TestWorldInfoNegativeSeed(t *testing.T) {
	in := &WorldInfo{ClientID: "c", Seed: -5, Width: 20, Height: 10, Threshold: 0.3, Scale: 0.1, SpeedMultiplier: 1, TickRate: 20}

	var out WorldInfo
	require.NoError(t, out.UnmarshalWire(in.AppendWire(nil)))
	assert.Equal(t, in, &out)
}

func TestListResponseKeepsOrder(t *testing.T) {
	in := &ListResponse{Entities: []*TransformUpdate{{EntityID: "a", Seq: 1}, {EntityID: "b", Seq: 3}}}

	var out ListResponse
	require.NoError(t, out.UnmarshalWire(in.AppendWire(nil)))
	assert.Equal(t, in, &out)
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	var c Codec
	_, err := c.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, c.Unmarshal(nil, new(int)))
	assert.Equal(t, CodecName, c.Name())
}
