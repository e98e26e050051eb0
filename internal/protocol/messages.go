package protocol

import (
	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/annelo/driftsync/internal/netsync"
	"github.com/annelo/driftsync/internal/transform"
)

// TransformUpdate carries the full authoritative state of one entity.
type TransformUpdate struct {
	EntityID string
	Seq      uint64
	Active   bool
	Speed    float64
	ImpulseX float64
	ImpulseY float64
	LocalX   float64
	LocalY   float64
	LocalZ   float64
}

// NewTransformUpdate converts a sync update to its wire form.
func NewTransformUpdate(u netsync.Update) *TransformUpdate {
	st := u.State
	return &TransformUpdate{
		EntityID: u.EntityID,
		Seq:      u.Seq,
		Active:   st.Active,
		Speed:    st.Speed,
		ImpulseX: st.Impulse[0],
		ImpulseY: st.Impulse[1],
		LocalX:   st.LocalPos[0],
		LocalY:   st.LocalPos[1],
		LocalZ:   st.LocalPos[2],
	}
}

// Update converts the wire form back to a sync update.
func (m *TransformUpdate) Update() netsync.Update {
	return netsync.Update{
		EntityID: m.EntityID,
		Seq:      m.Seq,
		State: transform.State{
			Active:   m.Active,
			Speed:    m.Speed,
			Impulse:  mgl64.Vec2{m.ImpulseX, m.ImpulseY},
			LocalPos: mgl64.Vec3{m.LocalX, m.LocalY, m.LocalZ},
		},
	}
}

func (m *TransformUpdate) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.EntityID)
	b = appendUvarint(b, 2, m.Seq)
	b = appendBool(b, 3, m.Active)
	b = appendDouble(b, 4, m.Speed)
	b = appendDouble(b, 5, m.ImpulseX)
	b = appendDouble(b, 6, m.ImpulseY)
	b = appendDouble(b, 7, m.LocalX)
	b = appendDouble(b, 8, m.LocalY)
	b = appendDouble(b, 9, m.LocalZ)
	return b
}

func (m *TransformUpdate) UnmarshalWire(b []byte) error {
	*m = TransformUpdate{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.EntityID)
		case 2:
			return consumeUvarint(typ, b, &m.Seq)
		case 3:
			return consumeBool(typ, b, &m.Active)
		case 4:
			return consumeDouble(typ, b, &m.Speed)
		case 5:
			return consumeDouble(typ, b, &m.ImpulseX)
		case 6:
			return consumeDouble(typ, b, &m.ImpulseY)
		case 7:
			return consumeDouble(typ, b, &m.LocalX)
		case 8:
			return consumeDouble(typ, b, &m.LocalY)
		case 9:
			return consumeDouble(typ, b, &m.LocalZ)
		}
		return 0
	})
}

// EntitySpawn announces an entity and its initial local transform.
type EntitySpawn struct {
	EntityID string
	X, Y, Z  float64
}

// Spawn returns the initial local transform.
func (m *EntitySpawn) Spawn() mgl64.Vec3 {
	return mgl64.Vec3{m.X, m.Y, m.Z}
}

func (m *EntitySpawn) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.EntityID)
	b = appendDouble(b, 2, m.X)
	b = appendDouble(b, 3, m.Y)
	b = appendDouble(b, 4, m.Z)
	return b
}

func (m *EntitySpawn) UnmarshalWire(b []byte) error {
	*m = EntitySpawn{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.EntityID)
		case 2:
			return consumeDouble(typ, b, &m.X)
		case 3:
			return consumeDouble(typ, b, &m.Y)
		case 4:
			return consumeDouble(typ, b, &m.Z)
		}
		return 0
	})
}

// EntityDespawn tells clients to forget an entity.
type EntityDespawn struct {
	EntityID string
}

func (m *EntityDespawn) AppendWire(b []byte) []byte {
	return appendString(b, 1, m.EntityID)
}

func (m *EntityDespawn) UnmarshalWire(b []byte) error {
	*m = EntityDespawn{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.EntityID)
		}
		return 0
	})
}

// WorldInfo is the first event of every subscription. It carries everything a
// client needs to rebuild the arena and drift at the server's rate.
type WorldInfo struct {
	ClientID        string
	Seed            int64
	Width           int32
	Height          int32
	Threshold       float64
	Scale           float64
	SpeedMultiplier float64
	TickRate        int32
	// Clear lists the cells generation kept free, usually spawn points.
	Clear []*CellRef
}

func (m *WorldInfo) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.ClientID)
	b = appendUvarint(b, 2, uint64(m.Seed))
	b = appendUvarint(b, 3, uint64(m.Width))
	b = appendUvarint(b, 4, uint64(m.Height))
	b = appendDouble(b, 5, m.Threshold)
	b = appendDouble(b, 6, m.Scale)
	b = appendDouble(b, 7, m.SpeedMultiplier)
	b = appendUvarint(b, 8, uint64(m.TickRate))
	for _, c := range m.Clear {
		b = appendMessage(b, 9, c)
	}
	return b
}

func (m *WorldInfo) UnmarshalWire(b []byte) error {
	*m = WorldInfo{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ClientID)
		case 2:
			return consumeInt64(typ, b, &m.Seed)
		case 3:
			return consumeInt32(typ, b, &m.Width)
		case 4:
			return consumeInt32(typ, b, &m.Height)
		case 5:
			return consumeDouble(typ, b, &m.Threshold)
		case 6:
			return consumeDouble(typ, b, &m.Scale)
		case 7:
			return consumeDouble(typ, b, &m.SpeedMultiplier)
		case 8:
			return consumeInt32(typ, b, &m.TickRate)
		case 9:
			c := new(CellRef)
			n := consumeMessage(typ, b, c)
			if n > 0 {
				m.Clear = append(m.Clear, c)
			}
			return n
		}
		return 0
	})
}

// CellRef is a tile of the arena grid.
type CellRef struct {
	X, Y int32
}

// NewCellRef converts a grid cell, Z is dropped.
func NewCellRef(c transform.Cell) *CellRef {
	return &CellRef{X: int32(c.X), Y: int32(c.Y)}
}

func (m *CellRef) Cell() transform.Cell {
	return transform.Cell{X: int(m.X), Y: int(m.Y)}
}

func (m *CellRef) AppendWire(b []byte) []byte {
	b = appendUvarint(b, 1, uint64(m.X))
	b = appendUvarint(b, 2, uint64(m.Y))
	return b
}

func (m *CellRef) UnmarshalWire(b []byte) error {
	*m = CellRef{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeInt32(typ, b, &m.X)
		case 2:
			return consumeInt32(typ, b, &m.Y)
		}
		return 0
	})
}

// ServerEvent is the envelope streamed to subscribers. Exactly one field is set.
type ServerEvent struct {
	WorldInfo *WorldInfo
	Spawn     *EntitySpawn
	Despawn   *EntityDespawn
	Update    *TransformUpdate
	// Shutdown carries the reason the server is going away.
	Shutdown string
}

func (m *ServerEvent) AppendWire(b []byte) []byte {
	switch {
	case m.WorldInfo != nil:
		b = appendMessage(b, 1, m.WorldInfo)
	case m.Spawn != nil:
		b = appendMessage(b, 2, m.Spawn)
	case m.Despawn != nil:
		b = appendMessage(b, 3, m.Despawn)
	case m.Update != nil:
		b = appendMessage(b, 4, m.Update)
	case m.Shutdown != "":
		b = appendString(b, 5, m.Shutdown)
	}
	return b
}

func (m *ServerEvent) UnmarshalWire(b []byte) error {
	*m = ServerEvent{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			m.WorldInfo = new(WorldInfo)
			return consumeMessage(typ, b, m.WorldInfo)
		case 2:
			m.Spawn = new(EntitySpawn)
			return consumeMessage(typ, b, m.Spawn)
		case 3:
			m.Despawn = new(EntityDespawn)
			return consumeMessage(typ, b, m.Despawn)
		case 4:
			m.Update = new(TransformUpdate)
			return consumeMessage(typ, b, m.Update)
		case 5:
			return consumeString(typ, b, &m.Shutdown)
		}
		return 0
	})
}

// SubscribeRequest opens the event stream.
type SubscribeRequest struct {
	ClientName string
}

func (m *SubscribeRequest) AppendWire(b []byte) []byte {
	return appendString(b, 1, m.ClientName)
}

func (m *SubscribeRequest) UnmarshalWire(b []byte) error {
	*m = SubscribeRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.ClientName)
		}
		return 0
	})
}

// EntityRequest addresses one entity for the control calls. X and Y are world
// coordinates; Notify is only used by Teleport.
type EntityRequest struct {
	EntityID string
	X, Y     float64
	Notify   bool
}

func (m *EntityRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.EntityID)
	b = appendDouble(b, 2, m.X)
	b = appendDouble(b, 3, m.Y)
	b = appendBool(b, 4, m.Notify)
	return b
}

func (m *EntityRequest) UnmarshalWire(b []byte) error {
	*m = EntityRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.EntityID)
		case 2:
			return consumeDouble(typ, b, &m.X)
		case 3:
			return consumeDouble(typ, b, &m.Y)
		case 4:
			return consumeBool(typ, b, &m.Notify)
		}
		return 0
	})
}

// Ack answers a control call with the entity's resulting state.
type Ack struct {
	State *TransformUpdate
}

func (m *Ack) AppendWire(b []byte) []byte {
	if m.State != nil {
		b = appendMessage(b, 1, m.State)
	}
	return b
}

func (m *Ack) UnmarshalWire(b []byte) error {
	*m = Ack{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			m.State = new(TransformUpdate)
			return consumeMessage(typ, b, m.State)
		}
		return 0
	})
}

// ListRequest asks for the authoritative state of every entity.
type ListRequest struct{}

func (m *ListRequest) AppendWire(b []byte) []byte { return b }

func (m *ListRequest) UnmarshalWire(b []byte) error {
	return decodeFields(b, func(protowire.Number, protowire.Type, []byte) int { return 0 })
}

// ListResponse holds one entry per entity, ordered by id.
type ListResponse struct {
	Entities []*TransformUpdate
}

func (m *ListResponse) AppendWire(b []byte) []byte {
	for _, e := range m.Entities {
		b = appendMessage(b, 1, e)
	}
	return b
}

func (m *ListResponse) UnmarshalWire(b []byte) error {
	*m = ListResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			e := new(TransformUpdate)
			n := consumeMessage(typ, b, e)
			if n > 0 {
				m.Entities = append(m.Entities, e)
			}
			return n
		}
		return 0
	})
}
