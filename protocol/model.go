// Package protocol holds the wire model of the simulation object stream and
// the codec translating between frames and typed payloads.
package protocol

import "math"

// AxialPos is a hex grid coordinate. Used for rooms, tiles and offsets.
type AxialPos struct {
	Q int32 `json:"q"`
	R int32 `json:"r"`
}

// Add returns the component-wise sum of two positions.
func (p AxialPos) Add(o AxialPos) AxialPos {
	return AxialPos{Q: p.Q + o.Q, R: p.R + o.R}
}

const (
	sqrt3        = 1.7320508075688772
	sqrt3Over2   = 0.8660254037844386
	threeOverTwo = 1.5
)

// HexAxialToPixel converts an axial coordinate to 2D pixel space using the
// pointy-top hex basis.
func HexAxialToPixel(q, r float64) (x, y float64) {
	return q*sqrt3 + r*sqrt3Over2, r * threeOverTwo
}

// PixelToHexAxial is the inverse of HexAxialToPixel, rounding to the nearest
// hex.
func PixelToHexAxial(x, y float64) AxialPos {
	r := y / threeOverTwo
	q := (x - r*sqrt3Over2) / sqrt3
	return roundAxial(q, r)
}

func roundAxial(q, r float64) AxialPos {
	s := -q - r
	rq, rr, rs := math.Round(q), math.Round(r), math.Round(s)
	dq, dr, ds := math.Abs(rq-q), math.Abs(rr-r), math.Abs(rs-s)
	if dq > dr && dq > ds {
		rq = -rr - rs
	} else if dr > ds {
		rr = -rq - rs
	}
	return AxialPos{Q: int32(rq), R: int32(rr)}
}

// EntityPosition locates an entity: the room it is in, its position inside
// the room and the room's offset in the world.
type EntityPosition struct {
	Room   AxialPos `json:"room"`
	Pos    AxialPos `json:"pos"`
	Offset AxialPos `json:"offset"`
}

// AbsoluteAxial returns the world position of the entity.
func (p EntityPosition) AbsoluteAxial() AxialPos {
	return p.Pos.Add(p.Offset)
}

// AsPixel returns the world position of the entity in pixel space.
func (p EntityPosition) AsPixel() (x, y float64) {
	abs := p.AbsoluteAxial()
	return HexAxialToPixel(float64(abs.Q), float64(abs.R))
}

// SimEntityID is the server issued entity id. Ids may be recycled after an
// entity dies.
type SimEntityID int64

// EntitiesPayload is the full snapshot of one room at one tick.
type EntitiesPayload struct {
	Time       int64       `json:"time"`
	RoomID     AxialPos    `json:"roomId"`
	Bots       []Bot       `json:"bots"`
	Structures []Structure `json:"structures"`
	Resources  []Resource  `json:"resources"`
}

type Bot struct {
	ID            SimEntityID    `json:"id"`
	Pos           EntityPosition `json:"pos"`
	Carry         *Carry         `json:"carry,omitempty"`
	Hp            *Hp            `json:"hp,omitempty"`
	Script        *Script        `json:"script,omitempty"`
	Owner         *Owner         `json:"owner,omitempty"`
	Decay         *Decay         `json:"decay,omitempty"`
	Logs          *string        `json:"logs,omitempty"`
	Say           *string        `json:"say,omitempty"`
	MineIntent    *MineIntent    `json:"mineIntent,omitempty"`
	DropoffIntent *DropoffIntent `json:"dropoffIntent,omitempty"`
}

type MineIntent struct {
	TargetID SimEntityID `json:"targetId"`
}

type DropoffIntent struct {
	TargetID SimEntityID `json:"targetId"`
}

type Carry struct {
	Value    int64 `json:"value"`
	ValueMax int64 `json:"valueMax"`
}

type Hp struct {
	Value    int64 `json:"value"`
	ValueMax int64 `json:"valueMax"`
}

type Script struct {
	Data string `json:"data"`
}

type Owner struct {
	Data string `json:"data"`
}

type Decay struct {
	HpAmount      int64 `json:"hpAmount"`
	Interval      int64 `json:"interval"`
	TimeRemaining int64 `json:"timeRemaining"`
}

type Energy struct {
	Value    int64 `json:"value"`
	ValueMax int64 `json:"valueMax"`
}

type Structure struct {
	ID            SimEntityID    `json:"id"`
	Pos           EntityPosition `json:"pos"`
	Hp            Hp             `json:"hp"`
	Energy        Energy         `json:"energy"`
	EnergyRegen   int64          `json:"energyRegen"`
	Owner         Owner          `json:"owner"`
	StructureType StructureType  `json:"StructureType"`
}

type StructureType struct {
	Spawn Spawn `json:"Spawn"`
}

type Spawn struct {
	TimeToSpawn int64   `json:"timeToSpawn"`
	Spawning    int64   `json:"spawning"`
	SpawnQueue  []int64 `json:"spawnQueue"`
}

type Resource struct {
	ID           SimEntityID    `json:"id"`
	Pos          EntityPosition `json:"pos"`
	ResourceType ResourceType   `json:"ResourceType"`
}

type ResourceType struct {
	Energy Energy `json:"Energy"`
}

// TerrainPayload carries the tile codes of one room. Codes are ordered to
// match the room layout fetched at startup.
type TerrainPayload struct {
	RoomID AxialPos `json:"roomId"`
	Offset AxialPos `json:"offset"`
	Tiles  []int64  `json:"tiles"`
}

// MessageType tags an inbound Message.
type MessageType string

const (
	MessageEntities MessageType = "entities"
	MessageTerrain  MessageType = "terrain"
)

// Message is a decoded inbound frame. Exactly one of the payload fields is
// meaningful, selected by Type. A terrain message with a nil Terrain means
// the server has no terrain for the requested room.
type Message struct {
	Type     MessageType
	Entities *EntitiesPayload
	Terrain  *TerrainPayload
}
