// Package entities tracks the simulation entities seen in entity snapshots
// and reports spawns, moves and despawns between them.
//
// A Registry is not safe for concurrent use. Feed it from the same loop
// that drains the client's event bridge.
package entities

import (
	"fmt"
	"sort"

	"github.com/irishsmurf/caolo-client/protocol"
)

// StaleAfter is how many ticks an entity may go unreported before Collect
// despawns it.
const StaleAfter = 2

type EntityType uint8

const (
	Bot EntityType = iota
	Structure
	Resource
)

func (t EntityType) String() string {
	switch t {
	case Bot:
		return "bot"
	case Structure:
		return "structure"
	case Resource:
		return "resource"
	}
	return fmt.Sprintf("EntityType(%d)", uint8(t))
}

type ChangeKind uint8

const (
	Spawned ChangeKind = iota
	Moved
	Despawned
)

func (k ChangeKind) String() string {
	switch k {
	case Spawned:
		return "spawned"
	case Moved:
		return "moved"
	case Despawned:
		return "despawned"
	}
	return fmt.Sprintf("ChangeKind(%d)", uint8(k))
}

// Change is one lifecycle event produced by Apply or Collect.
type Change struct {
	Kind ChangeKind
	ID   protocol.SimEntityID
	Type EntityType
	Pos  protocol.EntityPosition
}

// Entity is the latest known state of one simulation entity. Record holds
// the *protocol.Bot, *protocol.Structure or *protocol.Resource it was last
// reported as.
type Entity struct {
	ID     protocol.SimEntityID
	Type   EntityType
	Pos    protocol.EntityPosition
	Time   int64
	Record any
}

// Registry maps server ids to entities. Identity is the (id, type) pair:
// an id reported again with a different type belongs to a new entity.
type Registry struct {
	byID      map[protocol.SimEntityID]*Entity
	positions map[protocol.AxialPos][]protocol.SimEntityID
	latest    int64
}

func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[protocol.SimEntityID]*Entity, 2048),
		positions: make(map[protocol.AxialPos][]protocol.SimEntityID, 2048),
		latest:    -1,
	}
}

// LatestTime is the newest snapshot time applied so far, -1 before any.
func (r *Registry) LatestTime() int64 { return r.latest }

func (r *Registry) Len() int { return len(r.byID) }

// Get returns the entity with id, if it is tracked.
func (r *Registry) Get(id protocol.SimEntityID) (Entity, bool) {
	e, ok := r.byID[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// At returns the ids of the entities standing on the absolute position pos.
func (r *Registry) At(pos protocol.AxialPos) []protocol.SimEntityID {
	return append([]protocol.SimEntityID(nil), r.positions[pos]...)
}

// Entities returns every tracked entity ordered by type and id.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Apply merges one snapshot. Structures are processed first, then
// resources, then bots.
func (r *Registry) Apply(p *protocol.EntitiesPayload) []Change {
	if p.Time > r.latest {
		r.latest = p.Time
	}
	var changes []Change
	for i := range p.Structures {
		s := &p.Structures[i]
		changes = r.upsert(changes, p.Time, s.ID, Structure, s.Pos, s)
	}
	for i := range p.Resources {
		res := &p.Resources[i]
		changes = r.upsert(changes, p.Time, res.ID, Resource, res.Pos, res)
	}
	for i := range p.Bots {
		b := &p.Bots[i]
		changes = r.upsert(changes, p.Time, b.ID, Bot, b.Pos, b)
	}
	return changes
}

func (r *Registry) upsert(changes []Change, time int64, id protocol.SimEntityID, ty EntityType, pos protocol.EntityPosition, record any) []Change {
	if e, ok := r.byID[id]; ok {
		if e.Type == ty {
			if e.Pos != pos {
				r.unindex(e)
				e.Pos = pos
				r.index(e)
				changes = append(changes, Change{Kind: Moved, ID: id, Type: ty, Pos: pos})
			}
			e.Time = time
			e.Record = record
			return changes
		}
		// The server recycled the id for a different kind of entity.
		changes = append(changes, r.remove(e))
	}

	e := &Entity{ID: id, Type: ty, Pos: pos, Time: time, Record: record}
	r.byID[id] = e
	r.index(e)
	return append(changes,
		Change{Kind: Spawned, ID: id, Type: ty, Pos: pos},
		Change{Kind: Moved, ID: id, Type: ty, Pos: pos},
	)
}

// Collect despawns every entity whose last report lags the latest snapshot
// by StaleAfter ticks or more. Despawns come out in id order.
func (r *Registry) Collect() []Change {
	var stale []*Entity
	for _, e := range r.byID {
		if r.latest-e.Time >= StaleAfter {
			stale = append(stale, e)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })

	changes := make([]Change, 0, len(stale))
	for _, e := range stale {
		changes = append(changes, r.remove(e))
	}
	return changes
}

// Reset forgets every entity, e.g. after a reconnect.
func (r *Registry) Reset() {
	clear(r.byID)
	clear(r.positions)
	r.latest = -1
}

func (r *Registry) remove(e *Entity) Change {
	r.unindex(e)
	delete(r.byID, e.ID)
	return Change{Kind: Despawned, ID: e.ID, Type: e.Type, Pos: e.Pos}
}

func (r *Registry) index(e *Entity) {
	abs := e.Pos.AbsoluteAxial()
	r.positions[abs] = append(r.positions[abs], e.ID)
}

func (r *Registry) unindex(e *Entity) {
	abs := e.Pos.AbsoluteAxial()
	ids := r.positions[abs]
	for i, id := range ids {
		if id == e.ID {
			ids[i] = ids[len(ids)-1]
			ids = ids[:len(ids)-1]
			break
		}
	}
	if len(ids) == 0 {
		delete(r.positions, abs)
		return
	}
	r.positions[abs] = ids
}
