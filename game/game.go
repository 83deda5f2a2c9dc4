package game

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"sync"

	"github.com/irishsmurf/caolo-client/protocol"
)

// Terrain codes as sent on the wire.
const (
	CodeEmpty int64 = iota
	CodePlain
	CodeWall
	CodeBridge
)

const (
	botHp        = 100
	botCarryMax  = 50
	botLifetime  = 40
	spawnTime    = 3
	dropLifetime = 3
	energyMax    = 500
	spawnEnergy  = 2000
	wallPercent  = 12
	ownerDev     = "dev"
)

// Config sizes the synthetic world.
type Config struct {
	// WorldRadius is the hex distance from room 0,0 to the outermost room.
	WorldRadius int
	RoomRadius  int
	BotsPerRoom int
	Seed        int64
}

// World is a small deterministic simulation that mimics the shape of the
// real server's output. Rooms are generated on first use and only
// generated rooms are simulated.
type World struct {
	cfg    Config
	layout []protocol.AxialPos

	mu     sync.RWMutex
	rooms  map[protocol.AxialPos]*room
	time   int64
	nextID protocol.SimEntityID
	free   []protocol.SimEntityID
}

type bot struct {
	id    protocol.SimEntityID
	pos   protocol.AxialPos
	ttl   int64
	carry int64
	say   string
	mine  protocol.SimEntityID
}

type resource struct {
	id  protocol.SimEntityID
	pos protocol.AxialPos
	// ttl counts down for energy dropped by dead bots; zero means permanent.
	ttl    int64
	energy int64
}

type room struct {
	id       protocol.AxialPos
	offset   protocol.AxialPos
	rng      *rand.Rand
	tiles    []int64
	walkable map[protocol.AxialPos]bool

	spawnID    protocol.SimEntityID
	spawnPos   protocol.AxialPos
	spawnTimer int64
	queue      []protocol.SimEntityID

	bots      []*bot
	resources []*resource
}

func NewWorld(cfg Config) *World {
	return &World{
		cfg:    cfg,
		layout: RoomLayout(cfg.RoomRadius),
		rooms:  make(map[protocol.AxialPos]*room),
		nextID: 1,
	}
}

// RoomLayout lists the cells of a hex room with the given radius, centred
// on (radius, radius), ordered by q then r. A room of radius r has
// 3r(r+1)+1 cells.
func RoomLayout(radius int) []protocol.AxialPos {
	if radius < 0 {
		return nil
	}
	layout := make([]protocol.AxialPos, 0, 3*radius*(radius+1)+1)
	for dq := -radius; dq <= radius; dq++ {
		lo, hi := max(-radius, -dq-radius), min(radius, -dq+radius)
		for dr := lo; dr <= hi; dr++ {
			layout = append(layout, protocol.AxialPos{Q: int32(radius + dq), R: int32(radius + dr)})
		}
	}
	return layout
}

// Distance is the hex distance between two axial positions.
func Distance(a, b protocol.AxialPos) int {
	dq, dr := int(a.Q-b.Q), int(a.R-b.R)
	return (abs(dq) + abs(dr) + abs(dq+dr)) / 2
}

var neighbours = [6]protocol.AxialPos{
	{Q: 1, R: 0}, {Q: 1, R: -1}, {Q: 0, R: -1},
	{Q: -1, R: 0}, {Q: -1, R: 1}, {Q: 0, R: 1},
}

func (w *World) Layout() []protocol.AxialPos { return w.layout }

func (w *World) Time() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.time
}

// Contains reports whether room is part of the world.
func (w *World) Contains(room protocol.AxialPos) bool {
	return Distance(room, protocol.AxialPos{}) <= w.cfg.WorldRadius
}

// Rooms lists the generated rooms.
func (w *World) Rooms() []protocol.AxialPos {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]protocol.AxialPos, 0, len(w.rooms))
	for id := range w.rooms {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Q != out[j].Q {
			return out[i].Q < out[j].Q
		}
		return out[i].R < out[j].R
	})
	return out
}

// Terrain returns the tile codes of room, generating it if needed. ok is
// false for rooms outside the world.
func (w *World) Terrain(id protocol.AxialPos) (*protocol.TerrainPayload, bool) {
	r, ok := w.getOrGenerateRoom(id)
	if !ok {
		return nil, false
	}
	return &protocol.TerrainPayload{
		RoomID: r.id,
		Offset: r.offset,
		Tiles:  append([]int64(nil), r.tiles...),
	}, true
}

// Entities returns the current snapshot of room, generating it if needed.
func (w *World) Entities(id protocol.AxialPos) (*protocol.EntitiesPayload, bool) {
	r, ok := w.getOrGenerateRoom(id)
	if !ok {
		return nil, false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return r.snapshot(w.time), true
}

func (w *World) getOrGenerateRoom(id protocol.AxialPos) (*room, bool) {
	if !w.Contains(id) {
		return nil, false
	}

	w.mu.RLock()
	r, exists := w.rooms[id]
	w.mu.RUnlock()
	if exists {
		return r, true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// Double check
	if r, exists = w.rooms[id]; exists {
		return r, true
	}
	r = w.generateRoom(id)
	w.rooms[id] = r
	return r, true
}

// roomSeed derives a per room seed so generation does not depend on the
// order rooms are first requested in.
func roomSeed(seed int64, id protocol.AxialPos) int64 {
	h := fnv.New64a()
	var buf [16]byte
	for i, v := range []int64{int64(id.Q), int64(id.R)} {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(v >> (8 * b))
		}
	}
	h.Write(buf[:])
	return seed ^ int64(h.Sum64())
}

// generateRoom must be called with w.mu held.
func (w *World) generateRoom(id protocol.AxialPos) *room {
	radius := w.cfg.RoomRadius
	diameter := int32(2*radius + 1)
	center := protocol.AxialPos{Q: int32(radius), R: int32(radius)}
	r := &room{
		id:       id,
		offset:   protocol.AxialPos{Q: id.Q * diameter, R: id.R * diameter},
		rng:      rand.New(rand.NewSource(roomSeed(w.cfg.Seed, id))),
		tiles:    make([]int64, len(w.layout)),
		walkable: make(map[protocol.AxialPos]bool, len(w.layout)),
		spawnPos: center,
	}

	for i, pos := range w.layout {
		d := Distance(pos, center)
		code := CodePlain
		switch {
		case d == radius && isBridge(pos, center, radius):
			code = CodeBridge
		case d == radius:
			code = CodeWall
		case d > 1 && r.rng.Intn(100) < wallPercent:
			code = CodeWall
		}
		r.tiles[i] = code
		r.walkable[pos] = code == CodePlain || code == CodeBridge
	}

	r.spawnID = w.allocID()
	for i := 0; i < 3; i++ {
		if pos, ok := r.randomFreeCell(); ok {
			r.resources = append(r.resources, &resource{id: w.allocID(), pos: pos, energy: energyMax})
		}
	}
	for i := 0; i < w.cfg.BotsPerRoom; i++ {
		if pos, ok := r.randomFreeCell(); ok {
			r.bots = append(r.bots, &bot{id: w.allocID(), pos: pos, ttl: int64(r.rng.Intn(botLifetime) + 1)})
		}
	}
	return r
}

// The six edge midpoints of a room connect it to its neighbours.
func isBridge(pos, center protocol.AxialPos, radius int) bool {
	for _, n := range neighbours {
		mid := protocol.AxialPos{Q: center.Q + n.Q*int32(radius), R: center.R + n.R*int32(radius)}
		if pos == mid {
			return true
		}
	}
	return false
}

// allocID must be called with w.mu held. Freed ids are handed out again
// before new ones, the way the real server recycles them.
func (w *World) allocID() protocol.SimEntityID {
	if n := len(w.free); n > 0 {
		id := w.free[0]
		w.free = w.free[1:]
		return id
	}
	id := w.nextID
	w.nextID++
	return id
}

// Step advances every generated room by one tick and returns the new time.
func (w *World) Step() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.time++
	ids := make([]protocol.AxialPos, 0, len(w.rooms))
	for id := range w.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Q != ids[j].Q {
			return ids[i].Q < ids[j].Q
		}
		return ids[i].R < ids[j].R
	})
	for _, id := range ids {
		w.stepRoom(w.rooms[id])
	}
	return w.time
}

func (w *World) stepRoom(r *room) {
	// Dropped energy evaporates and releases its id.
	kept := r.resources[:0]
	for _, res := range r.resources {
		if res.ttl > 0 {
			res.ttl--
			if res.ttl == 0 {
				w.free = append(w.free, res.id)
				continue
			}
		}
		kept = append(kept, res)
	}
	r.resources = kept

	alive := r.bots[:0]
	for _, b := range r.bots {
		b.ttl--
		if b.ttl <= 0 {
			// The dead bot's id is reused right away for the energy it
			// leaves behind.
			r.resources = append(r.resources, &resource{id: b.id, pos: b.pos, ttl: dropLifetime, energy: b.carry})
			r.queue = append(r.queue, 0)
			continue
		}
		r.moveBot(b)
		alive = append(alive, b)
	}
	r.bots = alive

	if len(r.queue) > 0 {
		r.spawnTimer++
		if r.spawnTimer >= spawnTime {
			r.spawnTimer = 0
			r.queue = r.queue[1:]
			if pos, ok := r.freeNeighbour(r.spawnPos); ok {
				r.bots = append(r.bots, &bot{id: w.allocID(), pos: pos, ttl: botLifetime})
			}
		}
	}
}

func (r *room) moveBot(b *bot) {
	b.mine = 0
	b.say = ""
	for _, res := range r.resources {
		if Distance(res.pos, b.pos) <= 1 && res.energy > 0 && b.carry < botCarryMax {
			b.mine = res.id
			take := min(int64(10), res.energy, botCarryMax-b.carry)
			res.energy -= take
			b.carry += take
			return
		}
	}
	if pos, ok := r.freeNeighbour(b.pos); ok {
		b.pos = pos
	}
	if r.rng.Intn(10) == 0 {
		b.say = "beep"
	}
}

func (r *room) occupied(pos protocol.AxialPos) bool {
	if pos == r.spawnPos {
		return true
	}
	for _, b := range r.bots {
		if b.pos == pos {
			return true
		}
	}
	for _, res := range r.resources {
		if res.pos == pos {
			return true
		}
	}
	return false
}

func (r *room) freeNeighbour(pos protocol.AxialPos) (protocol.AxialPos, bool) {
	start := r.rng.Intn(len(neighbours))
	for i := range neighbours {
		n := neighbours[(start+i)%len(neighbours)]
		next := protocol.AxialPos{Q: pos.Q + n.Q, R: pos.R + n.R}
		if r.walkable[next] && !r.occupied(next) {
			return next, true
		}
	}
	return protocol.AxialPos{}, false
}

func (r *room) randomFreeCell() (protocol.AxialPos, bool) {
	cells := make([]protocol.AxialPos, 0, len(r.walkable))
	for pos, ok := range r.walkable {
		if ok && !r.occupied(pos) {
			cells = append(cells, pos)
		}
	}
	if len(cells) == 0 {
		return protocol.AxialPos{}, false
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Q != cells[j].Q {
			return cells[i].Q < cells[j].Q
		}
		return cells[i].R < cells[j].R
	})
	return cells[r.rng.Intn(len(cells))], true
}

func (r *room) position(pos protocol.AxialPos) protocol.EntityPosition {
	return protocol.EntityPosition{Room: r.id, Pos: pos, Offset: r.offset}
}

func (r *room) snapshot(time int64) *protocol.EntitiesPayload {
	p := &protocol.EntitiesPayload{
		Time:       time,
		RoomID:     r.id,
		Bots:       make([]protocol.Bot, 0, len(r.bots)),
		Structures: make([]protocol.Structure, 0, 1),
		Resources:  make([]protocol.Resource, 0, len(r.resources)),
	}

	queue := make([]int64, len(r.queue))
	p.Structures = append(p.Structures, protocol.Structure{
		ID:          r.spawnID,
		Pos:         r.position(r.spawnPos),
		Hp:          protocol.Hp{Value: 1000, ValueMax: 1000},
		Energy:      protocol.Energy{Value: spawnEnergy, ValueMax: spawnEnergy},
		EnergyRegen: 10,
		Owner:       protocol.Owner{Data: ownerDev},
		StructureType: protocol.StructureType{Spawn: protocol.Spawn{
			TimeToSpawn: spawnTime - r.spawnTimer,
			SpawnQueue:  queue,
		}},
	})

	for _, res := range r.resources {
		p.Resources = append(p.Resources, protocol.Resource{
			ID:           res.id,
			Pos:          r.position(res.pos),
			ResourceType: protocol.ResourceType{Energy: protocol.Energy{Value: res.energy, ValueMax: energyMax}},
		})
	}

	for _, b := range r.bots {
		bot := protocol.Bot{
			ID:     b.id,
			Pos:    r.position(b.pos),
			Hp:     &protocol.Hp{Value: botHp, ValueMax: botHp},
			Carry:  &protocol.Carry{Value: b.carry, ValueMax: botCarryMax},
			Owner:  &protocol.Owner{Data: ownerDev},
			Script: &protocol.Script{Data: "wander"},
			Decay:  &protocol.Decay{HpAmount: 1, Interval: 1, TimeRemaining: b.ttl},
		}
		if b.mine != 0 {
			bot.MineIntent = &protocol.MineIntent{TargetID: b.mine}
		}
		if b.say != "" {
			say := b.say
			bot.Say = &say
		}
		p.Bots = append(p.Bots, bot)
	}
	return p
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
