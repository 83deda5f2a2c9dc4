package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/game"
	"github.com/irishsmurf/caolo-client/protocol"
)

type clientCommand struct {
	client *Client
	cmd    protocol.Command
}

// Hub owns the world and every client's room subscriptions. All state
// changes happen on the Run goroutine.
type Hub struct {
	world *game.World

	// Registered clients.
	clients    map[*Client]bool
	clientsMux sync.RWMutex

	// Subscribers per room.
	rooms map[protocol.AxialPos]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand

	tick   time.Duration
	logger *zap.SugaredLogger
	done   chan struct{}
}

// NewHub creates a hub that steps world every tick.
func NewHub(world *game.World, tick time.Duration, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		world:      world,
		clients:    make(map[*Client]bool),
		rooms:      make(map[protocol.AxialPos]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
		tick:       tick,
		logger:     logger.With("component", "hub"),
		done:       make(chan struct{}),
	}
}

// Run processes registrations, commands and ticks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.tick)
	h.logger.Infow("Hub started", "tick", h.tick)
	defer func() {
		ticker.Stop()
		close(h.done)
		h.clientsMux.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.clientsMux.Unlock()
		connectedClientsGauge.Set(0)
		h.logger.Infow("Hub stopped")
	}()
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case cc := <-h.commands:
			h.handleCommand(cc)

		case <-ticker.C:
			h.runGameTick()

		case <-ctx.Done():
			return
		}
	}
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(cc clientCommand) bool {
	select {
	case h.commands <- cc:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clientsMux.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.clientsMux.Unlock()
	connectedClientsGauge.Set(float64(n))

	client.logger.Infow("Client registered", "clients", n)
}

func (h *Hub) handleUnregister(client *Client) {
	h.clientsMux.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send) // Stops writePump
	}
	n := len(h.clients)
	h.clientsMux.Unlock()
	if !ok {
		return
	}
	connectedClientsGauge.Set(float64(n))

	for room := range client.rooms {
		h.removeSubscriber(room, client)
	}
	client.logger.Infow("Client unregistered", "clients", n)
}

func (h *Hub) handleCommand(cc clientCommand) {
	c := cc.client
	h.clientsMux.RLock()
	registered := h.clients[c]
	h.clientsMux.RUnlock()
	if !registered {
		return
	}

	switch cc.cmd.Ty {
	case protocol.CommandSubscribe:
		h.subscribe(c, *cc.cmd.RoomID)
	case protocol.CommandSubscribeMany:
		for _, room := range cc.cmd.RoomIDs {
			h.subscribe(c, room)
		}
	case protocol.CommandUnsubscribe:
		room := *cc.cmd.RoomID
		if c.rooms[room] {
			h.removeSubscriber(room, c)
			delete(c.rooms, room)
		}
		c.logger.Debugw("Unsubscribed", "room", room)
	case protocol.CommandUnsubscribeAll:
		for room := range c.rooms {
			h.removeSubscriber(room, c)
		}
		clear(c.rooms)
		c.logger.Debugw("Cleared subscriptions")
	}
}

// subscribe answers every subscribe with the room's terrain, null when the
// room is not part of the world, and starts streaming its entities.
func (h *Hub) subscribe(c *Client, room protocol.AxialPos) {
	terrain, ok := h.world.Terrain(room)
	c.sendMessage(protocol.Message{Type: protocol.MessageTerrain, Terrain: terrain})
	if !ok {
		c.logger.Infow("Subscribe to room outside the world", "room", room)
		return
	}

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
	c.logger.Debugw("Subscribed", "room", room)

	if snapshot, ok := h.world.Entities(room); ok {
		c.sendMessage(protocol.Message{Type: protocol.MessageEntities, Entities: snapshot})
	}
}

func (h *Hub) removeSubscriber(room protocol.AxialPos, c *Client) {
	if subs, ok := h.rooms[room]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, room) // Clean up empty room entry
		}
	}
}

// runGameTick steps the world and sends each watched room's snapshot to its
// subscribers. Each snapshot is encoded once.
func (h *Hub) runGameTick() {
	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	now := h.world.Step()

	watched := make([]protocol.AxialPos, 0, len(h.rooms))
	for room := range h.rooms {
		watched = append(watched, room)
	}
	sort.Slice(watched, func(i, j int) bool {
		if watched[i].Q != watched[j].Q {
			return watched[i].Q < watched[j].Q
		}
		return watched[i].R < watched[j].R
	})

	for _, room := range watched {
		snapshot, ok := h.world.Entities(room)
		if !ok {
			continue
		}
		data, err := protocol.Encode(protocol.Message{Type: protocol.MessageEntities, Entities: snapshot})
		if err != nil {
			h.logger.Errorw("Failed to encode snapshot", "room", room, "error", err)
			continue
		}
		for c := range h.rooms[room] {
			c.sendEncoded(string(protocol.MessageEntities), data)
		}
	}
	if len(watched) > 0 {
		h.logger.Debugw("Tick", "time", now, "rooms", len(watched))
	}
}
