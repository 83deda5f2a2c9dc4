package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/config"
	"github.com/irishsmurf/caolo-client/entities"
	"github.com/irishsmurf/caolo-client/logging"
	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/simclient"
)

const (
	screenWidth  = 1024
	screenHeight = 768
	hexSize      = 6.0 // Pixels per hex at zoom 1
	panSpeed     = 8.0
)

var configPath = flag.String("config", "", "path to a YAML config file")

var terrainColors = map[protocol.TerrainTy]color.RGBA{
	protocol.TerrainEmpty:  {R: 20, G: 20, B: 20, A: 255},
	protocol.TerrainPlain:  {R: 42, G: 157, B: 143, A: 255},
	protocol.TerrainWall:   {R: 90, G: 90, B: 90, A: 255},
	protocol.TerrainBridge: {R: 233, G: 196, B: 106, A: 255},
}

var entityColors = map[entities.EntityType]color.RGBA{
	entities.Bot:       {R: 231, G: 111, B: 81, A: 255},
	entities.Structure: {R: 255, G: 255, B: 255, A: 255},
	entities.Resource:  {R: 255, G: 214, B: 10, A: 255},
}

type roomTerrain struct {
	offset protocol.AxialPos
	tiles  []protocol.Tile
}

// Game draws a top down debug view of the subscribed rooms. All fields are
// touched only from Update and Draw, which ebiten runs on one goroutine.
type Game struct {
	client   *simclient.Client
	rooms    []protocol.AxialPos
	logger   *zap.SugaredLogger
	registry *entities.Registry
	terrain  map[protocol.AxialPos]roomTerrain

	// Camera state, in pixel space at zoom 1.
	cameraX float64
	cameraY float64
	zoom    float64
	focus   int

	tileImage *ebiten.Image // Reusable hex dot, tinted per tile
}

func NewGame(client *simclient.Client, rooms []protocol.AxialPos, logger *zap.SugaredLogger) *Game {
	g := &Game{
		client:   client,
		rooms:    rooms,
		logger:   logger,
		registry: entities.NewRegistry(),
		terrain:  make(map[protocol.AxialPos]roomTerrain),
		zoom:     1.0,
	}
	g.tileImage = ebiten.NewImage(int(hexSize), int(hexSize))
	r := float32(hexSize / 2)
	vector.DrawFilledCircle(g.tileImage, r, r, r, color.White, true)
	return g
}

// Update drains the simulation client once per frame and handles input.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	events := g.client.Drain()
	if len(events.Connected) > 0 {
		g.registry.Reset()
		if err := g.client.SubscribeRooms(context.Background(), g.rooms); err != nil {
			g.logger.Warnw("Failed to resubscribe", "error", err)
		}
	}
	for _, t := range events.Terrain {
		g.terrain[t.RoomID] = roomTerrain{offset: t.Offset, tiles: t.Terrain}
		if len(g.terrain) == 1 {
			g.centerOn(t.Offset, t.Terrain)
		}
	}
	for _, e := range events.Entities {
		g.registry.Apply(e.Payload)
	}
	g.registry.Collect()

	// Camera
	if ebiten.IsKeyPressed(ebiten.KeyLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		g.cameraX -= panSpeed / g.zoom
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		g.cameraX += panSpeed / g.zoom
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		g.cameraY -= panSpeed / g.zoom
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		g.cameraY += panSpeed / g.zoom
	}
	_, wheelY := ebiten.Wheel()
	if wheelY > 0 {
		g.zoom *= 1.1
	} else if wheelY < 0 {
		g.zoom /= 1.1
	}
	g.zoom = math.Max(0.1, math.Min(g.zoom, 5.0))

	if inpututil.IsKeyJustPressed(ebiten.KeyTab) && len(g.rooms) > 0 {
		g.focus = (g.focus + 1) % len(g.rooms)
		if rt, ok := g.terrain[g.rooms[g.focus]]; ok {
			g.centerOn(rt.offset, rt.tiles)
		}
	}
	return nil
}

func (g *Game) centerOn(offset protocol.AxialPos, tiles []protocol.Tile) {
	if len(tiles) == 0 {
		return
	}
	var sx, sy float64
	for _, t := range tiles {
		x, y := axialToPixel(t.Pos.Add(offset))
		sx += x
		sy += y
	}
	g.cameraX, g.cameraY = sx/float64(len(tiles)), sy/float64(len(tiles))
}

func axialToPixel(p protocol.AxialPos) (float64, float64) {
	x, y := protocol.HexAxialToPixel(float64(p.Q), float64(p.R))
	return x * hexSize, y * hexSize
}

// worldToScreen converts pixel space coordinates to screen coordinates
// based on the current camera.
func (g *Game) worldToScreen(worldX, worldY float64) (float64, float64) {
	x := (worldX-g.cameraX)*g.zoom + screenWidth/2
	y := (worldY-g.cameraY)*g.zoom + screenHeight/2
	return x, y
}

func (g *Game) Draw(screen *ebiten.Image) {
	state := g.client.State()

	for _, rt := range g.terrain {
		for _, t := range rt.tiles {
			x, y := g.worldToScreen(axialToPixel(t.Pos.Add(rt.offset)))
			if x < -hexSize || y < -hexSize || x > screenWidth+hexSize || y > screenHeight+hexSize {
				continue
			}
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Translate(-hexSize/2, -hexSize/2)
			op.GeoM.Scale(g.zoom, g.zoom)
			op.GeoM.Translate(x, y)
			op.ColorScale.ScaleWithColor(terrainColors[t.Ty])
			screen.DrawImage(g.tileImage, op)
		}
	}

	for _, e := range g.registry.Entities() {
		x, y := g.worldToScreen(axialToPixel(e.Pos.AbsoluteAxial()))
		radius := float32(hexSize * 0.4 * g.zoom)
		if e.Type == entities.Structure {
			radius *= 1.6
		}
		vector.DrawFilledCircle(screen, float32(x), float32(y), radius, entityColors[e.Type], true)
	}

	var focus string
	if len(g.rooms) > 0 {
		focus = fmt.Sprintf("%d,%d", g.rooms[g.focus].Q, g.rooms[g.focus].R)
	}
	debugText := fmt.Sprintf("State: %s\nTick: %d\nRooms: %d (focus %s, Tab to cycle)\nEntities: %d\nZoom: %.2f\nFPS: %.1f",
		state, g.registry.LatestTime(), len(g.terrain), focus, g.registry.Len(), g.zoom, ebiten.ActualFPS())
	ebitenutil.DebugPrint(screen, debugText)
}

// Layout defines logical screen size (usually same as window size)
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Errorw("Viewer exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := simclient.New(cfg.Sim, simclient.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	// Start blocks on the layout bootstrap, which retries until ctx is done.
	if err := client.Start(ctx); err != nil {
		return err
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("CaoLo simulation viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	game := NewGame(client, cfg.Rooms, logger.With("component", "viewer"))
	err = ebiten.RunGame(&stoppable{Game: game, ctx: ctx})
	if err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	logger.Infow("Viewer closed")
	return nil
}

// stoppable ends the ebiten loop once ctx is cancelled.
type stoppable struct {
	*Game
	ctx context.Context
}

func (s *stoppable) Update() error {
	if s.ctx.Err() != nil {
		return ebiten.Termination
	}
	return s.Game.Update()
}
