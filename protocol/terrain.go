package protocol

import "fmt"

// TerrainTy is the kind of a single hex tile.
type TerrainTy uint8

const (
	TerrainEmpty TerrainTy = iota
	TerrainPlain
	TerrainWall
	TerrainBridge
)

func (t TerrainTy) String() string {
	switch t {
	case TerrainEmpty:
		return "Empty"
	case TerrainPlain:
		return "Plain"
	case TerrainWall:
		return "Wall"
	case TerrainBridge:
		return "Bridge"
	}
	return fmt.Sprintf("TerrainTy(%d)", uint8(t))
}

// TerrainFromCode maps a wire tile code to a TerrainTy.
func TerrainFromCode(code int64) (TerrainTy, error) {
	switch code {
	case 0:
		return TerrainEmpty, nil
	case 1:
		return TerrainPlain, nil
	case 2:
		return TerrainWall, nil
	case 3:
		return TerrainBridge, nil
	}
	return 0, &DecodeError{Kind: KindUnknownTerrainCode, Code: code}
}

// Tile is one reconstructed terrain cell.
type Tile struct {
	Pos AxialPos
	Ty  TerrainTy
}

// TerrainPayloadToTiles pairs tile codes with the room layout positionally.
// The two slices must have the same length; a mismatch or an unknown code
// fails the whole payload.
func TerrainPayloadToTiles(codes []int64, layout []AxialPos) ([]Tile, error) {
	if len(codes) != len(layout) {
		return nil, &DecodeError{
			Kind: KindLayoutMismatch,
			Err:  fmt.Errorf("%d tiles for a layout of %d", len(codes), len(layout)),
		}
	}
	tiles := make([]Tile, len(layout))
	for i, pos := range layout {
		ty, err := TerrainFromCode(codes[i])
		if err != nil {
			return nil, err
		}
		tiles[i] = Tile{Pos: pos, Ty: ty}
	}
	return tiles, nil
}
