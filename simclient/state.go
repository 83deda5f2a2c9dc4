package simclient

import (
	"fmt"
	"sync/atomic"
)

// ConnectionState is the advisory state of the simulation connection.
type ConnectionState int32

const (
	Connecting ConnectionState = iota
	Online
	Closed
	Error
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Online:
		return "Online"
	case Closed:
		return "Closed"
	case Error:
		return "Error"
	}
	return fmt.Sprintf("ConnectionState(%d)", int32(s))
}

// StateCell is a shared, lock free holder of a ConnectionState. The
// connection manager is the only writer; anyone may read it.
type StateCell struct {
	v atomic.Int32
}

// NewStateCell returns a cell holding initial.
func NewStateCell(initial ConnectionState) *StateCell {
	c := &StateCell{}
	c.v.Store(int32(initial))
	return c
}

// Load returns the current state.
func (c *StateCell) Load() ConnectionState {
	return ConnectionState(c.v.Load())
}

func (c *StateCell) store(s ConnectionState) {
	c.v.Store(int32(s))
}
