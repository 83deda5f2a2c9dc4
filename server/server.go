package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/game"
	"github.com/irishsmurf/caolo-client/protocol"
)

// maxLayoutRadius bounds the layout endpoint's work per request.
const maxLayoutRadius = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Development server, any origin
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For can be a list, take the first one
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	return ip
}

// ServeWs upgrades an object stream request and attaches the peer to hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Errorw("WebSocket upgrade error", "remoteAddr", r.RemoteAddr, "error", err)
		return
	}

	id := "client_" + uuid.New().String()[:8]
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		id:     id,
		logger: hub.logger.With("clientId", id, "remoteAddr", ip),
		rooms:  make(map[protocol.AxialPos]bool),
	}

	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	client.logger.Infow("WebSocket connection established")
}

// LayoutHandler serves GET /world/room-terrain-layout?radius=N, the ordered
// cells terrain tile codes refer to.
func LayoutHandler(logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		radius, err := strconv.Atoi(r.URL.Query().Get("radius"))
		if err != nil || radius < 0 || radius > maxLayoutRadius {
			http.Error(w, "radius must be an integer in [0, 256]", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(game.RoomLayout(radius)); err != nil {
			logger.Warnw("Failed to write layout", "radius", radius, "error", err)
		}
	})
}

// NewMux wires the object stream and the layout endpoint.
func NewMux(hub *Hub, logger *zap.SugaredLogger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/object-stream", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	layout := LayoutHandler(logger)
	mux.Handle("/world/room-terrain-layout", layout)
	mux.Handle("/v1/world/room-terrain-layout", layout)
	return mux
}
