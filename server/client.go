package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Largest command accepted from a peer.
	sendBuffer     = 256
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	logger *zap.SugaredLogger

	// rooms is owned by the hub goroutine.
	rooms map[protocol.AxialPos]bool
}

// readPump decodes commands from the websocket connection and hands them to
// the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
		c.logger.Infow("Client readPump finished")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnw("Unexpected close", "error", err)
			} else if errors.As(err, &closeErr) {
				c.logger.Infow("Client closed connection", "code", closeErr.Code)
			} else {
				c.logger.Infow("Read failed", "error", err)
			}
			break
		}

		receivedBytesCounter.Add(float64(len(message)))

		if messageType != websocket.BinaryMessage {
			rejectedClientMessagesCounter.Inc()
			c.logger.Warnw("Received non-binary message", "type", messageType)
			continue
		}
		cmd, err := protocol.DecodeCommand(message)
		if err != nil {
			rejectedClientMessagesCounter.Inc()
			c.logger.Errorw("Failed to decode client command", "error", err)
			continue
		}
		processedClientMessagesCounter.Inc()
		if !c.hub.submit(clientCommand{client: c, cmd: cmd}) {
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Infow("Client writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.logger.Infow("Send channel closed, sending close message")
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Errorw("WebSocket write error", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorw("WebSocket ping error", "error", err)
				return
			}
		}
	}
}

// sendMessage encodes msg and queues it without blocking the hub. Must be
// called from the hub goroutine.
func (c *Client) sendMessage(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Errorw("Failed to encode server message", "type", msg.Type, "error", err)
		return
	}
	c.sendEncoded(string(msg.Type), data)
}

func (c *Client) sendEncoded(label string, data []byte) {
	select {
	case c.send <- data:
		sentServerMessagesCounter.WithLabelValues(label).Inc()
		sentBytesCounter.Add(float64(len(data)))
	default:
		droppedServerMessagesCounter.WithLabelValues(label).Inc()
		c.logger.Warnw("Client send buffer full, dropping message", "type", label)
	}
}
