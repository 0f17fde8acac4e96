package stream

import (
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// client is one connected diagnostics subscriber. Writes go through a
// buffered send channel so a slow consumer never blocks the broadcaster;
// closing the channel ends the connection.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	logger *logrus.Entry
}

// writePump drains the send channel onto the connection. It exits when the
// channel is closed or a write fails.
func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.WithError(err).Debug("Write to subscriber failed")
			return
		}
	}

	c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}

// readPump discards inbound messages; the stream is one-way. It exists to
// surface the close handshake and connection errors.
func (c *client) readPump(onClose func()) {
	defer onClose()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
