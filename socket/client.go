package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"writervault/internal/vault/model"
	"writervault/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the local dev frontend
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID string
	Send   chan []byte
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
	}

	client.Hub.Register <- client

	// Start reading and writing in separate goroutines
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// The connection already knows who is writing; ignore whatever
		// user id the payload claims.
		msg.UserID = c.UserID

		switch msg.Type {
		case FocusType:
			var req model.EditRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				c.reject("invalid focus payload")
				continue
			}
			if err := c.Hub.Session.Focus(c.UserID, req.StoryID, req.ChapterID); err != nil {
				c.reject(err.Error())
			}

		case EditType:
			var req model.EditRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				c.reject("invalid edit payload")
				continue
			}
			// RecordEdit persists and broadcasts the resulting progress
			// to every connection in this user's room.
			if _, err := c.Hub.Session.RecordEdit(c.UserID, req); err != nil {
				c.reject(err.Error())
			}

		default:
			logger.Sugar.Warnf("Unknown message type %q from user %s", msg.Type, c.UserID)
		}
	}
}

func (c *Client) reject(reason string) {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	msg, _ := json.Marshal(WSMessage{Type: ErrorType, UserID: c.UserID, Payload: payload})
	select {
	case c.Send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Send ping every 30s
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
