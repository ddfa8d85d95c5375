package socket

import (
	"encoding/json"
	"sync"
	"time"

	"writervault/internal/vault/model"
	"writervault/pkg/logger"
)

const (
	FocusType       = "FOCUS"        // Editor surface switched to a chapter
	EditType        = "EDIT"         // Chapter text changed
	ProgressType    = "PROGRESS"     // Daily word progress snapshot
	GoalReachedType = "GOAL_REACHED" // Today's total landed exactly on the goal
	ReminderType    = "REMINDER"     // Scheduled writing reminder
	ErrorType       = "ERROR"        // A client message was rejected
)

type WSMessage struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// Session is the slice of the vault service the socket layer needs. The hub
// never touches the vault directly; every mutation goes through here so the
// word accounting and persistence rules hold no matter the transport.
type Session interface {
	Focus(userID, storyID, chapterID string) error
	RecordEdit(userID string, req model.EditRequest) (*model.EditResult, error)
	Snapshot(userID string) model.Stats
	CheckReminder(userID string, now time.Time) bool
}

// Hub fans messages out to every open connection of a user. A room holds
// one writer's tabs and devices, not multiple collaborators: the vault has
// a single owner.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	Session    Session
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.UserID] == nil {
				h.Rooms[client.UserID] = make(map[*Client]bool)
			}
			h.Rooms[client.UserID][client] = true
			h.mu.Unlock()

			// Send the current progress snapshot so a fresh tab starts
			// with today's numbers instead of zeros.
			stats := h.Session.Snapshot(client.UserID)
			payload, _ := json.Marshal(stats)
			msg, _ := json.Marshal(WSMessage{Type: ProgressType, UserID: client.UserID, Payload: payload})
			client.Send <- msg

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Rooms[client.UserID][client]; ok {
				delete(h.Rooms[client.UserID], client)
				close(client.Send)
				if len(h.Rooms[client.UserID]) == 0 {
					delete(h.Rooms, client.UserID)
					logger.Sugar.Infof("Closed writing session for user %s", client.UserID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.UserID]))
			for client := range h.Rooms[msg.UserID] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			// Send outside the lock; a lagging client gets dropped rather
			// than blocking the hub.
			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					logger.Sugar.Warnf("Client send buffer full for user %s. Unregistering.", client.UserID)
					go func(c *Client) { h.Unregister <- c }(client)
				}
			}
		}
	}
}

// ReminderWorker polls connected users' reminder schedules. The check is
// minute-grained, so a coarse poll is enough; the interval matches the
// original client's 20-second timer.
func (h *Hub) ReminderWorker() {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		users := make([]string, 0, len(h.Rooms))
		for userID := range h.Rooms {
			users = append(users, userID)
		}
		h.mu.Unlock()

		now := time.Now()
		for _, userID := range users {
			if !h.Session.CheckReminder(userID, now) {
				continue
			}
			payload, _ := json.Marshal(map[string]string{"message": "Time to write: five minutes still counts."})
			h.Broadcast <- WSMessage{Type: ReminderType, UserID: userID, Payload: payload}
			logger.Sugar.Infof("Reminder fired for user %s", userID)
		}
	}
}
