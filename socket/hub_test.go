package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"writervault/internal/vault/model"
	"writervault/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init()
}

// fakeSession mimics the vault service: RecordEdit broadcasts the resulting
// progress to the user's room, like the real one does.
type fakeSession struct {
	hub *Hub

	mu      sync.Mutex
	focused []string
}

func (f *fakeSession) Focus(userID, storyID, chapterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, chapterID)
	return nil
}

func (f *fakeSession) focusedChapters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.focused...)
}

func (f *fakeSession) RecordEdit(userID string, req model.EditRequest) (*model.EditResult, error) {
	result := &model.EditResult{Words: 3, Today: 3, Streak: 1, Remaining: 247}
	payload, _ := json.Marshal(result)
	f.hub.Broadcast <- WSMessage{Type: ProgressType, UserID: userID, Payload: payload}
	return result, nil
}

func (f *fakeSession) Snapshot(userID string) model.Stats {
	return model.Stats{Goal: 250, Remaining: 250, ShowHint: true}
}

func (f *fakeSession) CheckReminder(userID string, now time.Time) bool { return false }

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func TestHubIntegration(t *testing.T) {
	hub := NewHub()
	session := &fakeSession{hub: hub}
	hub.Session = session
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// For simplicity, we'll hardcode the user ID for tests.
		userID := r.URL.Query().Get("user_id")
		ServeWs(hub, w, r, userID)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// Tab 1 connects and receives the progress snapshot.
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=user1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	snapshot := readMessage(t, conn1)
	assert.Equal(t, ProgressType, snapshot.Type)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(snapshot.Payload, &stats))
	assert.Equal(t, 250, stats.Goal)

	// Tab 2 of the same user connects.
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=user1", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()
	_ = readMessage(t, conn2) // its own snapshot

	// Tab 2 edits; both tabs receive the progress broadcast.
	editPayload, _ := json.Marshal(model.EditRequest{StoryID: "s1", ChapterID: "c1", Text: "a b c"})
	msgBytes, _ := json.Marshal(WSMessage{Type: EditType, Payload: editPayload})
	require.NoError(t, conn2.WriteMessage(websocket.TextMessage, msgBytes))

	progress1 := readMessage(t, conn1)
	assert.Equal(t, ProgressType, progress1.Type)
	assert.Equal(t, "user1", progress1.UserID)
	var result model.EditResult
	require.NoError(t, json.Unmarshal(progress1.Payload, &result))
	assert.Equal(t, 3, result.Today)

	progress2 := readMessage(t, conn2)
	assert.Equal(t, ProgressType, progress2.Type)

	// Focus messages reach the session.
	focusPayload, _ := json.Marshal(model.EditRequest{StoryID: "s1", ChapterID: "c2"})
	msgBytes, _ = json.Marshal(WSMessage{Type: FocusType, Payload: focusPayload})
	require.NoError(t, conn1.WriteMessage(websocket.TextMessage, msgBytes))

	assert.Eventually(t, func() bool {
		focused := session.focusedChapters()
		return len(focused) == 1 && focused[0] == "c2"
	}, time.Second, 10*time.Millisecond)
}

func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub()
	session := &fakeSession{hub: hub}
	hub.Session = session
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, r.URL.Query().Get("user_id"))
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	connA, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=alice", nil)
	require.NoError(t, err)
	defer connA.Close()
	_ = readMessage(t, connA)

	connB, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=bob", nil)
	require.NoError(t, err)
	defer connB.Close()
	_ = readMessage(t, connB)

	// Bob edits; Alice must hear nothing.
	editPayload, _ := json.Marshal(model.EditRequest{StoryID: "s1", ChapterID: "c1", Text: "x"})
	msgBytes, _ := json.Marshal(WSMessage{Type: EditType, Payload: editPayload})
	require.NoError(t, connB.WriteMessage(websocket.TextMessage, msgBytes))

	_ = readMessage(t, connB) // bob's own progress broadcast

	connA.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = connA.ReadMessage()
	assert.Error(t, err, "alice should not receive bob's progress")
}
