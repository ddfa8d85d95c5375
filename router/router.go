package router

import (
	"database/sql"
	"net/http"

	vaultHandler "writervault/internal/vault"
	"writervault/internal/vault/repository"
	"writervault/internal/vault/service"
	"writervault/middleware"
	"writervault/socket"
)

func Setup(db *sql.DB, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	vaultRepo := repository.NewVaultRepository(db)
	vaultService := service.NewVaultService(vaultRepo, hub)
	hub.Session = vaultService
	h := vaultHandler.NewVaultHandler(vaultService)
	auth := middleware.AuthMiddleware

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(hub, w, r, userID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	mux.Handle("/api/stories/create", auth(http.HandlerFunc(h.CreateStory)))
	mux.Handle("/api/stories/update", auth(http.HandlerFunc(h.UpdateStory)))
	mux.Handle("/api/stories/delete", auth(http.HandlerFunc(h.DeleteStory)))
	mux.Handle("/api/stories/select", auth(http.HandlerFunc(h.SelectStory)))
	mux.Handle("/api/stories", auth(http.HandlerFunc(h.GetStories)))

	mux.Handle("/api/chapters/create", auth(http.HandlerFunc(h.CreateChapter)))
	mux.Handle("/api/chapters/update", auth(http.HandlerFunc(h.UpdateChapter)))
	mux.Handle("/api/chapters/delete", auth(http.HandlerFunc(h.DeleteChapter)))
	mux.Handle("/api/chapters/select", auth(http.HandlerFunc(h.SelectChapter)))
	mux.Handle("/api/chapters/edit", auth(http.HandlerFunc(h.EditChapter)))

	mux.Handle("/api/characters/add", auth(http.HandlerFunc(h.AddCharacter)))
	mux.Handle("/api/characters/update", auth(http.HandlerFunc(h.UpdateCharacter)))
	mux.Handle("/api/characters/delete", auth(http.HandlerFunc(h.DeleteCharacter)))

	mux.Handle("/api/timeline/add", auth(http.HandlerFunc(h.AddTimelineEvent)))
	mux.Handle("/api/timeline/update", auth(http.HandlerFunc(h.UpdateTimelineEvent)))
	mux.Handle("/api/timeline/delete", auth(http.HandlerFunc(h.DeleteTimelineEvent)))

	mux.Handle("/api/goal", auth(http.HandlerFunc(h.SetGoal)))
	mux.Handle("/api/reminder", auth(http.HandlerFunc(h.SetReminder)))
	mux.Handle("/api/stats", auth(http.HandlerFunc(h.GetStats)))
	mux.Handle("/api/export", auth(http.HandlerFunc(h.Export)))
	mux.Handle("/api/import", auth(http.HandlerFunc(h.Import)))

	return middleware.CORSMiddleware(mux)
}
