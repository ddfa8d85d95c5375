package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"writervault/internal/vault/model"
	"writervault/internal/vault/service"
	"writervault/middleware"
	"writervault/pkg/logger"
)

type VaultHandler struct {
	Service *service.VaultService
}

func NewVaultHandler(svc *service.VaultService) *VaultHandler {
	return &VaultHandler{Service: svc}
}

func userID(r *http.Request) string {
	return r.Context().Value(middleware.UserIDKey).(string)
}

// statusFor maps service errors onto HTTP codes: unresolvable ids are 404,
// refused operations are 409, bad input is 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrStoryNotFound),
		errors.Is(err, service.ErrChapterNotFound),
		errors.Is(err, service.ErrInvalidIndex):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLastChapter):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidImport),
		errors.Is(err, service.ErrInvalidClock):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *VaultHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateStoryRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	resp := h.Service.CreateStory(userID(r), req.Title)
	writeJSON(w, resp)
}

func (h *VaultHandler) GetStories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.Service.Stories(userID(r)))
}

func (h *VaultHandler) UpdateStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := r.URL.Query().Get("storyId")
	if storyID == "" {
		http.Error(w, "Missing storyId parameter", http.StatusBadRequest)
		return
	}

	var req model.UpdateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.RenameStory(userID(r), storyID, req.Title); err != nil {
		logger.Sugar.Errorf("Handler: Failed to rename story %s: %v", storyID, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Story updated successfully"))
}

func (h *VaultHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := r.URL.Query().Get("storyId")
	if storyID == "" {
		http.Error(w, "Missing storyId parameter", http.StatusBadRequest)
		return
	}

	if err := h.Service.DeleteStory(userID(r), storyID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete story %s: %v", storyID, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Story deleted successfully"))
}

func (h *VaultHandler) SelectStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.SelectStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StoryID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.SelectStory(userID(r), req.StoryID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Story selected"))
}

func (h *VaultHandler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StoryID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.CreateChapter(userID(r), req.StoryID, req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create chapter in story %s: %v", req.StoryID, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, resp)
}

func (h *VaultHandler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.RenameChapter(userID(r), req.StoryID, req.ChapterID, req.Title); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Chapter updated successfully"))
}

func (h *VaultHandler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID := r.URL.Query().Get("storyId")
	chapterID := r.URL.Query().Get("chapterId")
	if storyID == "" || chapterID == "" {
		http.Error(w, "Missing storyId or chapterId parameter", http.StatusBadRequest)
		return
	}

	if err := h.Service.DeleteChapter(userID(r), storyID, chapterID); err != nil {
		if !errors.Is(err, service.ErrLastChapter) {
			logger.Sugar.Errorf("Handler: Failed to delete chapter %s: %v", chapterID, err)
		}
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Chapter deleted successfully"))
}

func (h *VaultHandler) SelectChapter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChapterID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.Focus(userID(r), req.StoryID, req.ChapterID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Chapter selected"))
}

func (h *VaultHandler) EditChapter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChapterID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.Service.RecordEdit(userID(r), req)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, result)
}

func (h *VaultHandler) AddCharacter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.AddCharacter(userID(r), req); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *VaultHandler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateCharacter(userID(r), req); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Character updated"))
}

func (h *VaultHandler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID, index, ok := indexedTarget(w, r)
	if !ok {
		return
	}

	if err := h.Service.RemoveCharacter(userID(r), storyID, index); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Character removed"))
}

func (h *VaultHandler) AddTimelineEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.TimelineEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.AddTimelineEvent(userID(r), req); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *VaultHandler) UpdateTimelineEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.TimelineEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateTimelineEvent(userID(r), req); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Event updated"))
}

func (h *VaultHandler) DeleteTimelineEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	storyID, index, ok := indexedTarget(w, r)
	if !ok {
		return
	}

	if err := h.Service.RemoveTimelineEvent(userID(r), storyID, index); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Event removed"))
}

func (h *VaultHandler) SetGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.Service.SetGoal(userID(r), req.Goal)
	writeJSON(w, h.Service.Stats(userID(r)))
}

func (h *VaultHandler) SetReminder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.SetReminderTime(userID(r), req.Time); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Reminder time saved"))
}

func (h *VaultHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.Service.Stats(userID(r)))
}

// Export streams the full vault snapshot as a downloadable JSON artifact
// named with today's date key.
func (h *VaultHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, err := h.Service.Export(userID(r))
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to export vault: %v", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

func (h *VaultHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Could not read request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.ImportReplace(userID(r), raw); err != nil {
		logger.Sugar.Infof("Handler: Import rejected for user %s: %v", userID(r), err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Vault imported successfully"))
}

func indexedTarget(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	storyID := r.URL.Query().Get("storyId")
	if storyID == "" {
		http.Error(w, "Missing storyId parameter", http.StatusBadRequest)
		return "", 0, false
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "Missing or invalid index parameter", http.StatusBadRequest)
		return "", 0, false
	}
	return storyID, index, true
}
