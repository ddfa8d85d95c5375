package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"writervault/internal/vault/model"
	"writervault/pkg/words"
	"writervault/socket"

	"github.com/google/uuid"
)

var (
	ErrStoryNotFound   = errors.New("story not found")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrLastChapter     = errors.New("a story must keep at least one chapter")
	ErrInvalidIndex    = errors.New("no entry at that position")
	ErrInvalidImport   = errors.New("import file must contain a story list")
	ErrInvalidClock    = errors.New("reminder time must be HH:MM")
)

// VaultStore is the persistence slice the service needs; implemented by
// repository.VaultRepository.
type VaultStore interface {
	Load(userID string) *model.Vault
	Save(userID string, v *model.Vault) error
}

// VaultService owns every vault mutation. One mutex serializes all of them:
// each operation finishes its read-modify-persist cycle before the next one
// starts, whichever transport it arrived on.
type VaultService struct {
	Store VaultStore
	Hub   *socket.Hub

	mu     sync.Mutex
	vaults map[string]*model.Vault
	// baselines holds the last observed word count per chapter for this
	// session, keyed by user then chapter id. Keeping it per chapter means
	// switching stories or chapters can never replay a stale count into
	// the wrong chapter's diff.
	baselines map[string]map[string]int
}

func NewVaultService(store VaultStore, hub *socket.Hub) *VaultService {
	return &VaultService{
		Store:     store,
		Hub:       hub,
		vaults:    make(map[string]*model.Vault),
		baselines: make(map[string]map[string]int),
	}
}

// vault returns the user's in-memory aggregate, loading and migrating it on
// first use. Callers must hold s.mu.
func (s *VaultService) vault(userID string) *model.Vault {
	if v, ok := s.vaults[userID]; ok {
		return v
	}
	v := s.Store.Load(userID)
	if model.Migrate(v) {
		s.Store.Save(userID, v)
	}
	s.vaults[userID] = v
	return v
}

// persist writes the whole aggregate after a mutation. A failed write is
// already logged by the store; the mutation's in-memory effect stands.
func (s *VaultService) persist(userID string, v *model.Vault) {
	s.Store.Save(userID, v)
}

func (s *VaultService) setBaseline(userID, chapterID string, count int) {
	if s.baselines[userID] == nil {
		s.baselines[userID] = make(map[string]int)
	}
	s.baselines[userID][chapterID] = count
}

func (s *VaultService) dropBaseline(userID, chapterID string) {
	delete(s.baselines[userID], chapterID)
}

func (s *VaultService) CreateStory(userID, title string) *model.CreateStoryResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(title) == "" {
		title = "New story"
	}
	v := s.vault(userID)
	chapter := model.Chapter{ID: uuid.NewString(), Title: "Chapter 1"}
	story := model.Story{
		ID:                uuid.NewString(),
		Title:             title,
		Chapters:          []model.Chapter{chapter},
		SelectedChapterID: chapter.ID,
		Characters:        []model.Character{},
		Timeline:          []model.TimelineEvent{},
		UpdatedAt:         time.Now(),
	}
	v.Stories = append(v.Stories, story)
	v.SelectedID = story.ID
	s.setBaseline(userID, chapter.ID, 0)
	s.persist(userID, v)

	return &model.CreateStoryResponse{StoryID: story.ID, ChapterID: chapter.ID}
}

// Stories lists story metadata, most recently edited first.
func (s *VaultService) Stories(userID string) []model.StoryMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	list := make([]model.StoryMetadata, 0, len(v.Stories))
	for i := range v.Stories {
		st := &v.Stories[i]
		list = append(list, model.StoryMetadata{
			ID:        st.ID,
			Title:     st.Title,
			Words:     st.WordCount(),
			UpdatedAt: st.UpdatedAt,
			Selected:  st.ID == v.SelectedID,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list
}

func (s *VaultService) RenameStory(userID, storyID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	story.Title = title
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

// DeleteStory removes a story and everything it owns. If it was selected,
// selection falls back to the most recently edited remaining story.
func (s *VaultService) DeleteStory(userID, storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	for i := range story.Chapters {
		s.dropBaseline(userID, story.Chapters[i].ID)
	}

	kept := v.Stories[:0]
	for i := range v.Stories {
		if v.Stories[i].ID != storyID {
			kept = append(kept, v.Stories[i])
		}
	}
	v.Stories = kept

	if v.SelectedID == storyID {
		v.SelectedID = ""
		var latest *model.Story
		for i := range v.Stories {
			if latest == nil || v.Stories[i].UpdatedAt.After(latest.UpdatedAt) {
				latest = &v.Stories[i]
			}
		}
		if latest != nil {
			v.SelectedID = latest.ID
		}
	}
	s.persist(userID, v)
	return nil
}

// SelectStory makes a story current. Its selected chapter becomes the edit
// surface, so that chapter's baseline is captured now.
func (s *VaultService) SelectStory(userID, storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	v.SelectedID = storyID
	if ch := story.Chapter(story.SelectedChapterID); ch != nil {
		s.setBaseline(userID, ch.ID, words.Count(ch.Text))
	}
	s.persist(userID, v)
	return nil
}

func (s *VaultService) CreateChapter(userID, storyID, title string) (*model.CreateChapterResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return nil, ErrStoryNotFound
	}
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Chapter %d", len(story.Chapters)+1)
	}
	chapter := model.Chapter{ID: uuid.NewString(), Title: title}
	story.Chapters = append(story.Chapters, chapter)
	story.SelectedChapterID = chapter.ID
	story.UpdatedAt = time.Now()
	s.setBaseline(userID, chapter.ID, 0)
	s.persist(userID, v)
	return &model.CreateChapterResponse{ChapterID: chapter.ID}, nil
}

func (s *VaultService) RenameChapter(userID, storyID, chapterID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	chapter := story.Chapter(chapterID)
	if chapter == nil {
		return ErrChapterNotFound
	}
	chapter.Title = title
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

// DeleteChapter refuses to remove a story's only chapter.
func (s *VaultService) DeleteChapter(userID, storyID, chapterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	if story.Chapter(chapterID) == nil {
		return ErrChapterNotFound
	}
	if len(story.Chapters) == 1 {
		return ErrLastChapter
	}

	kept := story.Chapters[:0]
	for i := range story.Chapters {
		if story.Chapters[i].ID != chapterID {
			kept = append(kept, story.Chapters[i])
		}
	}
	story.Chapters = kept
	s.dropBaseline(userID, chapterID)
	if story.SelectedChapterID == chapterID {
		story.SelectedChapterID = story.Chapters[0].ID
	}
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

// Focus marks a chapter as the active edit surface and captures its
// baseline word count, the reference point for the next contribution.
func (s *VaultService) Focus(userID, storyID, chapterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	chapter := story.Chapter(chapterID)
	if chapter == nil {
		return ErrChapterNotFound
	}
	story.SelectedChapterID = chapterID
	s.setBaseline(userID, chapterID, words.Count(chapter.Text))
	s.persist(userID, v)
	return nil
}

// RecordEdit attributes forward progress from one edit event to today's
// ledger entry. The contribution is the positive part of the word-count
// delta against the chapter's baseline; the baseline then advances to the
// new count, so a day's total is a running sum of positive deltas between
// consecutive edits. Deleting words never subtracts, and deleting then
// retyping counts again; that is the intended accounting.
func (s *VaultService) RecordEdit(userID string, req model.EditRequest) (*model.EditResult, error) {
	s.mu.Lock()

	v := s.vault(userID)
	story := v.Story(req.StoryID)
	if story == nil {
		s.mu.Unlock()
		return nil, ErrStoryNotFound
	}
	chapter := story.Chapter(req.ChapterID)
	if chapter == nil {
		s.mu.Unlock()
		return nil, ErrChapterNotFound
	}

	baseline, ok := s.baselines[userID][req.ChapterID]
	if !ok {
		// No focus event seen for this chapter yet; measure against the
		// stored text so the whole document isn't credited as new words.
		baseline = words.Count(chapter.Text)
	}

	now := time.Now()
	key := model.DateKey(now)
	after := words.Count(req.Text)
	contribution := after - baseline
	if contribution < 0 {
		contribution = 0
	}

	before := v.DailyWords.Get(key)
	v.DailyWords.Add(key, contribution)
	today := v.DailyWords.Get(key)

	chapter.Text = req.Text
	story.UpdatedAt = now
	s.setBaseline(userID, req.ChapterID, after)
	s.persist(userID, v)

	result := &model.EditResult{
		Words:       after,
		Today:       today,
		Streak:      v.DailyWords.Streak(now),
		Remaining:   v.Remaining(now),
		GoalReached: v.Goal > 0 && contribution > 0 && before < v.Goal && today == v.Goal,
	}
	s.mu.Unlock()

	s.broadcastProgress(userID, result)
	return result, nil
}

func (s *VaultService) broadcastProgress(userID string, result *model.EditResult) {
	if s.Hub == nil {
		return
	}
	payload, _ := json.Marshal(result)
	s.Hub.Broadcast <- socket.WSMessage{Type: socket.ProgressType, UserID: userID, Payload: payload}
	if result.GoalReached {
		msg, _ := json.Marshal(map[string]string{"message": "Daily goal reached."})
		s.Hub.Broadcast <- socket.WSMessage{Type: socket.GoalReachedType, UserID: userID, Payload: msg}
	}
}

// AddCharacter is a silent no-op when the name is blank.
func (s *VaultService) AddCharacter(userID string, req model.CharacterRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(req.StoryID)
	if story == nil {
		return ErrStoryNotFound
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil
	}
	story.Characters = append(story.Characters, model.Character{Name: name})
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

func (s *VaultService) UpdateCharacter(userID string, req model.CharacterRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(req.StoryID)
	if story == nil {
		return ErrStoryNotFound
	}
	if req.Index < 0 || req.Index >= len(story.Characters) {
		return ErrInvalidIndex
	}
	story.Characters[req.Index].Notes = req.Notes
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

func (s *VaultService) RemoveCharacter(userID, storyID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	if index < 0 || index >= len(story.Characters) {
		return ErrInvalidIndex
	}
	story.Characters = append(story.Characters[:index], story.Characters[index+1:]...)
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

// AddTimelineEvent is a silent no-op when the title is blank.
func (s *VaultService) AddTimelineEvent(userID string, req model.TimelineEventRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(req.StoryID)
	if story == nil {
		return ErrStoryNotFound
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil
	}
	story.Timeline = append(story.Timeline, model.TimelineEvent{
		Title: title,
		When:  strings.TrimSpace(req.When),
	})
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

func (s *VaultService) UpdateTimelineEvent(userID string, req model.TimelineEventRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(req.StoryID)
	if story == nil {
		return ErrStoryNotFound
	}
	if req.Index < 0 || req.Index >= len(story.Timeline) {
		return ErrInvalidIndex
	}
	story.Timeline[req.Index].Notes = req.Notes
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

func (s *VaultService) RemoveTimelineEvent(userID, storyID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	story := v.Story(storyID)
	if story == nil {
		return ErrStoryNotFound
	}
	if index < 0 || index >= len(story.Timeline) {
		return ErrInvalidIndex
	}
	story.Timeline = append(story.Timeline[:index], story.Timeline[index+1:]...)
	story.UpdatedAt = time.Now()
	s.persist(userID, v)
	return nil
}

// SetGoal clamps negative input to zero instead of rejecting it.
func (s *VaultService) SetGoal(userID string, goal int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	if goal < 0 {
		goal = 0
	}
	v.Goal = goal
	s.persist(userID, v)
}

// SetReminderTime accepts an HH:MM clock; blank resets to the default.
func (s *VaultService) SetReminderTime(userID, clock string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	if strings.TrimSpace(clock) == "" {
		clock = model.DefaultReminderTime
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		return ErrInvalidClock
	}
	v.ReminderTime = clock
	s.persist(userID, v)
	return nil
}

func (s *VaultService) Stats(userID string) model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	now := time.Now()
	key := model.DateKey(now)
	return model.Stats{
		TotalWords: v.TotalWords(),
		Today:      v.DailyWords.Get(key),
		Streak:     v.DailyWords.Streak(now),
		Goal:       v.Goal,
		Remaining:  v.Remaining(now),
		ShowHint:   v.Goal > 0,
		DateKey:    key,
	}
}

// Snapshot is the hub's name for the stats sent to a freshly connected tab.
func (s *VaultService) Snapshot(userID string) model.Stats {
	return s.Stats(userID)
}

// Export serializes the full aggregate and names the artifact with today's
// date key.
func (s *VaultService) Export(userID string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("writer-vault-backup-%s.json", model.DateKey(time.Now()))
	return data, filename, nil
}

// ImportReplace swaps the whole aggregate for an external snapshot. The
// snapshot must decode and must carry a story array at the top level
// (empty is fine); otherwise the current state is left exactly as it was.
func (s *VaultService) ImportReplace(userID string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var probe struct {
		Stories *json.RawMessage `json:"stories"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Stories == nil {
		return ErrInvalidImport
	}
	if trimmed := strings.TrimSpace(string(*probe.Stories)); !strings.HasPrefix(trimmed, "[") {
		return ErrInvalidImport
	}

	imported := &model.Vault{}
	if err := json.Unmarshal(raw, imported); err != nil {
		return ErrInvalidImport
	}

	model.Migrate(imported)
	s.vaults[userID] = imported
	// Baselines measured against the replaced state are meaningless now.
	delete(s.baselines, userID)
	s.persist(userID, imported)
	return nil
}

// CheckReminder commits today's reminder if it is due, guaranteeing at most
// one per calendar day. Callers poll this at a coarse interval.
func (s *VaultService) CheckReminder(userID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vault(userID)
	if !model.ShouldRemind(v, now) {
		return false
	}
	v.LastReminderDay = model.DateKey(now)
	s.persist(userID, v)
	return true
}
