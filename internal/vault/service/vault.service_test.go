package service

import (
	"encoding/json"
	"testing"
	"time"

	"writervault/internal/vault/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps vaults in memory so service tests exercise the full
// load/migrate/save cycle without a database.
type memStore struct {
	vaults map[string][]byte
	saves  int
}

func newMemStore() *memStore {
	return &memStore{vaults: make(map[string][]byte)}
}

func (m *memStore) Load(userID string) *model.Vault {
	raw, ok := m.vaults[userID]
	if !ok {
		return model.Default()
	}
	v := model.Default()
	if err := json.Unmarshal(raw, v); err != nil {
		return model.Default()
	}
	return v
}

func (m *memStore) Save(userID string, v *model.Vault) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.vaults[userID] = data
	m.saves++
	return nil
}

func newTestService() (*VaultService, *memStore) {
	store := newMemStore()
	return NewVaultService(store, nil), store
}

func edit(t *testing.T, svc *VaultService, storyID, chapterID, text string) *model.EditResult {
	t.Helper()
	res, err := svc.RecordEdit("user1", model.EditRequest{StoryID: storyID, ChapterID: chapterID, Text: text})
	require.NoError(t, err)
	return res
}

func TestEditAccountingCountsForwardProgressOnly(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")

	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))

	res := edit(t, svc, created.StoryID, created.ChapterID, "a b c")
	assert.Equal(t, 3, res.Words)
	assert.Equal(t, 3, res.Today)

	// Deleting everything never subtracts from the day.
	res = edit(t, svc, created.StoryID, created.ChapterID, "")
	assert.Equal(t, 0, res.Words)
	assert.Equal(t, 3, res.Today)

	// Retyping the same words counts again: the ledger tracks edit-level
	// forward progress, not net document growth.
	res = edit(t, svc, created.StoryID, created.ChapterID, "a b c")
	assert.Equal(t, 6, res.Today)
	assert.Equal(t, 1, res.Streak)
}

func TestEditBaselineIsPerChapter(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")
	second, err := svc.CreateChapter("user1", created.StoryID, "Chapter 2")
	require.NoError(t, err)

	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))
	edit(t, svc, created.StoryID, created.ChapterID, "one two three four five")

	// Chapter 2 starts empty; its baseline must not be chapter 1's five.
	res := edit(t, svc, created.StoryID, second.ChapterID, "uno dos")
	assert.Equal(t, 2, res.Words)
	assert.Equal(t, 7, res.Today)
}

func TestEditWithoutFocusMeasuresAgainstStoredText(t *testing.T) {
	svc, store := newTestService()
	created := svc.CreateStory("user1", "Nocturne")
	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))
	edit(t, svc, created.StoryID, created.ChapterID, "one two three")

	// Fresh session: same persisted state, no focus event before the edit.
	svc2 := NewVaultService(store, nil)
	res, err := svc2.RecordEdit("user1", model.EditRequest{
		StoryID:   created.StoryID,
		ChapterID: created.ChapterID,
		Text:      "one two three four",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Today-3, "only the new word is credited, not the whole chapter")
}

func TestGoalReachedFiresOnExactEquality(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")
	svc.SetGoal("user1", 10)
	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))

	res := edit(t, svc, created.StoryID, created.ChapterID, "w1 w2 w3 w4 w5 w6 w7")
	assert.Equal(t, 7, res.Today)
	assert.False(t, res.GoalReached)
	assert.Equal(t, 3, res.Remaining)

	res = edit(t, svc, created.StoryID, created.ChapterID, "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10")
	assert.Equal(t, 10, res.Today)
	assert.True(t, res.GoalReached, "landing exactly on the goal fires the event")
	assert.Equal(t, 0, res.Remaining)

	// Editing again at the goal does not re-fire.
	res = edit(t, svc, created.StoryID, created.ChapterID, "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10")
	assert.False(t, res.GoalReached)
}

func TestGoalOvershootDoesNotFire(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")
	svc.SetGoal("user1", 10)
	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))

	edit(t, svc, created.StoryID, created.ChapterID, "w1 w2 w3 w4 w5 w6 w7")
	res := edit(t, svc, created.StoryID, created.ChapterID, "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11 w12")
	assert.Equal(t, 12, res.Today)
	assert.False(t, res.GoalReached, "jumping past the goal in one step fires nothing")
	assert.Equal(t, 0, res.Remaining)
}

func TestSetGoalClampsNegative(t *testing.T) {
	svc, _ := newTestService()
	svc.SetGoal("user1", -50)
	assert.Equal(t, 0, svc.Stats("user1").Goal)
	assert.False(t, svc.Stats("user1").ShowHint)
}

func TestDeleteLastChapterRejected(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")

	err := svc.DeleteChapter("user1", created.StoryID, created.ChapterID)
	assert.ErrorIs(t, err, ErrLastChapter)

	second, err := svc.CreateChapter("user1", created.StoryID, "")
	require.NoError(t, err)
	assert.NoError(t, svc.DeleteChapter("user1", created.StoryID, created.ChapterID))
	assert.ErrorIs(t, svc.DeleteChapter("user1", created.StoryID, second.ChapterID), ErrLastChapter)
}

func TestBlankNamesAreSilentNoOps(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")

	require.NoError(t, svc.AddCharacter("user1", model.CharacterRequest{StoryID: created.StoryID, Name: "   "}))
	require.NoError(t, svc.AddTimelineEvent("user1", model.TimelineEventRequest{StoryID: created.StoryID, Title: ""}))

	data, _, err := svc.Export("user1")
	require.NoError(t, err)
	var v model.Vault
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Empty(t, v.Stories[0].Characters)
	assert.Empty(t, v.Stories[0].Timeline)
}

func TestImportRejectsNonListStories(t *testing.T) {
	svc, _ := newTestService()
	svc.CreateStory("user1", "Nocturne")
	before, _, err := svc.Export("user1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ImportReplace("user1", []byte(`{"stories": "not-a-list"}`)), ErrInvalidImport)
	assert.ErrorIs(t, svc.ImportReplace("user1", []byte(`{"goal": 100}`)), ErrInvalidImport)
	assert.ErrorIs(t, svc.ImportReplace("user1", []byte(`not json at all`)), ErrInvalidImport)

	after, _, err := svc.Export("user1")
	require.NoError(t, err)
	assert.Equal(t, before, after, "a rejected import leaves the aggregate untouched")
}

func TestImportReplacesAndMigrates(t *testing.T) {
	svc, _ := newTestService()
	svc.CreateStory("user1", "Will be replaced")

	snapshot := `{"stories":[{"id":"legacy-1","title":"Old draft","text":"hello world"}],"selectedId":"legacy-1","dailyWords":{"2026-08-01":42},"goal":300,"reminderTime":"21:15"}`
	require.NoError(t, svc.ImportReplace("user1", []byte(snapshot)))

	data, _, err := svc.Export("user1")
	require.NoError(t, err)
	var v model.Vault
	require.NoError(t, json.Unmarshal(data, &v))

	require.Len(t, v.Stories, 1)
	require.Len(t, v.Stories[0].Chapters, 1, "legacy flat text becomes a chapter")
	assert.Equal(t, "hello world", v.Stories[0].Chapters[0].Text)
	assert.Equal(t, v.Stories[0].Chapters[0].ID, v.Stories[0].SelectedChapterID)
	assert.Equal(t, 300, v.Goal)
	assert.Equal(t, 42, v.DailyWords.Get("2026-08-01"))
}

func TestImportDropsStaleBaselines(t *testing.T) {
	svc, _ := newTestService()
	created := svc.CreateStory("user1", "Nocturne")
	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))
	edit(t, svc, created.StoryID, created.ChapterID, "one two three four five")

	snapshot := `{"stories":[{"id":"` + created.StoryID + `","title":"Nocturne","chapters":[{"id":"` + created.ChapterID + `","title":"Chapter 1","text":""}],"selectedChapterId":"` + created.ChapterID + `"}],"selectedId":"` + created.StoryID + `","dailyWords":{},"goal":250,"reminderTime":"22:30"}`
	require.NoError(t, svc.ImportReplace("user1", []byte(snapshot)))

	// The chapter is empty again; typing two words must credit two, not
	// be swallowed by the pre-import baseline of five.
	res := edit(t, svc, created.StoryID, created.ChapterID, "uno dos")
	assert.Equal(t, 2, res.Today)
}

func TestStoryDeletionFallsBackToMostRecent(t *testing.T) {
	svc, _ := newTestService()
	first := svc.CreateStory("user1", "First")
	second := svc.CreateStory("user1", "Second")

	require.NoError(t, svc.SelectStory("user1", second.StoryID))
	require.NoError(t, svc.DeleteStory("user1", second.StoryID))

	stories := svc.Stories("user1")
	require.Len(t, stories, 1)
	assert.Equal(t, first.StoryID, stories[0].ID)
	assert.True(t, stories[0].Selected)

	require.NoError(t, svc.DeleteStory("user1", first.StoryID))
	assert.Empty(t, svc.Stories("user1"))
}

func TestCheckReminderFiresOncePerDay(t *testing.T) {
	svc, _ := newTestService()
	require.NoError(t, svc.SetReminderTime("user1", "22:30"))

	at := time.Date(2026, 8, 29, 22, 30, 5, 0, time.Local)
	assert.True(t, svc.CheckReminder("user1", at))
	assert.False(t, svc.CheckReminder("user1", at.Add(20*time.Second)), "second poll in the same minute stays quiet")
	assert.False(t, svc.CheckReminder("user1", at.Add(time.Minute)))

	nextDay := at.AddDate(0, 0, 1)
	assert.True(t, svc.CheckReminder("user1", nextDay))
}

func TestSetReminderTime(t *testing.T) {
	svc, _ := newTestService()
	assert.ErrorIs(t, svc.SetReminderTime("user1", "25:99"), ErrInvalidClock)

	require.NoError(t, svc.SetReminderTime("user1", ""))
	data, _, err := svc.Export("user1")
	require.NoError(t, err)
	var v model.Vault
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, model.DefaultReminderTime, v.ReminderTime)
}

func TestExportFilenameCarriesDateKey(t *testing.T) {
	svc, _ := newTestService()
	_, filename, err := svc.Export("user1")
	require.NoError(t, err)
	assert.Equal(t, "writer-vault-backup-"+model.DateKey(time.Now())+".json", filename)
}

func TestEverySaveIsAFullOverwrite(t *testing.T) {
	svc, store := newTestService()
	created := svc.CreateStory("user1", "Nocturne")
	require.NoError(t, svc.Focus("user1", created.StoryID, created.ChapterID))
	savesBefore := store.saves

	edit(t, svc, created.StoryID, created.ChapterID, "a")
	edit(t, svc, created.StoryID, created.ChapterID, "a b")
	assert.Equal(t, savesBefore+2, store.saves, "each edit persists the aggregate once")
}
