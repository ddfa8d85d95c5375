package model

import "time"

type CreateStoryRequest struct {
	Title string `json:"title"`
}

type CreateStoryResponse struct {
	StoryID   string `json:"story_id"`
	ChapterID string `json:"chapter_id"`
}

type UpdateStoryRequest struct {
	Title string `json:"title"`
}

type SelectStoryRequest struct {
	StoryID string `json:"story_id"`
}

type StoryMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Words     int       `json:"words"`
	UpdatedAt time.Time `json:"updated_at"`
	Selected  bool      `json:"selected"`
}

type ChapterRequest struct {
	StoryID   string `json:"story_id"`
	ChapterID string `json:"chapter_id"`
	Title     string `json:"title"`
}

type CreateChapterResponse struct {
	ChapterID string `json:"chapter_id"`
}

type EditRequest struct {
	StoryID   string `json:"story_id"`
	ChapterID string `json:"chapter_id"`
	Text      string `json:"text"`
}

// EditResult is what the editor shows after every keystroke batch: the
// chapter's word count plus the day's running progress.
type EditResult struct {
	Words       int  `json:"words"`
	Today       int  `json:"today"`
	Streak      int  `json:"streak"`
	Remaining   int  `json:"remaining"`
	GoalReached bool `json:"goal_reached"`
}

type CharacterRequest struct {
	StoryID string `json:"story_id"`
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Notes   string `json:"notes"`
}

type TimelineEventRequest struct {
	StoryID string `json:"story_id"`
	Index   int    `json:"index"`
	Title   string `json:"title"`
	When    string `json:"when"`
	Notes   string `json:"notes"`
}

type GoalRequest struct {
	Goal int `json:"goal"`
}

type ReminderRequest struct {
	Time string `json:"time"`
}

type Stats struct {
	TotalWords int    `json:"total_words"`
	Today      int    `json:"today"`
	Streak     int    `json:"streak"`
	Goal       int    `json:"goal"`
	Remaining  int    `json:"remaining"`
	ShowHint   bool   `json:"show_hint"`
	DateKey    string `json:"date_key"`
}
