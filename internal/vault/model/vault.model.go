package model

import (
	"time"

	"writervault/pkg/words"
)

const (
	DefaultGoal         = 250
	DefaultReminderTime = "22:30"
)

// DateKey returns the canonical ledger key for t, using the host-local
// calendar date.
func DateKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

type Chapter struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type Character struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

type TimelineEvent struct {
	Title string `json:"title"`
	When  string `json:"when"`
	Notes string `json:"notes"`
}

type Story struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Chapters          []Chapter       `json:"chapters"`
	SelectedChapterID string          `json:"selectedChapterId"`
	Characters        []Character     `json:"characters"`
	Timeline          []TimelineEvent `json:"timeline"`
	UpdatedAt         time.Time       `json:"updatedAt"`

	// Text is the flat prose field from vault schema v2. Migrate moves it
	// into the story's first chapter; current-schema stories leave it empty.
	Text string `json:"text,omitempty"`
}

// Chapter returns the chapter with the given id, or nil.
func (s *Story) Chapter(id string) *Chapter {
	for i := range s.Chapters {
		if s.Chapters[i].ID == id {
			return &s.Chapters[i]
		}
	}
	return nil
}

// WordCount sums the word counts of all chapters.
func (s *Story) WordCount() int {
	total := 0
	for i := range s.Chapters {
		total += words.Count(s.Chapters[i].Text)
	}
	return total
}

// Ledger maps a date key (YYYY-MM-DD) to the cumulative words written that
// day. Entries only ever grow; days with no positive contribution are absent.
type Ledger map[string]int

func (l Ledger) Add(key string, amount int) {
	if amount > 0 {
		l[key] += amount
	}
}

func (l Ledger) Get(key string) int {
	return l[key]
}

// Streak counts consecutive days with a positive entry, walking backward
// from now's local date. A zero or absent entry for today ends the walk
// immediately, so the streak is 0 no matter what came before.
func (l Ledger) Streak(now time.Time) int {
	streak := 0
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for l.Get(DateKey(d)) > 0 {
		streak++
		d = d.AddDate(0, 0, -1)
	}
	return streak
}

type Vault struct {
	Stories         []Story `json:"stories"`
	SelectedID      string  `json:"selectedId"`
	DailyWords      Ledger  `json:"dailyWords"`
	Goal            int     `json:"goal"`
	ReminderTime    string  `json:"reminderTime"`
	LastReminderDay string  `json:"lastReminderDay"`
}

// Default returns the aggregate a brand-new user starts with, also used
// when the persisted row is missing or unreadable.
func Default() *Vault {
	return &Vault{
		Stories:      []Story{},
		DailyWords:   Ledger{},
		Goal:         DefaultGoal,
		ReminderTime: DefaultReminderTime,
	}
}

// Story returns the story with the given id, or nil.
func (v *Vault) Story(id string) *Story {
	for i := range v.Stories {
		if v.Stories[i].ID == id {
			return &v.Stories[i]
		}
	}
	return nil
}

// Selected returns the currently selected story, or nil when nothing is
// selected.
func (v *Vault) Selected() *Story {
	if v.SelectedID == "" {
		return nil
	}
	return v.Story(v.SelectedID)
}

// TotalWords sums the word counts of every chapter of every story.
func (v *Vault) TotalWords() int {
	total := 0
	for i := range v.Stories {
		total += v.Stories[i].WordCount()
	}
	return total
}

// Remaining reports how many words are still missing to hit the daily goal.
func (v *Vault) Remaining(now time.Time) int {
	remaining := v.Goal - v.DailyWords.Get(DateKey(now))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldRemind reports whether the writing reminder is due: now's
// hour:minute matches the configured time and no reminder has fired today.
// Committing LastReminderDay is the caller's job.
func ShouldRemind(v *Vault, now time.Time) bool {
	t, err := time.Parse("15:04", v.ReminderTime)
	if err != nil {
		return false
	}
	return now.Hour() == t.Hour() && now.Minute() == t.Minute() && v.LastReminderDay != DateKey(now)
}
