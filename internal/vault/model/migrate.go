package model

import (
	"time"

	"github.com/google/uuid"
)

// Migrate upgrades a loaded vault from the v2 schema (one flat text field
// per story) to the current chapter-based schema and repairs dangling
// selections. It runs after every load and every import, before anything
// reads chapters, and is safe to run any number of times: a second pass
// over migrated data changes nothing.
//
// Returns true if the vault was modified.
func Migrate(v *Vault) bool {
	changed := false

	if v.DailyWords == nil {
		v.DailyWords = Ledger{}
		changed = true
	}
	if v.Goal < 0 {
		v.Goal = 0
		changed = true
	}
	if v.ReminderTime == "" {
		v.ReminderTime = DefaultReminderTime
		changed = true
	}

	for i := range v.Stories {
		s := &v.Stories[i]
		if len(s.Chapters) == 0 {
			s.Chapters = []Chapter{{
				ID:    uuid.NewString(),
				Title: "Chapter 1",
				Text:  s.Text,
			}}
			s.SelectedChapterID = s.Chapters[0].ID
			s.Text = ""
			if s.UpdatedAt.IsZero() {
				s.UpdatedAt = time.Now()
			}
			changed = true
		} else if s.Chapter(s.SelectedChapterID) == nil {
			s.SelectedChapterID = s.Chapters[0].ID
			changed = true
		}
	}

	if v.SelectedID != "" && v.Story(v.SelectedID) == nil {
		v.SelectedID = ""
		changed = true
	}

	return changed
}
