package gamification

import (
	"time"
)

// XPPerLevel is the XP needed to climb one level.
const XPPerLevel = 100

// ToolRunXP is awarded for each successful study tool run.
const ToolRunXP = 10

type Progress struct {
	XP             int64      `json:"xp"`
	Level          int        `json:"level"`
	Streak         int        `json:"streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
}

// Summary is the client view of a user's progress.
type Summary struct {
	Progress
	XPToNextLevel int64   `json:"xp_to_next_level"`
	LevelProgress float64 `json:"progress"`
}

func LevelFor(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Apply adds delta XP for activity at now and updates level and streak.
// Activity on the same UTC day keeps the streak, the next day extends it,
// any longer gap restarts it at 1.
func (p Progress) Apply(delta int64, now time.Time) Progress {
	p.XP += delta
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = LevelFor(p.XP)

	today := dayOf(now)
	switch {
	case p.LastActiveDate == nil:
		p.Streak = 1
	default:
		last := dayOf(*p.LastActiveDate)
		switch {
		case last.Equal(today):
			if p.Streak == 0 {
				p.Streak = 1
			}
		case last.AddDate(0, 0, 1).Equal(today):
			p.Streak++
		case last.After(today):
			// clock skew; keep the streak as is
		default:
			p.Streak = 1
		}
	}
	if p.Streak > p.LongestStreak {
		p.LongestStreak = p.Streak
	}
	if p.LastActiveDate == nil || !dayOf(*p.LastActiveDate).After(today) {
		p.LastActiveDate = &today
	}
	return p
}

// Current returns progress as seen at now: a streak whose last day is before
// yesterday is reported as broken.
func (p Progress) Current(now time.Time) Progress {
	if p.Level == 0 {
		p.Level = LevelFor(p.XP)
	}
	if p.LastActiveDate != nil && dayOf(*p.LastActiveDate).AddDate(0, 0, 1).Before(dayOf(now)) {
		p.Streak = 0
	}
	return p
}

func (p Progress) Summarize(now time.Time) Summary {
	cur := p.Current(now)
	into := cur.XP % XPPerLevel
	return Summary{
		Progress:      cur,
		XPToNextLevel: XPPerLevel - into,
		LevelProgress: float64(into) / float64(XPPerLevel),
	}
}
