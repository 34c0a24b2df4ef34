package config

import "time"

// WeeklyConfig is the recurring poll template plus its timing rule.
// NextFireAt is the single source of truth for when the next poll gets
// created; it must be recomputed whenever a timing field changes.
type WeeklyConfig struct {
	Enabled      bool   `json:"enabled"`
	Question     string `json:"question"`
	ForLabel     string `json:"forLabel"`
	AgainstLabel string `json:"againstLabel"`
	Target       int    `json:"target"`
	// DayOfWeek uses 0 = Sunday through 6 = Saturday.
	DayOfWeek           int        `json:"dayOfWeek"`
	StartHour           int        `json:"startHour"`
	RandomWindowMinutes int        `json:"randomWindowMinutes"`
	NextFireAt          *time.Time `json:"nextFireAt,omitempty"`
}

// InstantConfig is the template for a one-off, admin-triggered poll.
type InstantConfig struct {
	Question     string `json:"question"`
	ForLabel     string `json:"forLabel"`
	AgainstLabel string `json:"againstLabel"`
	Target       int    `json:"target"`
}

func DefaultWeekly() WeeklyConfig {
	return WeeklyConfig{
		Enabled:             true,
		Question:            "Playing football this week?",
		ForLabel:            "I'm in!",
		AgainstLabel:        "Can't make it",
		Target:              12,
		DayOfWeek:           4, // Thursday
		StartHour:           13,
		RandomWindowMinutes: 59,
	}
}

func DefaultInstant() InstantConfig {
	return InstantConfig{
		Question:     "Playing football this week?",
		ForLabel:     "I'm in!",
		AgainstLabel: "Can't make it",
		Target:       12,
	}
}
