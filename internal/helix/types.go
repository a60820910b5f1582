package helix

import "time"

// Stream is one entry from the streams endpoint.
type Stream struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	Type        string    `json:"type"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

// ChatSettings mirrors the chat settings resource. Only the four
// toggleable modes are carried; duration/delay knobs are left to the
// provider's defaults.
type ChatSettings struct {
	BroadcasterID  string `json:"broadcaster_id"`
	EmoteMode      bool   `json:"emote_mode"`
	FollowerMode   bool   `json:"follower_mode"`
	SlowMode       bool   `json:"slow_mode"`
	SubscriberMode bool   `json:"subscriber_mode"`
}

// AdSchedule describes the channel's upcoming ad break. NextAdAt is
// the zero time when no ad is scheduled.
type AdSchedule struct {
	NextAdAt        time.Time
	LastAdAt        time.Time
	DurationSeconds int
	PrerollFree     int
	SnoozeCount     int
	SnoozeRefreshAt time.Time
}

// User is one entry from the users endpoint.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// Category is one entry from the category search endpoint.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
