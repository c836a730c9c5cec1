package models

import "time"

// Event types recorded by the auth flow.
const (
	EventRegister  = "auth.register"
	EventLogin     = "auth.login"
	EventLoginFail = "auth.login.fail"
	EventLogout    = "auth.logout"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event represents an entry in the authentication audit log.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "auth.login", "auth.login.fail"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	UserID    *int64    `json:"userId,omitempty"` // Nullable for attempts on unknown usernames
	CreatedAt time.Time `json:"createdAt"`
}
