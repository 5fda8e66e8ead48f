package chat

import "time"

// SessionInfo is the externally visible view of a running chat session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"createdAt"`
	Busy       bool      `json:"busy"`
	Transcript []Turn    `json:"transcript"`
}
