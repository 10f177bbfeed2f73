package domain

import "time"

// ArchivePlayer is one player's final line in an archive.
type ArchivePlayer struct {
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	FinalScore int    `json:"final_score"`
}

// Archive is the immutable terminal record of a finished room. Room codes are
// recycled across lifetimes, so the archive carries its own generated id and
// keeps the code as a plain field. At-most-once per room lifetime is enforced
// by the settle idempotency gate, not by the key.
type Archive struct {
	SchemaVersion int             `json:"schema_version"`
	ID            string          `json:"id"`
	RoomCode      string          `json:"room_code"`
	RoomName      string          `json:"room_name"`
	EndedAt       time.Time       `json:"ended_at"`
	HostUserID    int64           `json:"host_user_id"`
	Players       []ArchivePlayer `json:"players"`
	History       []RoundRecord   `json:"history"` // settled rounds plus the final open round
	Settings      Settings        `json:"settings"`
}
