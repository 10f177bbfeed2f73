package domain

import "context"

// RoomRepository is the keyed store for live rooms. Get returns (nil, nil)
// when the code is unknown.
type RoomRepository interface {
	Get(ctx context.Context, code string) (*Room, error)
	Put(ctx context.Context, room *Room) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]*Room, error)
}

// ArchiveRepository is the durable store for terminal room snapshots.
type ArchiveRepository interface {
	Put(ctx context.Context, archive *Archive) error
	ListForUser(ctx context.Context, userID int64) ([]*Archive, error)
}

// Broadcaster pushes room lifecycle output to connected participants. The
// lifecycle manager only calls it after the corresponding durable write has
// completed, so observed updates have always survived the persistence layer.
type Broadcaster interface {
	// RoomState pushes the full room snapshot to every socket in the room's
	// channel.
	RoomState(ctx context.Context, room *Room)
	// RoomEnded notifies every participant that the room is going away.
	RoomEnded(ctx context.Context, roomCode string, message string)
	// Kicked notifies a single user that they were removed.
	Kicked(ctx context.Context, userID int64, message string)
	// DetachRoom unbinds every socket still joined to the room's channel, so a
	// later disconnect is not misattributed to a room that no longer exists.
	DetachRoom(ctx context.Context, roomCode string)
}
