package domain

import "fmt"

// SchemaVersion is the current persisted-payload version for rooms and
// archives. Bump it together with a new case in the migrate functions.
const SchemaVersion = 1

// MigrateRoom upgrades a room loaded from storage to the current schema.
// It is run once at load time, keyed on the stored version tag.
func MigrateRoom(r *Room) error {
	switch r.SchemaVersion {
	case SchemaVersion:
		return nil
	case 0:
		// Pre-versioning payload: fill in defaults the old shape omitted.
		if r.Game == nil {
			r.Game = NewGameState(Settings{})
		}
		if r.Game.CurrentRound < 1 {
			r.Game.CurrentRound = 1
		}
		if r.Players == nil {
			r.Players = make([]*SeatedPlayer, 0, MaxSeats)
		}
		r.SchemaVersion = SchemaVersion
		return nil
	default:
		return fmt.Errorf("room %s: unknown schema version %d", r.Code, r.SchemaVersion)
	}
}

// MigrateArchive upgrades an archive loaded from storage to the current schema.
func MigrateArchive(a *Archive) error {
	switch a.SchemaVersion {
	case SchemaVersion:
		return nil
	case 0:
		a.SchemaVersion = SchemaVersion
		return nil
	default:
		return fmt.Errorf("archive %s: unknown schema version %d", a.ID, a.SchemaVersion)
	}
}
