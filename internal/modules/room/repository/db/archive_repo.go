// Package db implements durable persistence for game archives on PostgreSQL.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

// ArchiveRecord is the row shape for a finished game. The full archive travels
// as a JSON payload; the remaining columns exist to query by participant and
// to list recent games without decoding every row.
type ArchiveRecord struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	RoomCode      string    `gorm:"type:varchar(8);not null;index:idx_game_archives_room_code"`
	RoomName      string    `gorm:"type:varchar(128);not null"`
	HostUserID    int64     `gorm:"not null"`
	SchemaVersion int       `gorm:"not null"`
	// PlayerIDs holds every participant id wrapped in commas, e.g. ",3,17,42,".
	// The wrapping commas let a LIKE '%,<id>,%' match whole ids only.
	PlayerIDs string    `gorm:"type:varchar(256);not null;index:idx_game_archives_player_ids"`
	Payload   string    `gorm:"type:text;not null"`
	EndedAt   time.Time `gorm:"not null;index:idx_game_archives_ended_at"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (ArchiveRecord) TableName() string {
	return "game_archives"
}

// ArchiveRepo implements domain.ArchiveRepository using GORM.
type ArchiveRepo struct {
	db *gorm.DB
}

func NewArchiveRepo(db *gorm.DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// AutoMigrate creates or updates the archive table.
func (r *ArchiveRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&ArchiveRecord{})
}

func (r *ArchiveRepo) Put(ctx context.Context, archive *domain.Archive) error {
	payload, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("encode archive %s: %w", archive.ID, err)
	}

	playerIDs := ","
	for _, p := range archive.Players {
		playerIDs += fmt.Sprintf("%d,", p.UserID)
	}

	rec := &ArchiveRecord{
		ID:            archive.ID,
		RoomCode:      archive.RoomCode,
		RoomName:      archive.RoomName,
		HostUserID:    archive.HostUserID,
		SchemaVersion: archive.SchemaVersion,
		PlayerIDs:     playerIDs,
		Payload:       string(payload),
		EndedAt:       archive.EndedAt,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

func (r *ArchiveRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Archive, error) {
	var recs []ArchiveRecord
	pattern := fmt.Sprintf("%%,%d,%%", userID)
	err := r.db.WithContext(ctx).
		Where("player_ids LIKE ?", pattern).
		Order("ended_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	out := make([]*domain.Archive, 0, len(recs))
	for _, rec := range recs {
		archive := &domain.Archive{}
		if err := json.Unmarshal([]byte(rec.Payload), archive); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", rec.ID, err)
		}
		if err := domain.MigrateArchive(archive); err != nil {
			return nil, err
		}
		out = append(out, archive)
	}
	return out, nil
}
