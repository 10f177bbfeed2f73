package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

// ArchiveRepo keeps finished game archives in process memory.
type ArchiveRepo struct {
	mu       sync.RWMutex
	archives map[string]*domain.Archive
}

func NewArchiveRepo() *ArchiveRepo {
	return &ArchiveRepo{archives: make(map[string]*domain.Archive)}
}

func (r *ArchiveRepo) Put(ctx context.Context, archive *domain.Archive) error {
	cp, err := copyArchive(archive)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.archives[archive.ID] = cp
	return nil
}

func (r *ArchiveRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Archive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Archive
	for _, a := range r.archives {
		if !archiveHasPlayer(a, userID) {
			continue
		}
		cp, err := copyArchive(a)
		if err != nil {
			return nil, err
		}
		if err := domain.MigrateArchive(cp); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	return out, nil
}

// Count reports the number of stored archives. Test helper.
func (r *ArchiveRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.archives)
}

func archiveHasPlayer(a *domain.Archive, userID int64) bool {
	for _, p := range a.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func copyArchive(a *domain.Archive) (*domain.Archive, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("copy archive %s: %w", a.ID, err)
	}
	cp := &domain.Archive{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return nil, fmt.Errorf("copy archive %s: %w", a.ID, err)
	}
	return cp, nil
}
