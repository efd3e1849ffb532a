package clips

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/google/uuid"
)

type memoryRow struct {
	clip         model.Clip
	passwordHash string
	storageKey   string
	seq          int64
}

// MemoryRepository is a map-backed Repository with the same idempotency and
// patch semantics as the PostgreSQL one. It backs hub and service tests.
type MemoryRepository struct {
	mu      sync.Mutex
	rows    map[string]*memoryRow // by server id
	byLocal map[string]string     // ownerID+"\x00"+localID -> server id
	members map[string][]string   // userID -> team ids, for List visibility
	seq     int64
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows:    make(map[string]*memoryRow),
		byLocal: make(map[string]string),
		members: make(map[string][]string),
	}
}

// AddMemberTeams registers team visibility for List, mirroring the SQL
// subquery against team_members.
func (r *MemoryRepository) AddMemberTeams(userID string, teamIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[userID] = append(r.members[userID], teamIDs...)
}

func (r *MemoryRepository) Save(ctx context.Context, clip *model.Clip, storageKey string) (*model.Clip, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := clip.OwnerID + "\x00" + clip.LocalID
	if id, ok := r.byLocal[key]; ok {
		existing := r.rows[id].clip
		return &existing, false, nil
	}

	r.seq++
	now := time.Now()
	saved := *clip
	saved.ID = uuid.NewString()
	saved.CreatedAt = now
	saved.UpdatedAt = now
	r.rows[saved.ID] = &memoryRow{clip: saved, storageKey: storageKey, seq: r.seq}
	r.byLocal[key] = saved.ID

	out := saved
	return &out, true, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*model.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clip := row.clip
	return &clip, nil
}

func (r *MemoryRepository) List(ctx context.Context, userID string, opts ListOptions) ([]*model.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	teams := make(map[string]bool)
	for _, t := range r.members[userID] {
		teams[t] = true
	}

	var rows []*memoryRow
	for _, row := range r.rows {
		c := row.clip
		if c.OwnerID != userID && !(c.TeamID != "" && teams[c.TeamID]) {
			continue
		}
		if opts.Pinned != nil && c.Pinned != *opts.Pinned {
			continue
		}
		if opts.Type != "" && string(c.Type) != opts.Type {
			continue
		}
		if opts.Search != "" {
			if c.PasswordProtected || c.Encrypted ||
				!strings.Contains(strings.ToLower(c.Content), strings.ToLower(opts.Search)) {
				continue
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	result := make([]*model.Clip, 0, len(rows))
	for _, row := range rows {
		clip := row.clip
		result = append(result, &clip)
	}
	return result, nil
}

func (r *MemoryRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.patch(id, func(row *memoryRow) {
		row.clip.Pinned = pinned
	})
}

func (r *MemoryRepository) SetPassword(ctx context.Context, id string, hash string) error {
	return r.patch(id, func(row *memoryRow) {
		row.clip.PasswordProtected = true
		row.passwordHash = hash
	})
}

func (r *MemoryRepository) RemovePassword(ctx context.Context, id string) error {
	return r.patch(id, func(row *memoryRow) {
		row.clip.PasswordProtected = false
		row.passwordHash = ""
	})
}

func (r *MemoryRepository) GetPasswordHash(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return "", common.ErrNotFound
	}
	return row.passwordHash, nil
}

func (r *MemoryRepository) GetStorageKey(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return "", common.ErrNotFound
	}
	return row.storageKey, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	delete(r.byLocal, row.clip.OwnerID+"\x00"+row.clip.LocalID)
	delete(r.rows, id)
	return nil
}

func (r *MemoryRepository) patch(id string, fn func(*memoryRow)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	fn(row)
	row.clip.UpdatedAt = time.Now()
	return nil
}
