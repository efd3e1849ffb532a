package teams

import (
	"context"
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is a map-backed Repository used by hub and service tests.
type MemoryRepository struct {
	mu      sync.Mutex
	teams   map[string]models.Team
	members map[string]map[string]bool // teamID -> userID set
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		teams:   make(map[string]models.Team),
		members: make(map[string]map[string]bool),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, team *models.Team) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team.ID = uuid.NewString()
	r.teams[team.ID] = *team
	return team, nil
}

func (r *MemoryRepository) AddMember(ctx context.Context, teamID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[teamID] == nil {
		r.members[teamID] = make(map[string]bool)
	}
	r.members[teamID][userID] = true
	return nil
}

func (r *MemoryRepository) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[teamID][userID], nil
}

func (r *MemoryRepository) MemberTeams(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []string
	for teamID, users := range r.members {
		if users[userID] {
			result = append(result, teamID)
		}
	}
	return result, nil
}
