// Package repotest provides an in-memory repository for service and API tests.
package repotest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/repository"
)

var _ repository.Repository = (*Memory)(nil)

// Memory is a goroutine safe repository.Repository backed by maps. Values
// are copied in and out so callers never share state with the store.
type Memory struct {
	mu       sync.Mutex
	users    map[string]models.User
	claims   map[string]models.Claim
	order    []string
	deleted  map[string]models.DeletedClaim
	activity []models.ActivityLog
	pingErr  error
	clock    func() time.Time
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]models.User),
		claims:  make(map[string]models.Claim),
		deleted: make(map[string]models.DeletedClaim),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// SetPingError makes Ping, and therefore login, fail with err
func (m *Memory) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.OdooID]; ok {
		return repository.ErrDuplicateKey
	}
	now := m.clock()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.OdooID] = *user
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := []models.User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].OdooID < users[j].OdooID
	})
	return users, nil
}

func (m *Memory) UpdateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.OdooID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = m.clock()
	m.users[user.OdooID] = *user
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func (m *Memory) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *Memory) claimNoTaken(claimNo, exceptID string) bool {
	for id, c := range m.claims {
		if id != exceptID && c.ClaimNo == claimNo {
			return true
		}
	}
	return false
}

func (m *Memory) insert(claim *models.Claim) {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.SharedWith == nil {
		claim.SharedWith = pq.StringArray{}
	}
	if claim.History == nil {
		claim.History = []models.HistoryEntry{}
	}
	now := m.clock()
	claim.CreatedAt = now
	claim.UpdatedAt = now
	m.claims[claim.ID] = clone(*claim)
	m.order = append(m.order, claim.ID)
}

func (m *Memory) CreateClaim(ctx context.Context, claim *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimNoTaken(claim.ClaimNo, "") {
		return repository.ErrDuplicateKey
	}
	m.insert(claim)
	return nil
}

func (m *Memory) BulkInsertClaims(ctx context.Context, claims []*models.Claim) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, claim := range claims {
		if m.claimNoTaken(claim.ClaimNo, "") {
			continue
		}
		m.insert(claim)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	c = clone(c)
	return &c, nil
}

func (m *Memory) ListClaims(ctx context.Context) ([]models.Claim, error) {
	return m.FindClaims(ctx, models.ClaimQuery{Bucket: models.BucketAll})
}

func (m *Memory) UpdateClaim(ctx context.Context, claim *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.claims[claim.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.claimNoTaken(claim.ClaimNo, claim.ID) {
		return repository.ErrDuplicateKey
	}

	claim.UpdatedAt = m.clock()
	next := clone(*claim)
	next.CreatedAt = stored.CreatedAt
	next.History = stored.History
	if next.SharedWith == nil {
		next.SharedWith = pq.StringArray{}
	}
	m.claims[claim.ID] = next
	return nil
}

func (m *Memory) FindClaims(ctx context.Context, q models.ClaimQuery) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claims := []models.Claim{}
	for _, id := range m.order {
		c, ok := m.claims[id]
		if !ok || !q.Matches(&c) {
			continue
		}
		claims = append(claims, clone(c))
	}
	return claims, nil
}

func (m *Memory) CountClaims(ctx context.Context, q models.ClaimQuery) (int, error) {
	claims, err := m.FindClaims(ctx, q)
	return len(claims), err
}

func (m *Memory) RecordWork(ctx context.Context, claim *models.Claim, entry *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.claims[claim.ID]
	if !ok {
		return repository.ErrNotFound
	}

	now := m.clock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.ClaimID = claim.ID
	entry.CreatedAt = now
	entry.Seq = len(stored.History) + 1

	stored.Status = claim.Status
	stored.ActionTaken = claim.ActionTaken
	stored.DateWorked = claim.DateWorked
	stored.NextFollowUp = claim.NextFollowUp
	stored.LastWorkedBy = claim.LastWorkedBy
	stored.UpdatedAt = now
	stored.History = append(append([]models.HistoryEntry{}, stored.History...), *entry)
	m.claims[claim.ID] = stored

	claim.UpdatedAt = now
	return nil
}

func (m *Memory) DeleteClaim(ctx context.Context, id, deletedBy string) (*models.DeletedClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	snapshot, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	d := models.DeletedClaim{
		ID:        uuid.New().String(),
		ClaimID:   c.ID,
		ClaimNo:   c.ClaimNo,
		Snapshot:  snapshot,
		DeletedBy: deletedBy,
		DeletedAt: m.clock(),
	}
	m.deleted[d.ID] = d
	delete(m.claims, id)
	m.removeOrder(id)
	return &d, nil
}

func (m *Memory) removeOrder(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Memory) ListDeletedClaims(ctx context.Context) ([]models.DeletedClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := make([]models.DeletedClaim, 0, len(m.deleted))
	for _, d := range m.deleted {
		deleted = append(deleted, d)
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i].DeletedAt.After(deleted[j].DeletedAt) })
	return deleted, nil
}

func (m *Memory) RestoreClaim(ctx context.Context, deletedID string) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deleted[deletedID]
	if !ok {
		return nil, nil
	}

	var c models.Claim
	if err := json.Unmarshal(d.Snapshot, &c); err != nil {
		return nil, err
	}
	if _, exists := m.claims[c.ID]; exists || m.claimNoTaken(c.ClaimNo, "") {
		return nil, repository.ErrDuplicateKey
	}
	if c.SharedWith == nil {
		c.SharedWith = pq.StringArray{}
	}
	if c.History == nil {
		c.History = []models.HistoryEntry{}
	}
	for i := range c.History {
		c.History[i].ClaimID = c.ID
	}
	c.UpdatedAt = m.clock()

	m.claims[c.ID] = clone(c)
	m.order = append(m.order, c.ID)
	delete(m.deleted, deletedID)
	return &c, nil
}

func (m *Memory) AddActivity(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = m.clock()
	m.activity = append(m.activity, *entry)
	return nil
}

func (m *Memory) ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logs := []models.ActivityLog{}
	for i := len(m.activity) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, m.activity[i])
	}
	return logs, nil
}

func clone(c models.Claim) models.Claim {
	c.SharedWith = append(pq.StringArray{}, c.SharedWith...)
	c.History = append([]models.HistoryEntry{}, c.History...)
	return c
}
