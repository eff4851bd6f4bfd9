package repo

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/openl10n/tmsync/internal/models"
)

// MemoryRepository is an in-memory Repository used by tests.
type MemoryRepository struct {
	mu sync.Mutex

	stores      map[int64]*models.Store
	storesByKey map[string]int64
	units       map[int64]*models.Unit // by unit id
	submissions []*models.Submission
	suggestions []*models.Suggestion

	nextStoreID int64
	nextUnitID  int64

	locks map[string]*sync.Mutex
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		stores:      make(map[int64]*models.Store),
		storesByKey: make(map[string]int64),
		units:       make(map[int64]*models.Unit),
		locks:       make(map[string]*sync.Mutex),
	}
}

// CreateStore persists a new store.
func (m *MemoryRepository) CreateStore(store *models.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextStoreID++
	store.ID = m.nextStoreID
	clone := *store
	m.stores[store.ID] = &clone
	m.storesByKey[store.Path] = store.ID
	return nil
}

// StoreByPath retrieves a store by path.
func (m *MemoryRepository) StoreByPath(path string) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.storesByKey[path]
	if !ok {
		return nil, models.ErrStoreNotFound
	}
	clone := *m.stores[id]
	return &clone, nil
}

// SaveStore persists store attribute changes.
func (m *MemoryRepository) SaveStore(store *models.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *store
	m.stores[store.ID] = &clone
	m.storesByKey[store.Path] = store.ID
	return nil
}

// LockStore acquires a per-store lock.
func (m *MemoryRepository) LockStore(path string) (UnlockFunc, error) {
	m.mu.Lock()
	lock, ok := m.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[path] = lock
	}
	m.mu.Unlock()

	if !lock.TryLock() {
		return nil, models.ErrStoreLocked
	}
	return func() { lock.Unlock() }, nil
}

// Units returns a store's units ordered by index.
func (m *MemoryRepository) Units(storeID int64) ([]*models.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Unit
	for _, u := range m.units {
		if u.StoreID == storeID {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// UnitsByID retrieves specific units ordered by index.
func (m *MemoryRepository) UnitsByID(storeID int64, ids []int64) ([]*models.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Unit
	for _, id := range ids {
		if u, ok := m.units[id]; ok && u.StoreID == storeID {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// AddUnit persists a new unit.
func (m *MemoryRepository) AddUnit(unit *models.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextUnitID++
	unit.ID = m.nextUnitID
	m.units[unit.ID] = unit.Clone()
	return nil
}

// SaveUnit persists changes to an existing unit.
func (m *MemoryRepository) SaveUnit(unit *models.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.units[unit.ID]; !ok {
		return models.ErrUnitNotFound
	}
	m.units[unit.ID] = unit.Clone()
	return nil
}

// ShiftIndexes renumbers units at or after start by delta.
func (m *MemoryRepository) ShiftIndexes(storeID int64, start, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, u := range m.units {
		if u.StoreID == storeID && u.Index >= start {
			u.Index += delta
			count++
		}
	}
	return count, nil
}

// ObsoleteUnits soft-deletes the given live units.
func (m *MemoryRepository) ObsoleteUnits(storeID int64, ids []int64, rev int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, id := range ids {
		u, ok := m.units[id]
		if !ok || u.StoreID != storeID || u.IsObsolete() {
			continue
		}
		u.MakeObsolete()
		u.Revision = rev
		count++
	}
	return count, nil
}

// MaxUnitRevision returns the store's highest unit revision.
func (m *MemoryRepository) MaxUnitRevision(storeID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var max int64
	for _, u := range m.units {
		if u.StoreID == storeID && u.Revision > max {
			max = u.Revision
		}
	}
	return max, nil
}

// UnsyncedUnitIDs returns ids of live units with since < revision < before.
func (m *MemoryRepository) UnsyncedUnitIDs(storeID int64, since, before int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for _, u := range m.units {
		if u.StoreID == storeID && !u.IsObsolete() &&
			u.Revision > since && u.Revision < before {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// BumpRevisions re-stamps the given units with rev.
func (m *MemoryRepository) BumpRevisions(storeID int64, ids []int64, rev int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, id := range ids {
		if u, ok := m.units[id]; ok && u.StoreID == storeID {
			u.Revision = rev
			count++
		}
	}
	return count, nil
}

// RecordSubmission appends one change record.
func (m *MemoryRepository) RecordSubmission(sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	clone := *sub
	m.submissions = append(m.submissions, &clone)
	return nil
}

// AddSuggestion stores a pending suggestion unless an identical one exists.
func (m *MemoryRepository) AddSuggestion(sug *models.Suggestion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.suggestions {
		if existing.UnitID == sug.UnitID && existing.Target.Equal(sug.Target) {
			return false, nil
		}
	}

	if sug.ID == "" {
		sug.ID = uuid.NewString()
	}
	clone := *sug
	clone.Target = sug.Target.Clone()
	m.suggestions = append(m.suggestions, &clone)
	return true, nil
}

// Suggestions returns a unit's pending suggestions.
func (m *MemoryRepository) Suggestions(unitID int64) ([]*models.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Suggestion
	for _, sug := range m.suggestions {
		if sug.UnitID == unitID {
			clone := *sug
			clone.Target = sug.Target.Clone()
			out = append(out, &clone)
		}
	}
	return out, nil
}

// Submissions returns all recorded submissions for a unit (test helper).
func (m *MemoryRepository) Submissions(unitID int64) []*models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Submission
	for _, sub := range m.submissions {
		if sub.UnitID == unitID {
			clone := *sub
			out = append(out, &clone)
		}
	}
	return out
}

// Close releases resources.
func (m *MemoryRepository) Close() error {
	return nil
}
