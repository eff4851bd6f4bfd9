// Package repo provides persistence for stores, units and their audit
// trail. The sync engine only sees the Repository interface; SQLite backs
// production, the memory implementation backs tests.
package repo

import (
	"github.com/openl10n/tmsync/internal/models"
)

// UnlockFunc releases a store lock.
type UnlockFunc func()

// Repository is the persistence surface consumed by the sync engine.
type Repository interface {
	// CreateStore persists a new store and assigns its ID.
	CreateStore(store *models.Store) error

	// StoreByPath retrieves a store by its unique resource path.
	StoreByPath(path string) (*models.Store, error)

	// SaveStore persists store attribute changes.
	SaveStore(store *models.Store) error

	// LockStore acquires the per-store mutual exclusion that serializes
	// synchronizations of one store. Syncs of different stores proceed in
	// parallel.
	LockStore(path string) (UnlockFunc, error)

	// Units returns all of a store's units, every state included, ordered
	// by index.
	Units(storeID int64) ([]*models.Unit, error)

	// UnitsByID retrieves specific units of a store by database id,
	// ordered by index.
	UnitsByID(storeID int64, ids []int64) ([]*models.Unit, error)

	// AddUnit persists a new unit and assigns its ID.
	AddUnit(unit *models.Unit) error

	// SaveUnit persists changes to an existing unit.
	SaveUnit(unit *models.Unit) error

	// ShiftIndexes renumbers all units with index >= start by delta,
	// without touching revisions. Returns the number of shifted units.
	ShiftIndexes(storeID int64, start, delta int) (int, error)

	// ObsoleteUnits soft-deletes the given live units, stamping them with
	// rev. Returns the number of units obsoleted.
	ObsoleteUnits(storeID int64, ids []int64, rev int64) (int, error)

	// MaxUnitRevision returns the highest revision among the store's
	// units, or 0 for an empty store.
	MaxUnitRevision(storeID int64) (int64, error)

	// UnsyncedUnitIDs returns ids of live units whose revision lies
	// strictly between since and before.
	UnsyncedUnitIDs(storeID int64, since, before int64) ([]int64, error)

	// BumpRevisions re-stamps the given units with rev. Returns the number
	// of units changed.
	BumpRevisions(storeID int64, ids []int64, rev int64) (int, error)

	// RecordSubmission appends one field-level change record.
	RecordSubmission(sub *models.Submission) error

	// AddSuggestion stores a pending suggestion. Returns false without
	// storing when an identical pending suggestion already exists.
	AddSuggestion(sug *models.Suggestion) (bool, error)

	// Suggestions returns a unit's pending suggestions, oldest first.
	Suggestions(unitID int64) ([]*models.Suggestion, error)

	// Close releases resources.
	Close() error
}
