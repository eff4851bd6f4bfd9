package repo

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openl10n/tmsync/internal/events"
	"github.com/openl10n/tmsync/internal/models"
)

// testRepositories runs a test against every Repository implementation.
func testRepositories(t *testing.T, fn func(t *testing.T, r Repository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryRepository())
	})

	t.Run("sqlite", func(t *testing.T) {
		logger := events.NewTestLogger(&bytes.Buffer{})
		r, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tmsync.db"), logger)
		require.NoError(t, err)
		t.Cleanup(func() { r.Close() })
		fn(t, r)
	})
}

func createTestStore(t *testing.T, r Repository) *models.Store {
	t.Helper()
	store, err := models.NewStore("projects/app/de.json", "de")
	require.NoError(t, err)
	require.NoError(t, r.CreateStore(store))
	require.NotZero(t, store.ID)
	return store
}

func addTestUnit(t *testing.T, r Repository, storeID int64, uid string, index int, rev int64) *models.Unit {
	t.Helper()
	unit := &models.Unit{
		StoreID:  storeID,
		UnitID:   uid,
		Index:    index,
		Source:   models.Single(uid + "-source"),
		Target:   models.Single(uid + "-target"),
		State:    models.Translated,
		Revision: rev,
	}
	require.NoError(t, r.AddUnit(unit))
	require.NotZero(t, unit.ID)
	return unit
}

func TestStoreRoundTrip(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)

		loaded, err := r.StoreByPath(store.Path)
		require.NoError(t, err)
		assert.Equal(t, store.ID, loaded.ID)
		assert.Equal(t, "de", loaded.Language)
		assert.Equal(t, models.StoreNew, loaded.State)
		assert.Equal(t, models.NoRevision, loaded.LastSyncRevision)
		assert.False(t, loaded.Synced())

		_, err = r.StoreByPath("projects/app/missing.json")
		assert.ErrorIs(t, err, models.ErrStoreNotFound)
	})
}

func TestSaveStore(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)

		store.State = models.StoreParsed
		store.LastSyncRevision = 7
		require.NoError(t, r.SaveStore(store))

		loaded, err := r.StoreByPath(store.Path)
		require.NoError(t, err)
		assert.Equal(t, models.StoreParsed, loaded.State)
		assert.Equal(t, int64(7), loaded.LastSyncRevision)
		assert.True(t, loaded.Synced())
	})
}

func TestUnitsOrderedByIndex(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		addTestUnit(t, r, store.ID, "c", 3, 1)
		addTestUnit(t, r, store.ID, "a", 1, 1)
		addTestUnit(t, r, store.ID, "b", 2, 1)

		units, err := r.Units(store.ID)
		require.NoError(t, err)
		require.Len(t, units, 3)
		assert.Equal(t, "a", units[0].UnitID)
		assert.Equal(t, "b", units[1].UnitID)
		assert.Equal(t, "c", units[2].UnitID)
	})
}

func TestUnitRoundTrip(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)

		unit := &models.Unit{
			StoreID:           store.ID,
			UnitID:            "plural",
			Index:             1,
			Source:            models.MultiString{"%d file", "%d files"},
			Target:            models.MultiString{"%d Datei", "%d Dateien"},
			State:             models.Fuzzy,
			Context:           "file count",
			Locations:         []string{"ui/list.go:10", "ui/list.go:42"},
			DeveloperComment:  "shown in the sidebar",
			TranslatorComment: "check plural form",
			Revision:          3,
			SubmittedBy:       "alice",
			SubmittedOn:       time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, r.AddUnit(unit))

		units, err := r.Units(store.ID)
		require.NoError(t, err)
		require.Len(t, units, 1)

		got := units[0]
		assert.Equal(t, unit.Source, got.Source)
		assert.Equal(t, unit.Target, got.Target)
		assert.Equal(t, unit.Locations, got.Locations)
		assert.Equal(t, unit.Context, got.Context)
		assert.Equal(t, unit.DeveloperComment, got.DeveloperComment)
		assert.Equal(t, unit.TranslatorComment, got.TranslatorComment)
		assert.Equal(t, "alice", got.SubmittedBy)
		assert.WithinDuration(t, unit.SubmittedOn, got.SubmittedOn, time.Second)
	})
}

func TestSaveUnit(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		unit := addTestUnit(t, r, store.ID, "a", 1, 1)

		unit.Target = models.Single("edited")
		unit.Revision = 5
		require.NoError(t, r.SaveUnit(unit))

		units, err := r.UnitsByID(store.ID, []int64{unit.ID})
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, models.Single("edited"), units[0].Target)
		assert.Equal(t, int64(5), units[0].Revision)
	})
}

func TestShiftIndexes(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		addTestUnit(t, r, store.ID, "a", 1, 1)
		addTestUnit(t, r, store.ID, "b", 2, 1)
		addTestUnit(t, r, store.ID, "c", 3, 1)

		n, err := r.ShiftIndexes(store.ID, 2, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		units, err := r.Units(store.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, units[0].Index)
		assert.Equal(t, 12, units[1].Index)
		assert.Equal(t, 13, units[2].Index)
	})
}

func TestObsoleteUnits(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		a := addTestUnit(t, r, store.ID, "a", 1, 1)
		b := addTestUnit(t, r, store.ID, "b", 2, 1)

		a.MakeObsolete()
		require.NoError(t, r.SaveUnit(a))

		// Already-obsolete units are not re-stamped.
		n, err := r.ObsoleteUnits(store.ID, []int64{a.ID, b.ID}, 9)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		units, err := r.Units(store.ID)
		require.NoError(t, err)
		for _, u := range units {
			assert.True(t, u.IsObsolete())
		}
		got, err := r.UnitsByID(store.ID, []int64{b.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(9), got[0].Revision)
	})
}

func TestMaxUnitRevision(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)

		max, err := r.MaxUnitRevision(store.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), max)

		addTestUnit(t, r, store.ID, "a", 1, 4)
		addTestUnit(t, r, store.ID, "b", 2, 11)

		max, err = r.MaxUnitRevision(store.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(11), max)
	})
}

func TestUnsyncedUnitIDs(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		addTestUnit(t, r, store.ID, "a", 1, 2)
		b := addTestUnit(t, r, store.ID, "b", 2, 5)
		addTestUnit(t, r, store.ID, "c", 3, 8)

		obsolete := addTestUnit(t, r, store.ID, "d", 4, 6)
		obsolete.MakeObsolete()
		require.NoError(t, r.SaveUnit(obsolete))

		// Bounds are exclusive and obsolete units do not count.
		ids, err := r.UnsyncedUnitIDs(store.ID, 2, 8)
		require.NoError(t, err)
		assert.Equal(t, []int64{b.ID}, ids)
	})
}

func TestBumpRevisions(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		a := addTestUnit(t, r, store.ID, "a", 1, 1)
		b := addTestUnit(t, r, store.ID, "b", 2, 2)
		addTestUnit(t, r, store.ID, "c", 3, 3)

		n, err := r.BumpRevisions(store.ID, []int64{a.ID, b.ID}, 20)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		units, err := r.Units(store.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(20), units[0].Revision)
		assert.Equal(t, int64(20), units[1].Revision)
		assert.Equal(t, int64(3), units[2].Revision)
	})
}

func TestAddSuggestionDeduplicates(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		unit := addTestUnit(t, r, store.ID, "a", 1, 1)

		base := time.Now().UTC().Truncate(time.Second)

		added, err := r.AddSuggestion(&models.Suggestion{
			UnitID:    unit.ID,
			Target:    models.Single("Vorschlag"),
			User:      "alice",
			CreatedOn: base,
		})
		require.NoError(t, err)
		assert.True(t, added)

		added, err = r.AddSuggestion(&models.Suggestion{
			UnitID:    unit.ID,
			Target:    models.Single("Vorschlag"),
			User:      "bob",
			CreatedOn: base.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.False(t, added)

		added, err = r.AddSuggestion(&models.Suggestion{
			UnitID:    unit.ID,
			Target:    models.Single("anderer Vorschlag"),
			User:      "bob",
			CreatedOn: base.Add(2 * time.Minute),
		})
		require.NoError(t, err)
		assert.True(t, added)

		sugs, err := r.Suggestions(unit.ID)
		require.NoError(t, err)
		assert.Len(t, sugs, 2)
		assert.Equal(t, models.Single("Vorschlag"), sugs[0].Target)
		assert.Equal(t, "alice", sugs[0].User)
	})
}

func TestRecordSubmission(t *testing.T) {
	testRepositories(t, func(t *testing.T, r Repository) {
		store := createTestStore(t, r)
		unit := addTestUnit(t, r, store.ID, "a", 1, 1)

		err := r.RecordSubmission(&models.Submission{
			UnitID:    unit.ID,
			Field:     models.FieldTarget,
			OldValue:  "a-target",
			NewValue:  "a-target-neu",
			Submitter: "alice",
			Type:      models.SubmissionNormal,
			CreatedOn: time.Now().UTC(),
		})
		require.NoError(t, err)
	})
}

func TestMemoryLockStore(t *testing.T) {
	r := NewMemoryRepository()

	unlock, err := r.LockStore("projects/app/de.json")
	require.NoError(t, err)

	_, err = r.LockStore("projects/app/de.json")
	assert.ErrorIs(t, err, models.ErrStoreLocked)

	// Other stores are unaffected.
	other, err := r.LockStore("projects/app/fr.json")
	require.NoError(t, err)
	other()

	unlock()
	again, err := r.LockStore("projects/app/de.json")
	require.NoError(t, err)
	again()
}

func TestSQLiteLockStore(t *testing.T) {
	logger := events.NewTestLogger(&bytes.Buffer{})
	r, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tmsync.db"), logger)
	require.NoError(t, err)
	defer r.Close()
	r.lockTimeout = 50 * time.Millisecond

	path := "projects/app/de.json"

	unlock, err := r.LockStore(path)
	require.NoError(t, err)

	_, err = r.LockStore(path)
	assert.ErrorIs(t, err, models.ErrStoreLocked)

	// A timed-out acquire must not consume the holder's unlock. The store
	// has to be lockable again once the holder lets go.
	unlock()
	again, err := r.LockStore(path)
	require.NoError(t, err)

	// A waiter that arrives while the lock is held gets it as soon as the
	// holder releases, ahead of the timeout.
	r.lockTimeout = time.Second
	acquired := make(chan error, 1)
	go func() {
		fn, lockErr := r.LockStore(path)
		if lockErr == nil {
			fn()
		}
		acquired <- lockErr
	}()
	time.Sleep(20 * time.Millisecond)
	again()

	select {
	case lockErr := <-acquired:
		require.NoError(t, lockErr)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestSQLiteRevisionSource(t *testing.T) {
	logger := events.NewTestLogger(&bytes.Buffer{})
	r, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tmsync.db"), logger)
	require.NoError(t, err)
	defer r.Close()

	revs := r.Revisions()

	current, err := revs.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)

	for want := int64(1); want <= 3; want++ {
		got, err := revs.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	current, err = revs.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)
}
