package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/openl10n/tmsync/internal/events"
	"github.com/openl10n/tmsync/internal/fileformat"
	"github.com/openl10n/tmsync/internal/models"
	"github.com/openl10n/tmsync/internal/repo"
	"github.com/openl10n/tmsync/internal/revision"
)

// Changes counts what one update did.
type Changes struct {
	Added     int
	Obsoleted int
	Updated   int
	Suggested int
}

// Changed reports whether anything happened.
func (c Changes) Changed() bool {
	return c.Added > 0 || c.Obsoleted > 0 || c.Updated > 0 || c.Suggested > 0
}

// String renders the non-zero counts for logs.
func (c Changes) String() string {
	var parts []string
	for _, p := range []struct {
		name  string
		count int
	}{
		{"added", c.Added},
		{"obsoleted", c.Obsoleted},
		{"updated", c.Updated},
		{"suggested", c.Suggested},
	} {
		if p.count > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", p.name, p.count))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// updateContext carries one batch's configuration to the per-unit updater.
type updateContext struct {
	source            Source
	indices           map[string]UnitIndex
	baseline          int64 // revision the source is assumed current at
	updateRevision    int64 // shared stamp for the whole batch
	user              string
	submissionType    models.SubmissionType
	suggestOnConflict bool
}

// frozenUnit captures the fields of a unit before the updater touches it.
type frozenUnit struct {
	target            models.MultiString
	state             models.UnitState
	translatorComment string
}

// UnitUpdater applies one unit's portion of a diff to the live database
// unit, deciding between direct merge, suggestion-on-conflict, and
// resurrection.
type UnitUpdater struct {
	unit     *models.Unit
	ctx      *updateContext
	repo     repo.Repository
	original frozenUnit
	at       time.Time
	newUnit  *NewUnit
}

func newUnitUpdater(unit *models.Unit, ctx *updateContext, r repo.Repository) *UnitUpdater {
	u := &UnitUpdater{
		unit: unit,
		ctx:  ctx,
		repo: r,
		original: frozenUnit{
			target:            unit.Target.Clone(),
			state:             unit.State,
			translatorComment: unit.TranslatorComment,
		},
		at: time.Now().UTC(),
	}
	u.newUnit, _ = ctx.source.Find(unit.UnitID)
	return u
}

// conflictFound reports whether the database unit changed after the point
// the source was derived from, with source or target texts now diverging.
// This is the central optimistic-concurrency check.
func (u *UnitUpdater) conflictFound() bool {
	return u.newUnit != nil &&
		u.ctx.baseline != models.NoRevision &&
		u.ctx.baseline < u.unit.Revision &&
		(!u.unit.Target.Equal(u.newUnit.Target) ||
			!u.unit.Source.Equal(u.newUnit.Source))
}

// shouldMerge: a source unit exists and nothing conflicts, so its content
// can be applied directly.
func (u *UnitUpdater) shouldMerge() bool {
	return u.newUnit != nil && !u.conflictFound()
}

// shouldResurrect: the database unit is obsolete, the source unit is not,
// and the database unit accrued changes since the baseline that would be
// lost by leaving it obsolete.
func (u *UnitUpdater) shouldResurrect() bool {
	return u.unit.IsObsolete() &&
		u.newUnit != nil &&
		!u.newUnit.IsObsolete() &&
		u.unit.Revision > u.ctx.baseline
}

func (u *UnitUpdater) shouldCreateSuggestion() bool {
	return u.ctx.suggestOnConflict && u.conflictFound()
}

func (u *UnitUpdater) shouldUpdateIndex() bool {
	ui, ok := u.ctx.indices[u.unit.UnitID]
	return ok && u.unit.Index != ui.Index
}

// merge copies the source unit's content onto the live unit. Returns
// whether anything actually changed.
func (u *UnitUpdater) merge() bool {
	changed := false
	if !u.unit.Source.Equal(u.newUnit.Source) {
		u.unit.Source = u.newUnit.Source.Clone()
		changed = true
	}
	if !u.unit.Target.Equal(u.newUnit.Target) {
		u.unit.Target = u.newUnit.Target.Clone()
		changed = true
	}
	if u.unit.State != u.newUnit.State {
		u.unit.State = u.newUnit.State
		changed = true
	}
	if u.unit.Context != u.newUnit.Context {
		u.unit.Context = u.newUnit.Context
		changed = true
	}
	newLocations := strings.Join(u.newUnit.Locations, "\n")
	if u.unit.LocationsText() != newLocations {
		u.unit.Locations = append([]string(nil), u.newUnit.Locations...)
		changed = true
	}
	if u.unit.DeveloperComment != u.newUnit.DeveloperComment {
		u.unit.DeveloperComment = u.newUnit.DeveloperComment
		changed = true
	}
	if u.unit.TranslatorComment != u.newUnit.TranslatorComment {
		u.unit.TranslatorComment = u.newUnit.TranslatorComment
		changed = true
	}
	return changed
}

// createSuggestion records the source's target as a pending suggestion
// instead of overwriting the live unit.
func (u *UnitUpdater) createSuggestion() (bool, error) {
	if u.newUnit.Target.Equal(u.unit.Target) {
		return false, nil
	}
	return u.repo.AddSuggestion(&models.Suggestion{
		UnitID:    u.unit.ID,
		Target:    u.newUnit.Target.Clone(),
		User:      u.ctx.user,
		CreatedOn: u.at,
	})
}

// saveUnit persists the updated unit, recording submissions and stamping
// the denormalized fields.
func (u *UnitUpdater) saveUnit() error {
	targetUpdated := !u.unit.Target.Equal(u.original.target)

	if targetUpdated {
		err := u.repo.RecordSubmission(&models.Submission{
			UnitID:    u.unit.ID,
			Field:     models.FieldTarget,
			OldValue:  strings.Join(u.original.target, "\n"),
			NewValue:  strings.Join(u.unit.Target, "\n"),
			Submitter: u.ctx.user,
			Type:      u.ctx.submissionType,
			CreatedOn: u.at,
		})
		if err != nil {
			return err
		}
	}
	if u.unit.State != u.original.state {
		err := u.repo.RecordSubmission(&models.Submission{
			UnitID:    u.unit.ID,
			Field:     models.FieldState,
			OldValue:  u.original.state.String(),
			NewValue:  u.unit.State.String(),
			Submitter: u.ctx.user,
			Type:      u.ctx.submissionType,
			CreatedOn: u.at,
		})
		if err != nil {
			return err
		}
	}

	commentUpdated := (u.original.translatorComment != "" || u.unit.TranslatorComment != "") &&
		u.original.translatorComment != u.unit.TranslatorComment
	if commentUpdated {
		u.unit.CommentedBy = u.ctx.user
		u.unit.CommentedOn = u.at
	}

	if targetUpdated {
		u.unit.SubmittedBy = u.ctx.user
		u.unit.SubmittedOn = u.at
		u.unit.ReviewedBy = ""
		u.unit.ReviewedOn = time.Time{}
	}

	// The whole batch shares one revision stamp.
	u.unit.Revision = u.ctx.updateRevision
	return u.repo.SaveUnit(u.unit)
}

// Update runs the per-unit state machine.
//
// Returns (updated, suggested, unsynced): whether a change was saved,
// whether a suggestion was added due to a conflict, and whether an
// obsolete unit carrying unsynced changes was resurrected.
func (u *UnitUpdater) Update() (updated, suggested, unsynced bool, err error) {
	if u.shouldMerge() {
		updated = u.merge()
	} else if u.shouldResurrect() {
		u.unit.Resurrect(u.unit.IsFuzzy())
		updated = true
		unsynced = true
	}

	if u.shouldUpdateIndex() {
		u.unit.Index = u.ctx.indices[u.unit.UnitID].Index
		updated = true
	}

	if updated {
		if err = u.saveUnit(); err != nil {
			return false, false, false, err
		}
	}

	if u.shouldCreateSuggestion() {
		suggested, err = u.createSuggestion()
		if err != nil {
			return updated, false, unsynced, err
		}
	}

	return updated, suggested, unsynced, nil
}

// UpdaterOptions configures a StoreUpdater.
type UpdaterOptions struct {
	// SystemUser is attributed to changes when no acting user is given.
	SystemUser string

	// SuggestOnConflict records conflicting source edits as suggestions
	// instead of discarding them.
	SuggestOnConflict bool
}

// DefaultUpdaterOptions returns the standard behavior.
func DefaultUpdaterOptions() *UpdaterOptions {
	return &UpdaterOptions{SystemUser: "system", SuggestOnConflict: true}
}

// StoreUpdater drives a whole update transaction for one store: diff,
// structural changes, per-unit updates, revision bookkeeping.
type StoreUpdater struct {
	store     *models.Store
	repo      repo.Repository
	revisions revision.Source
	opts      *UpdaterOptions
	logger    *events.Logger
}

// NewStoreUpdater creates an updater for a target store.
func NewStoreUpdater(
	store *models.Store,
	r repo.Repository,
	revisions revision.Source,
	opts *UpdaterOptions,
	logger *events.Logger,
) *StoreUpdater {
	if opts == nil {
		opts = DefaultUpdaterOptions()
	}
	return &StoreUpdater{
		store:     store,
		repo:      r,
		revisions: revisions,
		opts:      opts,
		logger: logger.WithFields(map[string]interface{}{
			"component": "store_updater",
			"store":     store.Path,
		}),
	}
}

// Update reconciles the store with a source snapshot.
//
// baseline is the global revision the source is assumed current at;
// models.NoRevision means the source carries no revision information.
// Returns the batch revision (models.NoRevision when nothing changed),
// the change counts, and ids of units resurrected with unsynced changes.
func (s *StoreUpdater) Update(
	source Source,
	user string,
	baseline int64,
	submissionType models.SubmissionType,
) (int64, Changes, []int64, error) {
	unlock, err := s.repo.LockStore(s.store.Path)
	if err != nil {
		return models.NoRevision, Changes{}, nil, err
	}
	defer unlock()

	return s.update(source, user, baseline, submissionType)
}

// update is Update without the store lock, for callers that already hold
// it.
func (s *StoreUpdater) update(
	source Source,
	user string,
	baseline int64,
	submissionType models.SubmissionType,
) (updateRevision int64, changes Changes, unsyncedIDs []int64, err error) {
	s.logger.Debug("Updating store")

	oldState := s.store.State
	if user == "" {
		user = s.opts.SystemUser
	}
	updateRevision = models.NoRevision

	// The store's state transition and save must happen even when diff
	// application fails, without masking the original error.
	defer func() {
		if oldState < models.StoreParsed {
			s.store.State = models.StoreParsed
		} else {
			s.store.State = oldState
		}
		if saveErr := s.repo.SaveStore(s.store); saveErr != nil && err == nil {
			err = saveErr
		}
		if err == nil && changes.Changed() {
			s.logger.WithFields(map[string]interface{}{
				"changes":  changes.String(),
				"revision": updateRevision,
			}).Info("Store updated")
		}
	}()

	units, err := s.repo.Units(s.store.ID)
	if err != nil {
		return updateRevision, changes, nil,
			&models.SyncError{Phase: "snapshot", Store: s.store.Path, Err: err}
	}
	target := NewDBSnapshot(units, false)

	diff := NewDiffer(target, source, baseline).Diff()
	if diff == nil {
		return updateRevision, changes, nil, nil
	}

	updateRevision, err = s.revisions.Next()
	if err != nil {
		return models.NoRevision, changes, nil, err
	}

	changes, unsyncedIDs, err = s.applyDiff(source, diff, baseline, updateRevision, user, submissionType)
	if err != nil {
		err = &models.SyncError{Phase: "apply", Store: s.store.Path, Err: err}
	}
	return updateRevision, changes, unsyncedIDs, err
}

// applyDiff applies structural changes and per-unit updates in the fixed
// order later steps depend on: index shifts, additions, obsoletions, then
// unit updates.
func (s *StoreUpdater) applyDiff(
	source Source,
	diff *Diff,
	baseline int64,
	updateRevision int64,
	user string,
	submissionType models.SubmissionType,
) (Changes, []int64, error) {
	var changes Changes

	for _, iu := range diff.Index {
		if _, err := s.repo.ShiftIndexes(s.store.ID, iu.Start, iu.Delta); err != nil {
			return changes, nil, err
		}
	}

	now := time.Now().UTC()
	for _, add := range diff.Add {
		unit := &models.Unit{
			StoreID:           s.store.ID,
			UnitID:            add.Unit.UnitID,
			Index:             add.Index,
			Source:            add.Unit.Source.Clone(),
			Target:            add.Unit.Target.Clone(),
			State:             add.Unit.State,
			Context:           add.Unit.Context,
			Locations:         append([]string(nil), add.Unit.Locations...),
			DeveloperComment:  add.Unit.DeveloperComment,
			TranslatorComment: add.Unit.TranslatorComment,
			Revision:          updateRevision,
			SubmittedBy:       user,
			SubmittedOn:       now,
		}
		if err := s.repo.AddUnit(unit); err != nil {
			return changes, nil, err
		}
	}
	changes.Added = len(diff.Add)

	obsoleted, err := s.repo.ObsoleteUnits(s.store.ID, diff.Obsolete, updateRevision)
	if err != nil {
		return changes, nil, err
	}
	changes.Obsoleted = obsoleted

	ctx := &updateContext{
		source:            source,
		indices:           diff.Indices,
		baseline:          baseline,
		updateRevision:    updateRevision,
		user:              user,
		submissionType:    submissionType,
		suggestOnConflict: s.opts.SuggestOnConflict,
	}

	units, err := s.repo.UnitsByID(s.store.ID, diff.UpdateIDs)
	if err != nil {
		return changes, nil, err
	}

	var unsyncedIDs []int64
	for _, unit := range units {
		updated, suggested, unsynced, err := newUnitUpdater(unit, ctx, s.repo).Update()
		if err != nil {
			return changes, unsyncedIDs, err
		}
		if updated {
			changes.Updated++
		}
		if suggested {
			changes.Suggested++
		}
		if unsynced {
			unsyncedIDs = append(unsyncedIDs, unit.ID)
		}
	}

	return changes, unsyncedIDs, nil
}

// UpdateFromDisk reconciles the store with a parsed on-disk document.
//
// With overwrite set, every file unit is processed regardless of the last
// sync point; otherwise the stored last-sync revision is the baseline.
// Returns whether the database store changed, and the change counts.
func (s *StoreUpdater) UpdateFromDisk(doc fileformat.Store, mtime time.Time, overwrite bool) (bool, Changes, error) {
	unlock, err := s.repo.LockStore(s.store.Path)
	if err != nil {
		return false, Changes{}, err
	}
	defer unlock()

	var baseline int64
	if overwrite {
		baseline, err = s.repo.MaxUnitRevision(s.store.ID)
		if err != nil {
			return false, Changes{}, err
		}
	} else {
		baseline = s.store.LastSyncRevision
		if baseline == models.NoRevision {
			baseline = 0
		}
	}

	source := NewFileSnapshot(doc)
	updateRevision, changes, unsyncedIDs, err := s.update(
		source, "", baseline, models.SubmissionSystem)
	if err != nil {
		return false, changes, err
	}

	s.store.FileMTime = mtime

	if !changes.Changed() {
		// Still save to persist the mtime.
		return false, changes, s.repo.SaveStore(s.store)
	}

	if s.store.Synced() {
		// Units edited in the database while this sync ran were not part of
		// the diff; re-stamp them past the batch revision so a future sync
		// still sees them as pending.
		concurrent, err := s.repo.UnsyncedUnitIDs(
			s.store.ID, s.store.LastSyncRevision, updateRevision)
		if err != nil {
			return false, changes, err
		}
		unsyncedIDs = append(unsyncedIDs, concurrent...)

		if len(unsyncedIDs) > 0 {
			rev, err := s.revisions.Next()
			if err != nil {
				return false, changes, err
			}
			count, err := s.repo.BumpRevisions(s.store.ID, unsyncedIDs, rev)
			if err != nil {
				return false, changes, err
			}
			if count > 0 {
				s.logger.WithFields(map[string]interface{}{
					"units":    count,
					"revision": updateRevision,
				}).Info("Re-stamped unsynced units")
			}
		}
	}

	s.store.LastSyncRevision = updateRevision
	return true, changes, s.repo.SaveStore(s.store)
}
