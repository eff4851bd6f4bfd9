package sync

import (
	"sort"

	"github.com/openl10n/tmsync/internal/models"
)

// IndexUpdate shifts every unit with index >= Start by Delta to make room
// for insertions.
type IndexUpdate struct {
	Start int
	Delta int
}

// Addition schedules a source unit for insertion at a target index.
type Addition struct {
	Unit  *NewUnit
	Index int
}

// UnitIndex records the new position of an existing database unit.
type UnitIndex struct {
	DBID  int64
	Index int
}

// Diff is the structured set of operations reconciling a target store with
// a source. It is consumed once, within a single synchronization, then
// discarded.
type Diff struct {
	// Index lists renumbering steps, in application order.
	Index []IndexUpdate

	// Obsolete lists database ids of units the source removed.
	Obsolete []int64

	// UpdateIDs lists database ids of units requiring a per-unit update,
	// sorted ascending.
	UpdateIDs []int64

	// Indices maps unit ids whose position changed to their new index.
	Indices map[string]UnitIndex

	// Add lists units to insert, with their target indices.
	Add []Addition
}

// insertPoint is one derived insertion region.
//
// insertAt is the database index immediately preceding the insertion, uids
// the slice of unit ids to place there, nextIndex the first index that
// follows, and delta the shift required to make room (applied only when
// positive).
type insertPoint struct {
	insertAt  int
	uids      []string
	nextIndex int
	delta     int
}

// Differ computes the difference between a target database snapshot and a
// source snapshot, given the baseline revision at which the source is
// assumed current. All derived views are computed once, up front.
type Differ struct {
	target   *DBSnapshot
	source   Source
	baseline int64

	targetRevision int64
	updatedUIDs    []string
	updatedSet     map[string]bool
	activeSet      map[string]bool
	newUIDs        []string
	opcodes        []Opcode
	inserts        []insertPoint
}

// NewDiffer prepares a diff computation. A negative baseline means the
// source carries no revision information and everything it holds is
// treated as new.
func NewDiffer(target *DBSnapshot, source Source, baseline int64) *Differ {
	if baseline < 0 {
		baseline = models.NoRevision
	}

	d := &Differ{
		target:         target,
		source:         source,
		baseline:       baseline,
		targetRevision: target.MaxRevision(),
	}

	d.updatedUIDs = target.UpdatedUIDs(baseline)
	d.updatedSet = make(map[string]bool, len(d.updatedUIDs))
	for _, uid := range d.updatedUIDs {
		d.updatedSet[uid] = true
	}

	d.activeSet = make(map[string]bool, len(target.ActiveUIDs()))
	for _, uid := range target.ActiveUIDs() {
		d.activeSet[uid] = true
	}

	d.newUIDs = d.newUnitList()
	d.opcodes = Opcodes(target.ActiveUIDs(), d.newUIDs)
	d.inserts = d.insertPoints()
	return d
}

// newUnitList computes the desired final ordering of unit ids.
//
// When the source is at least as fresh as the target, the file order wins
// outright. When the target has moved past the baseline, units edited in
// the database since then but absent from the source are kept, placed
// ahead of the source sequence: database-only edits win position priority
// over a stale source.
func (d *Differ) newUnitList() []string {
	if d.baseline >= d.targetRevision {
		return d.source.UIDs()
	}

	var uids []string
	for _, uid := range d.updatedUIDs {
		if !d.source.Contains(uid) {
			uids = append(uids, uid)
		}
	}
	return append(uids, d.source.UIDs()...)
}

// insertPoints derives insertion regions from the insert and replace
// opcodes of the alignment.
func (d *Differ) insertPoints() []insertPoint {
	var inserts []insertPoint
	active := d.target.ActiveUIDs()

	indexOf := func(pos int) int {
		unit, _ := d.target.Unit(active[pos])
		return unit.Index
	}

	for _, op := range d.opcodes {
		switch op.Tag {
		case OpInsert:
			delta := 0
			insertAt := 0
			if op.I1 > 0 {
				insertAt = indexOf(op.I1 - 1)
			}
			nextIndex := insertAt + 1
			if op.I1 < len(active) {
				nextIndex = indexOf(op.I1)
				delta = (op.J2 - op.J1) - nextIndex + insertAt + 1
			}
			inserts = append(inserts, insertPoint{
				insertAt:  insertAt,
				uids:      d.newUIDs[op.J1:op.J2],
				nextIndex: nextIndex,
				delta:     delta,
			})

		case OpReplace:
			insertAt := 0
			if op.I1 > 0 {
				insertAt = indexOf(op.I1 - 1)
			}
			nextIndex := indexOf(op.I2 - 1)
			inserts = append(inserts, insertPoint{
				insertAt:  insertAt,
				uids:      d.newUIDs[op.J1:op.J2],
				nextIndex: nextIndex,
				delta:     (op.J2 - op.J1) - insertAt + nextIndex,
			})
		}
	}
	return inserts
}

// Diff returns the change actions, or nil when target and source already
// agree.
func (d *Differ) Diff() *Diff {
	diff := &Diff{
		Index:    d.indexUpdates(),
		Obsolete: d.unitsToObsolete(),
		Add:      d.unitsToAdd(),
	}
	diff.UpdateIDs, diff.Indices = d.unitsToUpdate()

	if len(diff.Index) == 0 && len(diff.Obsolete) == 0 &&
		len(diff.Add) == 0 && len(diff.UpdateIDs) == 0 {
		return nil
	}
	return diff
}

// indexUpdates accumulates the positive shifts, left to right, so each
// later insertion sees already-shifted indices.
func (d *Differ) indexUpdates() []IndexUpdate {
	offset := 0
	var updates []IndexUpdate
	for _, ip := range d.inserts {
		if ip.delta > 0 {
			updates = append(updates, IndexUpdate{Start: ip.nextIndex + offset, Delta: ip.delta})
			offset += ip.delta
		}
	}
	return updates
}

// unitsToAdd schedules source units that do not yet exist in the target.
// A unit id the source cannot resolve is skipped.
func (d *Differ) unitsToAdd() []Addition {
	offset := 0
	var additions []Addition
	for _, ip := range d.inserts {
		for k, uid := range ip.uids {
			unit, ok := d.source.Find(uid)
			if ok && !d.target.Contains(uid) {
				additions = append(additions, Addition{
					Unit:  unit,
					Index: ip.insertAt + k + 1 + offset,
				})
			}
		}
		if ip.delta > 0 {
			offset += ip.delta
		}
	}
	return additions
}

// unitsToObsolete selects target units the source removed on purpose:
// active, absent from the source, and without database edits since the
// baseline that would protect them.
func (d *Differ) unitsToObsolete() []int64 {
	var ids []int64
	for _, uid := range d.target.UIDs() {
		if d.source.Contains(uid) || !d.activeSet[uid] || d.updatedSet[uid] {
			continue
		}
		unit, _ := d.target.Unit(uid)
		ids = append(ids, unit.ID)
	}
	return ids
}

// unitsToUpdate combines position changes (existing units inside insert
// regions) with content changes (units inside equal regions whose
// comparable fields differ).
func (d *Differ) unitsToUpdate() ([]int64, map[string]UnitIndex) {
	indices := make(map[string]UnitIndex)
	offset := 0
	for _, ip := range d.inserts {
		for k, uid := range ip.uids {
			if unit, ok := d.target.Unit(uid); ok {
				indices[uid] = UnitIndex{
					DBID:  unit.ID,
					Index: ip.insertAt + k + 1 + offset,
				}
			}
		}
		if ip.delta > 0 {
			offset += ip.delta
		}
	}

	idSet := d.changedSourceIDs()
	for _, ui := range indices {
		idSet[ui.DBID] = true
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, indices
}

// changedSourceIDs walks the equal regions of the alignment and collects
// database ids of units whose comparable fields no longer match the
// source.
func (d *Differ) changedSourceIDs() map[int64]bool {
	ids := make(map[int64]bool)
	active := d.target.ActiveUIDs()

	for _, op := range d.opcodes {
		if op.Tag != OpEqual {
			continue
		}
		for _, uid := range active[op.I1:op.I2] {
			sourceView, ok := d.source.View(uid)
			if !ok {
				continue
			}
			targetView, _ := d.target.View(uid)
			if !UnitsEqual(sourceView, targetView) {
				unit, _ := d.target.Unit(uid)
				ids[unit.ID] = true
			}
		}
	}
	return ids
}
