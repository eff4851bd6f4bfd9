// Package sync implements the store diff/merge/update engine: it reconciles
// an on-disk translation document with the database representation of the
// same resource, computing minimal deltas and resolving concurrent edits
// through revision comparisons.
package sync

import (
	"strings"

	"github.com/openl10n/tmsync/internal/fileformat"
	"github.com/openl10n/tmsync/internal/models"
)

// ComparableUnit is the uniform read-only view over a unit's comparable
// fields, regardless of whether the unit came from a file or the database.
type ComparableUnit interface {
	Context() string
	DeveloperComment() string
	Locations() string // newline-joined
	Source() models.MultiString
	State() models.UnitState
	Target() models.MultiString
	TranslatorComment() string
}

// UnitsEqual reports whether two units compare equal on every comparable
// field. This is the only equality the differ uses.
func UnitsEqual(a, b ComparableUnit) bool {
	return a.Context() == b.Context() &&
		a.DeveloperComment() == b.DeveloperComment() &&
		a.Locations() == b.Locations() &&
		a.Source().Equal(b.Source()) &&
		a.State() == b.State() &&
		a.Target().Equal(b.Target()) &&
		a.TranslatorComment() == b.TranslatorComment()
}

// NewUnit carries the material needed to insert a source unit into the
// database.
type NewUnit struct {
	UnitID            string
	Source            models.MultiString
	Target            models.MultiString
	State             models.UnitState
	Context           string
	Locations         []string
	DeveloperComment  string
	TranslatorComment string
}

// IsObsolete reports whether the source marked the unit obsolete.
func (n *NewUnit) IsObsolete() bool {
	return n.State == models.Obsolete
}

// Source is what the differ reads from the desired end state, whether that
// is a parsed file or another database store.
type Source interface {
	// UIDs returns the source's unit ids in source order.
	UIDs() []string

	// Contains reports whether the source holds a unit with the given id.
	Contains(uid string) bool

	// View returns the comparable view of a unit.
	View(uid string) (ComparableUnit, bool)

	// Find returns the insertion material for a unit.
	Find(uid string) (*NewUnit, bool)
}

// FileUnitView adapts a parsed file unit to ComparableUnit.
type FileUnitView struct {
	unit fileformat.Unit
}

// Context implements ComparableUnit.
func (v FileUnitView) Context() string { return v.unit.Context() }

// DeveloperComment implements ComparableUnit.
func (v FileUnitView) DeveloperComment() string { return v.unit.Notes(fileformat.NoteDeveloper) }

// Locations implements ComparableUnit.
func (v FileUnitView) Locations() string { return strings.Join(v.unit.Locations(), "\n") }

// Source implements ComparableUnit.
func (v FileUnitView) Source() models.MultiString { return v.unit.Source() }

// State implements ComparableUnit.
func (v FileUnitView) State() models.UnitState { return fileformat.StateOf(v.unit) }

// Target implements ComparableUnit.
func (v FileUnitView) Target() models.MultiString { return v.unit.Target() }

// TranslatorComment implements ComparableUnit.
func (v FileUnitView) TranslatorComment() string { return v.unit.Notes(fileformat.NoteTranslator) }

// DBUnitView adapts a database unit to ComparableUnit.
type DBUnitView struct {
	unit *models.Unit
}

// Context implements ComparableUnit.
func (v DBUnitView) Context() string { return v.unit.Context }

// DeveloperComment implements ComparableUnit.
func (v DBUnitView) DeveloperComment() string { return v.unit.DeveloperComment }

// Locations implements ComparableUnit.
func (v DBUnitView) Locations() string { return v.unit.LocationsText() }

// Source implements ComparableUnit.
func (v DBUnitView) Source() models.MultiString { return v.unit.Source }

// State implements ComparableUnit.
func (v DBUnitView) State() models.UnitState { return v.unit.State }

// Target implements ComparableUnit.
func (v DBUnitView) Target() models.MultiString { return v.unit.Target }

// TranslatorComment implements ComparableUnit.
func (v DBUnitView) TranslatorComment() string { return v.unit.TranslatorComment }

// FileSnapshot is the file-backed Source: an ordered uid → unit mapping
// built once from a parsed document, header pseudo-units skipped.
type FileSnapshot struct {
	uids  []string
	units map[string]fileformat.Unit
}

// NewFileSnapshot builds a snapshot from a parsed document.
func NewFileSnapshot(doc fileformat.Store) *FileSnapshot {
	s := &FileSnapshot{units: make(map[string]fileformat.Unit)}
	for _, unit := range doc.Units() {
		if unit.IsHeader() {
			continue
		}
		uid := unit.ID()
		if _, seen := s.units[uid]; !seen {
			s.uids = append(s.uids, uid)
		}
		s.units[uid] = unit
	}
	return s
}

// UIDs implements Source.
func (s *FileSnapshot) UIDs() []string { return s.uids }

// Contains implements Source.
func (s *FileSnapshot) Contains(uid string) bool {
	_, ok := s.units[uid]
	return ok
}

// View implements Source.
func (s *FileSnapshot) View(uid string) (ComparableUnit, bool) {
	unit, ok := s.units[uid]
	if !ok {
		return nil, false
	}
	return FileUnitView{unit: unit}, true
}

// Find implements Source.
func (s *FileSnapshot) Find(uid string) (*NewUnit, bool) {
	unit, ok := s.units[uid]
	if !ok {
		return nil, false
	}
	return &NewUnit{
		UnitID:            uid,
		Source:            unit.Source(),
		Target:            unit.Target(),
		State:             fileformat.StateOf(unit),
		Context:           unit.Context(),
		Locations:         unit.Locations(),
		DeveloperComment:  unit.Notes(fileformat.NoteDeveloper),
		TranslatorComment: unit.Notes(fileformat.NoteTranslator),
	}, true
}

// DBSnapshot is the database-backed snapshot: an ordered uid → unit mapping
// over a store's rows, fetched exactly once. With onlyActive set, obsolete
// rows are excluded entirely, which is how a DB store acts as a sync source.
type DBSnapshot struct {
	uids       []string
	units      map[string]*models.Unit
	activeUIDs []string
	maxRev     int64
}

// NewDBSnapshot builds a snapshot from a store's units, which must already
// be ordered by index.
func NewDBSnapshot(units []*models.Unit, onlyActive bool) *DBSnapshot {
	s := &DBSnapshot{units: make(map[string]*models.Unit, len(units))}
	for _, unit := range units {
		if onlyActive && unit.IsObsolete() {
			continue
		}
		s.uids = append(s.uids, unit.UnitID)
		s.units[unit.UnitID] = unit
		if !unit.IsObsolete() {
			s.activeUIDs = append(s.activeUIDs, unit.UnitID)
		}
		if unit.Revision > s.maxRev {
			s.maxRev = unit.Revision
		}
	}
	return s
}

// UIDs implements Source.
func (s *DBSnapshot) UIDs() []string { return s.uids }

// Contains implements Source.
func (s *DBSnapshot) Contains(uid string) bool {
	_, ok := s.units[uid]
	return ok
}

// View implements Source.
func (s *DBSnapshot) View(uid string) (ComparableUnit, bool) {
	unit, ok := s.units[uid]
	if !ok {
		return nil, false
	}
	return DBUnitView{unit: unit}, true
}

// Find implements Source.
func (s *DBSnapshot) Find(uid string) (*NewUnit, bool) {
	unit, ok := s.units[uid]
	if !ok {
		return nil, false
	}
	return &NewUnit{
		UnitID:            unit.UnitID,
		Source:            unit.Source,
		Target:            unit.Target,
		State:             unit.State,
		Context:           unit.Context,
		Locations:         unit.Locations,
		DeveloperComment:  unit.DeveloperComment,
		TranslatorComment: unit.TranslatorComment,
	}, true
}

// Unit returns the underlying database unit.
func (s *DBSnapshot) Unit(uid string) (*models.Unit, bool) {
	unit, ok := s.units[uid]
	return unit, ok
}

// ActiveUIDs returns the ids of non-obsolete units in index order: the
// current visible sequence.
func (s *DBSnapshot) ActiveUIDs() []string { return s.activeUIDs }

// UpdatedUIDs returns ids of active units whose revision is greater than
// since.
func (s *DBSnapshot) UpdatedUIDs(since int64) []string {
	var out []string
	for _, uid := range s.uids {
		unit := s.units[uid]
		if unit.Revision > since && !unit.IsObsolete() {
			out = append(out, uid)
		}
	}
	return out
}

// MaxRevision returns the highest revision among the snapshot's units.
func (s *DBSnapshot) MaxRevision() int64 { return s.maxRev }
