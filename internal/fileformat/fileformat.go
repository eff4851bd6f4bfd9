// Package fileformat defines the surface the sync engine reads from parsed
// translation files. Parsing concrete translation formats is delegated to
// external libraries; any parser that can expose its units through these
// interfaces can drive a synchronization.
package fileformat

import "github.com/openl10n/tmsync/internal/models"

// Note origins for Unit.Notes.
const (
	NoteDeveloper  = "developer"
	NoteTranslator = "translator"
)

// Unit is one parsed file unit.
type Unit interface {
	// ID returns the unit's stable content key.
	ID() string

	Context() string
	Locations() []string
	Source() models.MultiString
	Target() models.MultiString

	// Notes returns the comment text for the given origin, NoteDeveloper or
	// NoteTranslator.
	Notes(origin string) string

	IsObsolete() bool
	IsFuzzy() bool
	IsTranslated() bool

	// IsHeader reports whether this is the document header pseudo-unit,
	// which synchronization skips.
	IsHeader() bool
}

// Store is an ordered sequence of parsed units.
type Store interface {
	// Units returns all units in file order, header included.
	Units() []Unit

	// FindID retrieves a unit by its content key.
	FindID(id string) (Unit, bool)
}

// StateOf maps a file unit's flags onto the database state enum. Precedence:
// obsolete, then translated, then fuzzy, then untranslated.
func StateOf(u Unit) models.UnitState {
	switch {
	case u.IsObsolete():
		return models.Obsolete
	case u.IsTranslated():
		return models.Translated
	case u.IsFuzzy():
		return models.Fuzzy
	default:
		return models.Untranslated
	}
}
