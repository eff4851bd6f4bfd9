package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// UnitState describes a unit's translation progress. States are ordered:
// Obsolete sorts below every live state so range filters like
// "state > Obsolete" select exactly the live units.
type UnitState int

const (
	Obsolete     UnitState = -100
	Untranslated UnitState = 0
	Fuzzy        UnitState = 50
	Translated   UnitState = 200
)

// String returns the lowercase state name.
func (s UnitState) String() string {
	switch s {
	case Obsolete:
		return "obsolete"
	case Untranslated:
		return "untranslated"
	case Fuzzy:
		return "fuzzy"
	case Translated:
		return "translated"
	default:
		return "unknown"
	}
}

// MultiString is the normalized in-memory form of a source or target text.
// A singular text is a one-element slice; plural texts carry one element per
// plural form, in order.
type MultiString []string

// Single wraps a singular text.
func Single(s string) MultiString {
	return MultiString{s}
}

// String returns the first form, or "" for an empty value.
func (m MultiString) String() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

// IsEmpty reports whether every form is empty.
func (m MultiString) IsEmpty() bool {
	for _, s := range m {
		if s != "" {
			return false
		}
	}
	return true
}

// Equal compares two values form by form. A nil value equals an all-empty
// one-element value, so units parsed from different origins compare stable.
func (m MultiString) Equal(other MultiString) bool {
	if len(m) != len(other) {
		return m.IsEmpty() && other.IsEmpty()
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m MultiString) Clone() MultiString {
	if m == nil {
		return nil
	}
	out := make(MultiString, len(m))
	copy(out, m)
	return out
}

// UnitID derives the stable content key for a unit from its source text and
// context. Units keep this key across edits to target, comments or position.
func UnitID(source MultiString, context string) string {
	h := sha256.New()
	for i, s := range source {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(s))
	}
	h.Write([]byte{0x1f})
	h.Write([]byte(context))
	return hex.EncodeToString(h.Sum(nil))
}

// Unit is one translatable entry inside a store.
type Unit struct {
	ID      int64  `json:"id"`      // database row id, 0 until persisted
	StoreID int64  `json:"store_id"`
	UnitID  string `json:"unit_id"` // content-derived key, see UnitID

	// Index defines display and storage order within the store. Unique per
	// store regardless of state, not necessarily contiguous.
	Index int `json:"index"`

	Source            MultiString `json:"source"`
	Target            MultiString `json:"target"`
	State             UnitState   `json:"state"`
	Context           string      `json:"context,omitempty"`
	Locations         []string    `json:"locations,omitempty"`
	DeveloperComment  string      `json:"developer_comment,omitempty"`
	TranslatorComment string      `json:"translator_comment,omitempty"`

	// Revision is the global revision at which this unit last changed.
	Revision int64 `json:"revision"`

	SubmittedBy string    `json:"submitted_by,omitempty"`
	SubmittedOn time.Time `json:"submitted_on,omitempty"`
	CommentedBy string    `json:"commented_by,omitempty"`
	CommentedOn time.Time `json:"commented_on,omitempty"`
	ReviewedBy  string    `json:"reviewed_by,omitempty"`
	ReviewedOn  time.Time `json:"reviewed_on,omitempty"`
}

// IsObsolete reports whether the unit has been soft-deleted.
func (u *Unit) IsObsolete() bool {
	return u.State == Obsolete
}

// IsFuzzy reports whether the unit needs review.
func (u *Unit) IsFuzzy() bool {
	return u.State == Fuzzy
}

// IsTranslated reports whether the unit carries an accepted translation.
func (u *Unit) IsTranslated() bool {
	return u.State == Translated
}

// LocationsText returns the newline-joined location list, the canonical
// representation used for comparison and storage.
func (u *Unit) LocationsText() string {
	return strings.Join(u.Locations, "\n")
}

// MakeObsolete soft-deletes the unit. The index is kept so ordering stays
// stable for a later resurrection.
func (u *Unit) MakeObsolete() {
	u.State = Obsolete
}

// Resurrect brings an obsolete unit back to a live state derived from its
// target content.
func (u *Unit) Resurrect(keepFuzzy bool) {
	if u.Target.IsEmpty() {
		u.State = Untranslated
	} else {
		u.State = Translated
	}
	if keepFuzzy {
		u.State = Fuzzy
	}
}

// Clone returns a deep copy of the unit.
func (u *Unit) Clone() *Unit {
	clone := *u
	clone.Source = u.Source.Clone()
	clone.Target = u.Target.Clone()
	if u.Locations != nil {
		clone.Locations = append([]string(nil), u.Locations...)
	}
	return &clone
}
