package fileformat

import (
	"encoding/json"
	"fmt"

	"github.com/openl10n/tmsync/internal/models"
)

// jsonUnit is the wire form of one unit in a JSON interchange document.
type jsonUnit struct {
	ID                string   `json:"id,omitempty"`
	Source            []string `json:"source"`
	Target            []string `json:"target,omitempty"`
	Context           string   `json:"context,omitempty"`
	Locations         []string `json:"locations,omitempty"`
	DeveloperComment  string   `json:"developer_comment,omitempty"`
	TranslatorComment string   `json:"translator_comment,omitempty"`
	Fuzzy             bool     `json:"fuzzy,omitempty"`
	Obsolete          bool     `json:"obsolete,omitempty"`
}

type jsonDocument struct {
	Language string     `json:"language,omitempty"`
	Units    []jsonUnit `json:"units"`
}

// Document is a JSON-backed Store implementation. It is the interchange
// format used by the CLI and tests; real translation formats are parsed by
// external libraries behind the same interfaces.
type Document struct {
	language string
	units    []*DocUnit
	byID     map[string]*DocUnit
}

// DocUnit is one unit of a Document.
type DocUnit struct {
	id   string
	data jsonUnit
}

// ID implements Unit.
func (u *DocUnit) ID() string { return u.id }

// Context implements Unit.
func (u *DocUnit) Context() string { return u.data.Context }

// Locations implements Unit.
func (u *DocUnit) Locations() []string { return u.data.Locations }

// Source implements Unit.
func (u *DocUnit) Source() models.MultiString { return models.MultiString(u.data.Source) }

// Target implements Unit.
func (u *DocUnit) Target() models.MultiString { return models.MultiString(u.data.Target) }

// Notes implements Unit.
func (u *DocUnit) Notes(origin string) string {
	switch origin {
	case NoteDeveloper:
		return u.data.DeveloperComment
	case NoteTranslator:
		return u.data.TranslatorComment
	}
	return ""
}

// IsObsolete implements Unit.
func (u *DocUnit) IsObsolete() bool { return u.data.Obsolete }

// IsFuzzy implements Unit.
func (u *DocUnit) IsFuzzy() bool { return u.data.Fuzzy }

// IsTranslated implements Unit. A fuzzy target is not an accepted
// translation.
func (u *DocUnit) IsTranslated() bool {
	return !u.data.Fuzzy && !models.MultiString(u.data.Target).IsEmpty()
}

// IsHeader implements Unit. JSON documents carry header metadata out of
// band, so no unit is ever a header.
func (u *DocUnit) IsHeader() bool { return false }

// Parse decodes a JSON interchange document.
func Parse(data []byte) (*Document, error) {
	var raw jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &models.ParseError{Reason: "decode json document", Err: err}
	}

	doc := &Document{
		language: raw.Language,
		byID:     make(map[string]*DocUnit, len(raw.Units)),
	}
	for i, ju := range raw.Units {
		if len(ju.Source) == 0 {
			return nil, &models.ParseError{
				Reason: fmt.Sprintf("unit %d has no source", i),
				Err:    models.ErrUnitNotFound,
			}
		}
		id := ju.ID
		if id == "" {
			id = models.UnitID(models.MultiString(ju.Source), ju.Context)
		}
		unit := &DocUnit{id: id, data: ju}
		unit.data.ID = id
		doc.units = append(doc.units, unit)
		doc.byID[id] = unit
	}
	return doc, nil
}

// Language returns the document's language tag, if declared.
func (d *Document) Language() string { return d.language }

// Units implements Store.
func (d *Document) Units() []Unit {
	out := make([]Unit, len(d.units))
	for i, u := range d.units {
		out[i] = u
	}
	return out
}

// FindID implements Store.
func (d *Document) FindID(id string) (Unit, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// Marshal encodes the document back to its wire form.
func (d *Document) Marshal() ([]byte, error) {
	raw := jsonDocument{Language: d.language, Units: make([]jsonUnit, len(d.units))}
	for i, u := range d.units {
		raw.Units[i] = u.data
	}
	return json.MarshalIndent(raw, "", "  ")
}

// FromDBUnits builds a document from live database units, preserving index
// order. Obsolete units are skipped, matching what a file serializer writes.
func FromDBUnits(language string, units []*models.Unit) *Document {
	doc := &Document{language: language, byID: make(map[string]*DocUnit, len(units))}
	for _, u := range units {
		if u.IsObsolete() {
			continue
		}
		du := &DocUnit{
			id: u.UnitID,
			data: jsonUnit{
				ID:                u.UnitID,
				Source:            u.Source,
				Target:            u.Target,
				Context:           u.Context,
				Locations:         append([]string(nil), u.Locations...),
				DeveloperComment:  u.DeveloperComment,
				TranslatorComment: u.TranslatorComment,
				Fuzzy:             u.IsFuzzy(),
			},
		}
		doc.units = append(doc.units, du)
		doc.byID[du.id] = du
	}
	return doc
}
