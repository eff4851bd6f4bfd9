package fileformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openl10n/tmsync/internal/models"
)

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(`{
		"language": "de",
		"units": [
			{"id": "greeting", "source": ["Hello"], "target": ["Hallo"],
			 "locations": ["ui/main.go:10"], "developer_comment": "greeting banner"},
			{"source": ["World"], "context": "planet"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "de", doc.Language())
	units := doc.Units()
	require.Len(t, units, 2)

	first := units[0]
	assert.Equal(t, "greeting", first.ID())
	assert.Equal(t, models.Single("Hallo"), first.Target())
	assert.Equal(t, []string{"ui/main.go:10"}, first.Locations())
	assert.Equal(t, "greeting banner", first.Notes(NoteDeveloper))
	assert.Equal(t, "", first.Notes(NoteTranslator))

	// Missing id derives the content key from source and context.
	second := units[1]
	assert.Equal(t, models.UnitID(models.Single("World"), "planet"), second.ID())

	found, ok := doc.FindID("greeting")
	require.True(t, ok)
	assert.Equal(t, first, found)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	var perr *models.ParseError
	require.ErrorAs(t, err, &perr)

	_, err = Parse([]byte(`{"units": [{"target": ["Hallo"]}]}`))
	require.ErrorAs(t, err, &perr)
}

func TestStateOf(t *testing.T) {
	doc, err := Parse([]byte(`{
		"units": [
			{"id": "a", "source": ["s"], "target": ["t"]},
			{"id": "b", "source": ["s"], "target": ["t"], "fuzzy": true},
			{"id": "c", "source": ["s"]},
			{"id": "d", "source": ["s"], "target": ["t"], "obsolete": true}
		]
	}`))
	require.NoError(t, err)

	units := doc.Units()
	assert.Equal(t, models.Translated, StateOf(units[0]))
	assert.Equal(t, models.Fuzzy, StateOf(units[1]))
	assert.Equal(t, models.Untranslated, StateOf(units[2]))
	assert.Equal(t, models.Obsolete, StateOf(units[3]))
}

func TestMarshalRoundTrip(t *testing.T) {
	input := `{
		"language": "de",
		"units": [
			{"id": "a", "source": ["Hello"], "target": ["Hallo"]},
			{"id": "b", "source": ["%d file", "%d files"],
			 "target": ["%d Datei", "%d Dateien"], "fuzzy": true}
		]
	}`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)

	data, err := doc.Marshal()
	require.NoError(t, err)

	reparsed, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, reparsed.Units(), 2)
	assert.Equal(t, doc.Language(), reparsed.Language())

	for i, unit := range doc.Units() {
		got := reparsed.Units()[i]
		assert.Equal(t, unit.ID(), got.ID())
		assert.Equal(t, unit.Source(), got.Source())
		assert.Equal(t, unit.Target(), got.Target())
		assert.Equal(t, unit.IsFuzzy(), got.IsFuzzy())
	}
}

func TestFromDBUnits(t *testing.T) {
	units := []*models.Unit{
		{UnitID: "a", Index: 1, Source: models.Single("Hello"),
			Target: models.Single("Hallo"), State: models.Translated},
		{UnitID: "gone", Index: 2, Source: models.Single("Old"),
			State: models.Obsolete},
		{UnitID: "b", Index: 3, Source: models.Single("World"),
			Target: models.Single("Welt"), State: models.Fuzzy},
	}

	doc := FromDBUnits("de", units)

	got := doc.Units()
	require.Len(t, got, 2, "obsolete units are not serialized")
	assert.Equal(t, "a", got[0].ID())
	assert.Equal(t, "b", got[1].ID())
	assert.True(t, got[1].IsFuzzy())
	assert.False(t, got[1].IsTranslated())

	_, ok := doc.FindID("gone")
	assert.False(t, ok)
}
