package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitID(t *testing.T) {
	id := UnitID(Single("Hello"), "")

	assert.Len(t, id, 64)
	assert.Equal(t, id, UnitID(Single("Hello"), ""), "stable across calls")
	assert.NotEqual(t, id, UnitID(Single("Hello"), "menu"), "context changes the key")
	assert.NotEqual(t, id, UnitID(Single("hello"), ""), "case sensitive")

	// Plural form boundaries must not collide with concatenation.
	assert.NotEqual(t,
		UnitID(MultiString{"ab", "c"}, ""),
		UnitID(MultiString{"a", "bc"}, ""))
	assert.NotEqual(t,
		UnitID(MultiString{"ab"}, ""),
		UnitID(MultiString{"a", "b"}, ""))
}

func TestMultiStringEqual(t *testing.T) {
	assert.True(t, Single("a").Equal(Single("a")))
	assert.False(t, Single("a").Equal(Single("b")))
	assert.False(t, MultiString{"a", "b"}.Equal(MultiString{"a"}))

	// Nil and all-empty compare equal regardless of form count.
	assert.True(t, MultiString(nil).Equal(MultiString{""}))
	assert.True(t, MultiString{""}.Equal(nil))
	assert.False(t, MultiString(nil).Equal(Single("a")))
}

func TestMultiStringIsEmpty(t *testing.T) {
	assert.True(t, MultiString(nil).IsEmpty())
	assert.True(t, MultiString{"", ""}.IsEmpty())
	assert.False(t, MultiString{"", "x"}.IsEmpty())
}

func TestUnitStateOrdering(t *testing.T) {
	// Range filters rely on obsolete sorting below every live state.
	assert.Less(t, int(Obsolete), int(Untranslated))
	assert.Less(t, int(Untranslated), int(Fuzzy))
	assert.Less(t, int(Fuzzy), int(Translated))
}

func TestResurrect(t *testing.T) {
	u := &Unit{State: Obsolete, Target: Single("Hallo")}
	u.Resurrect(false)
	assert.Equal(t, Translated, u.State)

	u = &Unit{State: Obsolete}
	u.Resurrect(false)
	assert.Equal(t, Untranslated, u.State)

	u = &Unit{State: Obsolete, Target: Single("Hallo")}
	u.Resurrect(true)
	assert.Equal(t, Fuzzy, u.State)
}

func TestUnitClone(t *testing.T) {
	u := &Unit{
		UnitID:    "a",
		Source:    Single("Hello"),
		Target:    Single("Hallo"),
		Locations: []string{"main.go:1"},
	}
	clone := u.Clone()

	clone.Target[0] = "changed"
	clone.Locations[0] = "changed"
	assert.Equal(t, "Hallo", u.Target[0])
	assert.Equal(t, "main.go:1", u.Locations[0])
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("projects/app/de.json", "de")
	assert.NoError(t, err)
	assert.Equal(t, StoreNew, store.State)
	assert.Equal(t, NoRevision, store.LastSyncRevision)
	assert.False(t, store.Synced())

	_, err = NewStore("projects/app/xx.json", "not a language tag")
	assert.Error(t, err)

	_, err = NewStore("", "de")
	assert.Error(t, err)
}
