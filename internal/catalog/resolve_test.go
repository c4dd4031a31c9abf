package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(key, name string) Entry {
	return Entry{ID: uuid.New(), NaturalKey: key, DisplayName: name}
}

func TestMatchExactKey(t *testing.T) {
	entries := []Entry{
		entry("TAL980305XY1", "Talleres del Norte SA"),
		entry("GAS010101BB2", "Gasolinera La Central"),
	}

	got, ok := Match(entries, "TAL980305XY1")
	require.True(t, ok)
	assert.Equal(t, entries[0].ID, got.ID)

	// Punctuation and case in the query are ignored.
	got, ok = Match(entries, " tal-980305-xy1 ")
	require.True(t, ok)
	assert.Equal(t, entries[0].ID, got.ID)
}

func TestMatchDisplayNameSubstring(t *testing.T) {
	entries := []Entry{
		entry("ECO-102", "Kenworth T680 ECO-102"),
		entry("ECO-105", "Freightliner Cascadia ECO-105"),
	}

	got, ok := Match(entries, "cascadia")
	require.True(t, ok)
	assert.Equal(t, entries[1].ID, got.ID)
}

func TestMatchExactKeyBeatsSubstring(t *testing.T) {
	// The second entry's display name contains the query, but the first
	// entry's key matches exactly; tier one must win.
	entries := []Entry{
		entry("KW102", "Unit one"),
		entry("OTHER", "Contains kw102 in the name"),
	}

	got, ok := Match(entries, "kw-102")
	require.True(t, ok)
	assert.Equal(t, entries[0].ID, got.ID)
}

func TestMatchTieBrokenByCatalogOrder(t *testing.T) {
	entries := []Entry{
		entry("A1", "Servicio Express"),
		entry("A2", "Servicio Integral"),
	}

	got, ok := Match(entries, "servicio")
	require.True(t, ok)
	assert.Equal(t, entries[0].ID, got.ID, "first loaded wins")
}

func TestMatchMisses(t *testing.T) {
	entries := []Entry{entry("A1", "Alpha")}

	_, ok := Match(entries, "ZZZ")
	assert.False(t, ok)

	_, ok = Match(entries, "")
	assert.False(t, ok)

	_, ok = Match(nil, "anything")
	assert.False(t, ok)
}

func TestKeyUsed(t *testing.T) {
	c := &Catalog{UsedKeys: map[string]bool{"A1": true}}

	assert.True(t, c.KeyUsed("a-1"))
	assert.False(t, c.KeyUsed("A2"))
}

func TestFirstEntryPolicy(t *testing.T) {
	_, ok := FirstEntry(nil)
	assert.False(t, ok)

	entries := []Entry{entry("C1", "Mantenimiento"), entry("C2", "Combustible")}
	got, ok := FirstEntry(entries)
	require.True(t, ok)
	assert.Equal(t, entries[0].ID, got.ID)
}
