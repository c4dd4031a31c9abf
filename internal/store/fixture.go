package store

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/schema"
)

// fixture.go loads a reference catalog from a YAML file, so the CLI can
// validate files offline against a known catalog without a database.

type fixtureEntry struct {
	ID   string `yaml:"id"`
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type fixtureFile struct {
	Counterparties []fixtureEntry `yaml:"counterparties"`
	Units          []fixtureEntry `yaml:"units"`
	Personnel      []fixtureEntry `yaml:"personnel"`
	Categories     []fixtureEntry `yaml:"categories"`
	UsedKeys       []string       `yaml:"usedKeys"`
}

// LoadCatalogFixture parses a YAML catalog fixture. Entries without an
// explicit id get a generated one.
func LoadCatalogFixture(data []byte) (*catalog.Catalog, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog fixture: %w", err)
	}

	cat := &catalog.Catalog{UsedKeys: make(map[string]bool, len(f.UsedKeys))}

	var err error
	if cat.Counterparties, err = fixtureEntries(f.Counterparties); err != nil {
		return nil, fmt.Errorf("counterparties: %w", err)
	}
	if cat.Units, err = fixtureEntries(f.Units); err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	if cat.Personnel, err = fixtureEntries(f.Personnel); err != nil {
		return nil, fmt.Errorf("personnel: %w", err)
	}
	if cat.Categories, err = fixtureEntries(f.Categories); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	for _, key := range f.UsedKeys {
		cat.UsedKeys[schema.NormalizeKey(key)] = true
	}

	return cat, nil
}

func fixtureEntries(in []fixtureEntry) ([]catalog.Entry, error) {
	var out []catalog.Entry
	for _, e := range in {
		id := uuid.New()
		if e.ID != "" {
			var err error
			if id, err = uuid.Parse(e.ID); err != nil {
				return nil, fmt.Errorf("entry %q: invalid id: %w", e.Key, err)
			}
		}
		out = append(out, catalog.Entry{ID: id, NaturalKey: e.Key, DisplayName: e.Name})
	}
	return out, nil
}
