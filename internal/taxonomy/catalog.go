package taxonomy

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml data/standards/*.yaml
var builtin embed.FS

// Catalog holds the violation taxonomy and the standards it maps to.
type Catalog struct {
	Categories []CategoryDef
	Entries    []Entry
	Standards  map[string]ComplianceStandard

	byType     map[string]Entry
	byCategory map[string][]Entry
	families   []Entry // entries ending in "*", longest prefix first
}

// Load parses the built-in catalog and standards.
func Load() (*Catalog, error) {
	data, err := builtin.ReadFile("data/violations.yaml")
	if err != nil {
		return nil, err
	}
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing violations.yaml: %w", err)
	}

	standards, err := loadStandards(builtin, "data/standards")
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		Categories: f.Categories,
		Standards:  standards,
		byType:     make(map[string]Entry, len(f.Entries)),
		byCategory: make(map[string][]Entry),
	}
	known := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		known[c.ID] = true
	}

	for _, e := range f.Entries {
		if err := cat.validate(e, known); err != nil {
			return nil, err
		}
		cat.Entries = append(cat.Entries, e)
		cat.byType[e.Type] = e
		cat.byCategory[e.Category] = append(cat.byCategory[e.Category], e)
		if strings.HasSuffix(e.Type, "*") {
			cat.families = append(cat.families, e)
		}
	}
	sort.Slice(cat.families, func(i, j int) bool {
		return len(cat.families[i].Type) > len(cat.families[j].Type)
	})
	return cat, nil
}

func (c *Catalog) validate(e Entry, categories map[string]bool) error {
	switch {
	case e.Type == "":
		return fmt.Errorf("taxonomy: entry %q has no type", e.Name)
	case c.byType[e.Type].Type != "":
		return fmt.Errorf("taxonomy: duplicate type %s", e.Type)
	case !categories[e.Category]:
		return fmt.Errorf("taxonomy: %s has unknown category %q", e.Type, e.Category)
	case !riskLevels[e.RiskLevel]:
		return fmt.Errorf("taxonomy: %s has invalid risk level %q", e.Type, e.RiskLevel)
	}
	for std, items := range e.Compliance {
		s, ok := c.Standards[std]
		if !ok {
			return fmt.Errorf("taxonomy: %s references unknown standard %s", e.Type, std)
		}
		for _, item := range items {
			if !s.hasItem(item) {
				return fmt.Errorf("taxonomy: %s references unknown item %s/%s", e.Type, std, item)
			}
		}
	}
	return nil
}

// Lookup finds the entry for a violation type, falling back to the longest
// matching family entry.
func (c *Catalog) Lookup(violationType string) (Entry, bool) {
	if e, ok := c.byType[violationType]; ok {
		return e, true
	}
	for _, e := range c.families {
		if strings.HasPrefix(violationType, strings.TrimSuffix(e.Type, "*")) {
			return e, true
		}
	}
	return Entry{}, false
}

// ByCategory returns the entries in a category.
func (c *Catalog) ByCategory(id string) []Entry {
	return c.byCategory[id]
}
