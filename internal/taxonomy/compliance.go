package taxonomy

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComplianceStandard defines an industry standard (e.g., OWASP LLM Top 10).
type ComplianceStandard struct {
	ID      string         `yaml:"id" json:"id"`
	Name    string         `yaml:"name" json:"name"`
	Version string         `yaml:"version" json:"version"`
	URL     string         `yaml:"url" json:"url"`
	Items   []StandardItem `yaml:"items" json:"items"`
}

// StandardItem is a single item within a compliance standard.
type StandardItem struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url,omitempty"`
}

func (s ComplianceStandard) hasItem(id string) bool {
	for _, it := range s.Items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// ComplianceIndex maps standard items to the violation types that reference
// them.
type ComplianceIndex struct {
	StandardID string
	Standard   ComplianceStandard
	Mappings   map[string][]string // item ID → []violation type
}

// loadStandards reads every standard in dir. Files prefixed with an
// underscore are drafts and skipped.
func loadStandards(fsys fs.FS, dir string) (map[string]ComplianceStandard, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading standards: %w", err)
	}

	standards := make(map[string]ComplianceStandard, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var std ComplianceStandard
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&std); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		if std.ID == "" {
			return nil, fmt.Errorf("standard %s has no id", name)
		}
		standards[std.ID] = std
	}
	return standards, nil
}

// BuildComplianceIndex builds the reverse index for one standard.
func (c *Catalog) BuildComplianceIndex(standardID string) (*ComplianceIndex, error) {
	std, ok := c.Standards[standardID]
	if !ok {
		return nil, fmt.Errorf("unknown standard %q", standardID)
	}
	idx := &ComplianceIndex{
		StandardID: standardID,
		Standard:   std,
		Mappings:   make(map[string][]string),
	}
	for _, e := range c.Entries {
		for _, item := range e.Compliance[standardID] {
			idx.Mappings[item] = append(idx.Mappings[item], e.Type)
		}
	}
	for item := range idx.Mappings {
		sort.Strings(idx.Mappings[item])
	}
	return idx, nil
}

// Uncovered returns the standard's items that no violation type maps to.
func (idx *ComplianceIndex) Uncovered() []StandardItem {
	var out []StandardItem
	for _, it := range idx.Standard.Items {
		if len(idx.Mappings[it.ID]) == 0 {
			out = append(out, it)
		}
	}
	return out
}
