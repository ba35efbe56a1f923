package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PackInfo is a summary of a pack file for listing.
type PackInfo struct {
	Name        string
	Description string
	Enabled     bool
	Path        string
}

// LoadPacks reads every .yaml file in packsDir and returns a new engine with
// the base presets plus the pack presets. Files whose name starts with an
// underscore are listed but not loaded. A pack that fails to parse or
// redefines an existing preset is a configuration error.
func LoadPacks(packsDir string, base *Engine) (*Engine, []PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}

	result := &Engine{presets: make(map[string]*Preset, len(base.presets)+len(entries))}
	for name, p := range base.presets {
		result.presets[name] = p
	}

	var infos []PackInfo
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		info := PackInfo{Name: baseName, Enabled: !strings.HasPrefix(baseName, "_"), Path: path}

		if !info.Enabled {
			infos = append(infos, info)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		p, err := decodePreset(data)
		if err != nil {
			return nil, nil, fmt.Errorf("pack %s: %w", path, err)
		}
		if err := result.add(p); err != nil {
			return nil, nil, fmt.Errorf("pack %s: %w", path, err)
		}

		info.Name = p.Name
		info.Description = p.Description
		infos = append(infos, info)
	}

	return result, infos, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
