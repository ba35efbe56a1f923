package policy

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var builtinPresets embed.FS

// Engine resolves preset names. It is immutable after construction and safe
// to share between goroutines.
type Engine struct {
	presets map[string]*Preset
}

// NewEngine loads the embedded catalog.
func NewEngine() (*Engine, error) {
	entries, err := fs.ReadDir(builtinPresets, "presets")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded presets: %w", err)
	}

	e := &Engine{presets: make(map[string]*Preset, len(entries))}
	for _, entry := range entries {
		data, err := builtinPresets.ReadFile(path.Join("presets", entry.Name()))
		if err != nil {
			return nil, err
		}
		p, err := decodePreset(data)
		if err != nil {
			return nil, fmt.Errorf("embedded preset %s: %w", entry.Name(), err)
		}
		if err := e.add(p); err != nil {
			return nil, err
		}
	}

	if _, ok := e.presets[DefaultPreset]; !ok {
		return nil, fmt.Errorf("%w: default %q missing from catalog", ErrUnknownPreset, DefaultPreset)
	}
	return e, nil
}

// MustEngine is NewEngine for callers that only use the embedded catalog,
// which is validated by tests.
func MustEngine() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) add(p *Preset) error {
	if _, exists := e.presets[p.Name]; exists {
		return fmt.Errorf("%w: preset %q is already defined", ErrInvalidPreset, p.Name)
	}
	e.presets[p.Name] = p
	return nil
}

// Resolve returns a copy of the named preset. An empty name resolves the
// default preset.
func (e *Engine) Resolve(name string) (*Preset, error) {
	if name == "" {
		name = DefaultPreset
	}
	p, ok := e.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPreset, name, e.Names())
	}
	return p.clone(), nil
}

// Names returns every preset name, sorted.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.presets))
	for n := range e.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func decodePreset(data []byte) (*Preset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Preset
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPreset)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
