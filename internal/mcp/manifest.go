package mcp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PinManifest hashes the sorted, de-duplicated tool names of a server.
// The result depends only on the set of names.
func PinManifest(serverID string, toolNames []string) ToolManifestPin {
	known := sortedUnique(toolNames)
	sum := sha256.Sum256([]byte(strings.Join(known, "\n")))
	return ToolManifestPin{
		ServerID:   serverID,
		ToolsHash:  hex.EncodeToString(sum[:]),
		ToolCount:  len(known),
		KnownTools: known,
	}
}

// VerifyManifest compares live tool names against a pin.
func VerifyManifest(pin ToolManifestPin, liveToolNames []string) ManifestCheck {
	live := sortedUnique(liveToolNames)
	known := make(map[string]bool, len(pin.KnownTools))
	for _, t := range pin.KnownTools {
		known[t] = true
	}
	current := make(map[string]bool, len(live))
	for _, t := range live {
		current[t] = true
	}

	check := ManifestCheck{Added: []string{}, Removed: []string{}}
	for _, t := range live {
		if !known[t] {
			check.Added = append(check.Added, t)
		}
	}
	for _, t := range pin.KnownTools {
		if !current[t] {
			check.Removed = append(check.Removed, t)
		}
	}
	sort.Strings(check.Removed)
	check.Valid = len(check.Added) == 0 && len(check.Removed) == 0
	return check
}

func sortedUnique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PinStore holds manifest pins by server id. It is safe for concurrent use.
// Pins are only replaced by an explicit Pin call.
type PinStore struct {
	mu   sync.RWMutex
	pins map[string]ToolManifestPin
	gen  uint64
}

// NewPinStore returns a store seeded with pins.
func NewPinStore(pins ...ToolManifestPin) *PinStore {
	s := &PinStore{pins: make(map[string]ToolManifestPin, len(pins))}
	for _, p := range pins {
		s.pins[p.ServerID] = p
	}
	return s
}

// Pin records or replaces the pin for pin.ServerID.
func (s *PinStore) Pin(pin ToolManifestPin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[pin.ServerID] = pin
	s.gen++
}

// Generation increases with every Pin call.
func (s *PinStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Get returns the pin for a server.
func (s *PinStore) Get(serverID string) (ToolManifestPin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pins[serverID]
	return p, ok
}

// All returns every pin ordered by server id.
func (s *PinStore) All() []ToolManifestPin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolManifestPin, 0, len(s.pins))
	for _, p := range s.pins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out
}

type pinFile struct {
	Pins []ToolManifestPin `yaml:"pins"`
}

// LoadPins reads a YAML pin file. A missing file yields no pins.
func LoadPins(path string) ([]ToolManifestPin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pins file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f pinFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse pins file %s: %w", path, err)
	}

	for _, p := range f.Pins {
		if want := PinManifest(p.ServerID, p.KnownTools); want.ToolsHash != p.ToolsHash {
			return nil, fmt.Errorf("pins file %s: hash mismatch for server %q", path, p.ServerID)
		}
	}
	return f.Pins, nil
}

// SavePins writes pins to path, creating parent directories as needed.
func SavePins(path string, pins []ToolManifestPin) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create pins directory: %w", err)
	}
	data, err := yaml.Marshal(pinFile{Pins: pins})
	if err != nil {
		return fmt.Errorf("failed to encode pins: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write pins file %s: %w", path, err)
	}
	return nil
}
