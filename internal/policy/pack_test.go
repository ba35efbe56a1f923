package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const partnerPack = `
name: partner_portal
description: Authenticated partners
injection:
  threshold: 0.30
pii:
  per_type:
    iban: block
tools:
  dangerous_patterns: ["admin_*"]
cost:
  daily_budget: 25
`

func writePack(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPacks_NonExistentDir(t *testing.T) {
	base := MustEngine()
	result, infos, err := LoadPacks("/nonexistent/path/packs", base)
	if err != nil {
		t.Fatalf("unexpected error for non-existent dir: %v", err)
	}
	if result != base || infos != nil {
		t.Error("expected base engine unchanged")
	}
}

func TestLoadPacks_AddsPreset(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "partner.yaml", partnerPack)
	writePack(t, dir, "README.md", "not a pack")

	base := MustEngine()
	result, infos, err := LoadPacks(dir, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "partner_portal" || !infos[0].Enabled {
		t.Errorf("unexpected infos: %+v", infos)
	}

	p, err := result.Resolve("partner_portal")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.InjectionThreshold() != 0.30 {
		t.Errorf("expected 0.30, got %.2f", p.InjectionThreshold())
	}
	if _, err := base.Resolve("partner_portal"); !errors.Is(err, ErrUnknownPreset) {
		t.Error("LoadPacks must not mutate the base engine")
	}
}

func TestLoadPacks_DisabledPack(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "_partner.yaml", partnerPack)

	result, infos, err := LoadPacks(dir, MustEngine())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 || infos[0].Enabled {
		t.Errorf("expected one disabled pack, got %+v", infos)
	}
	if _, err := result.Resolve("partner_portal"); err == nil {
		t.Error("disabled pack should not be loaded")
	}
}

func TestLoadPacks_RedefinitionIsAnError(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "override.yaml", "name: public_website\ninjection: {threshold: 0.9}\n")

	if _, _, err := LoadPacks(dir, MustEngine()); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("expected ErrInvalidPreset, got %v", err)
	}
}

func TestLoadPacks_MalformedPack(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "broken.yml", "name: [unclosed\n")

	if _, _, err := LoadPacks(dir, MustEngine()); err == nil {
		t.Error("expected parse error")
	}
}
