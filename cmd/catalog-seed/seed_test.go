package main

import (
	"strings"
	"testing"

	"trivia-rewards/internal/rewards"
)

const sampleSeed = `
seasons:
  - id: spring-2026
    name: Spring 2026
    starts_at: 2026-03-01T00:00:00Z
    ends_at: 2026-06-01T00:00:00Z
    grace_days: 7
items:
  - category: science
    tier: category
    attributes: {set: core, rarity: common}
    entries:
      - name: Atom
        artwork: https://cdn.example/atom.png
      - name: Comet
        attributes: {rarity: rare}
  - category: master
    tier: master_ultimate
    entries:
      - name: Polymath
`

func TestParseSeed(t *testing.T) {
	seed, err := parseSeed(strings.NewReader(sampleSeed))
	if err != nil {
		t.Fatalf("parseSeed: %v", err)
	}
	seasons := seed.seasons()
	if len(seasons) != 1 || seasons[0].ID != "spring-2026" || seasons[0].GraceDays != 7 {
		t.Fatalf("unexpected seasons: %+v", seasons)
	}
	items := seed.catalogItems()
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	atom, comet := items[0], items[1]
	if atom.Slug != "science-category-atom" || atom.ArtworkAddress != "https://cdn.example/atom.png" {
		t.Fatalf("unexpected atom: %+v", atom)
	}
	if comet.Attributes["rarity"] != "rare" || comet.Attributes["set"] != "core" {
		t.Fatalf("attribute merge failed: %v", comet.Attributes)
	}
	if items[2].Tier != rewards.TierMasterUltimate {
		t.Fatalf("unexpected tier: %s", items[2].Tier)
	}
}

func TestParseSeedRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"unknown tier":   "items:\n  - category: science\n    tier: legendary\n    entries: [{name: X}]\n",
		"missing name":   "items:\n  - category: science\n    tier: category\n    entries: [{artwork: y}]\n",
		"inverted dates": "seasons:\n  - id: s\n    starts_at: 2026-06-01T00:00:00Z\n    ends_at: 2026-03-01T00:00:00Z\n",
		"unknown field":  "items:\n  - category: science\n    tier: category\n    colour: red\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseSeed(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
