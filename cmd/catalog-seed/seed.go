package main

import (
	"fmt"
	"io"
	"time"

	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"gopkg.in/yaml.v3"
)

// seedFile is the catalog seed document:
//
//	seasons:
//	  - id: spring-2026
//	    name: Spring 2026
//	    starts_at: 2026-03-01T00:00:00Z
//	    ends_at: 2026-06-01T00:00:00Z
//	    grace_days: 7
//	items:
//	  - category: science
//	    tier: category
//	    attributes: {set: core}
//	    entries:
//	      - name: Atom
//	        artwork: https://cdn.example/atom.png
type seedFile struct {
	Seasons []seedSeason `yaml:"seasons"`
	Items   []seedGroup  `yaml:"items"`
}

type seedSeason struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	StartsAt  time.Time `yaml:"starts_at"`
	EndsAt    time.Time `yaml:"ends_at"`
	GraceDays int       `yaml:"grace_days"`
}

type seedGroup struct {
	Category   string         `yaml:"category"`
	Tier       rewards.Tier   `yaml:"tier"`
	Attributes map[string]any `yaml:"attributes"`
	Entries    []seedEntry    `yaml:"entries"`
}

type seedEntry struct {
	Name       string         `yaml:"name"`
	Artwork    string         `yaml:"artwork"`
	Attributes map[string]any `yaml:"attributes"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i, s := range f.Seasons {
		if s.ID == "" || !s.EndsAt.After(s.StartsAt) || s.GraceDays < 0 {
			return nil, fmt.Errorf("season %d: %w", i, rewards.ErrInvalidRequest)
		}
	}
	for i, g := range f.Items {
		if g.Category == "" || !g.Tier.Valid() {
			return nil, fmt.Errorf("item group %d (%s/%s): %w", i, g.Category, g.Tier, rewards.ErrInvalidRequest)
		}
		for j, e := range g.Entries {
			if e.Name == "" {
				return nil, fmt.Errorf("item group %d entry %d: name required: %w", i, j, rewards.ErrInvalidRequest)
			}
		}
	}
	return &f, nil
}

func (f *seedFile) seasons() []store.Season {
	out := make([]store.Season, 0, len(f.Seasons))
	for _, s := range f.Seasons {
		out = append(out, store.Season{ID: s.ID, Name: s.Name, StartsAt: s.StartsAt.UTC(), EndsAt: s.EndsAt.UTC(), GraceDays: s.GraceDays})
	}
	return out
}

// catalogItems flattens the groups; entry attributes override group attributes.
func (f *seedFile) catalogItems() []store.CatalogItem {
	var out []store.CatalogItem
	for _, g := range f.Items {
		for _, e := range g.Entries {
			attrs := make(map[string]any, len(g.Attributes)+len(e.Attributes))
			for k, v := range g.Attributes {
				attrs[k] = v
			}
			for k, v := range e.Attributes {
				attrs[k] = v
			}
			out = append(out, store.CatalogItem{
				CategoryID:     g.Category,
				Tier:           g.Tier,
				Name:           e.Name,
				Slug:           store.CatalogSlug(g.Category, g.Tier, e.Name),
				Attributes:     attrs,
				ArtworkAddress: e.Artwork,
			})
		}
	}
	return out
}
