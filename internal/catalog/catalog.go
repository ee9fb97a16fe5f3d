// Package catalog is the server-side profile listing: seed profiles followed
// by stored profiles in creation order.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/storage"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedEntry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Project     string   `yaml:"project"`
	Description string   `yaml:"description"`
	VideoURL    string   `yaml:"videoUrl"`
	Tags        []string `yaml:"tags"`
}

// ParseSeed decodes a YAML list of profiles. Every entry must carry an id.
func ParseSeed(data []byte) ([]profile.Record, error) {
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	out := make([]profile.Record, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if seen[e.ID] {
			return nil, fmt.Errorf("seed entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
		r, err := profile.NewRecord(profile.Draft{
			Name:        e.Name,
			Project:     e.Project,
			Description: e.Description,
			VideoURL:    e.VideoURL,
			Tags:        e.Tags,
		}, e.ID, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		r.CreatedAt = time.Time{}
		out = append(out, r)
	}
	return out, nil
}

// ParseDrafts decodes a YAML list of profiles without ids, as used for
// session-local profiles. Entries are not validated here.
func ParseDrafts(data []byte) ([]profile.Draft, error) {
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}
	out := make([]profile.Draft, 0, len(entries))
	for _, e := range entries {
		out = append(out, profile.Draft{
			Name:        e.Name,
			Project:     e.Project,
			Description: e.Description,
			VideoURL:    e.VideoURL,
			Tags:        e.Tags,
		})
	}
	return out, nil
}

// LoadSeed reads seed profiles from path, or the built-in seed when path is empty.
func LoadSeed(path string) ([]profile.Record, error) {
	if path == "" {
		return ParseSeed(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// Store is the persisted part of the catalog.
type Store interface {
	GetProfile(id string) (profile.Record, error)
	ListProfiles(limit, offset int) ([]profile.Record, error)
}

type Catalog struct {
	seed  []profile.Record
	store Store
}

// New creates a Catalog. store may be nil for a seed-only catalog.
func New(seed []profile.Record, store Store) *Catalog {
	return &Catalog{seed: seed, store: store}
}

// Profiles returns the full listing.
func (c *Catalog) Profiles() ([]profile.Record, error) {
	out := make([]profile.Record, 0, len(c.seed))
	for _, r := range c.seed {
		out = append(out, r.Clone())
	}
	if c.store == nil {
		return out, nil
	}
	stored, err := c.store.ListProfiles(0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing stored profiles: %w", err)
	}
	return append(out, stored...), nil
}

// Get finds a profile by id, seed first. Unknown ids yield storage.ErrNotFound.
func (c *Catalog) Get(id string) (profile.Record, error) {
	for _, r := range c.seed {
		if string(r.ID) == id {
			return r.Clone(), nil
		}
	}
	if c.store == nil {
		return profile.Record{}, storage.ErrNotFound
	}
	r, err := c.store.GetProfile(id)
	if errors.Is(err, storage.ErrNotFound) {
		return profile.Record{}, storage.ErrNotFound
	}
	return r, err
}

// Ideas returns every listed profile as a matchable idea, keyed by creator name.
func (c *Catalog) Ideas() ([]matcher.Idea, error) {
	rs, err := c.Profiles()
	if err != nil {
		return nil, err
	}
	ideas := make([]matcher.Idea, 0, len(rs))
	for _, r := range rs {
		ideas = append(ideas, matcher.Idea{
			Username: r.Name,
			Idea:     r.Project + ": " + r.Description,
		})
	}
	return ideas, nil
}
