package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profile.yaml
var defaultProfile []byte

// Profile describes the tracker conventions the analysis relies on.
type Profile struct {
	Hierarchy struct {
		DefaultLinks []string            `yaml:"default_links"`
		ByType       map[string][]string `yaml:"by_type"`
	} `yaml:"hierarchy"`

	StoryTypes        []string `yaml:"story_types"`
	EpicTypes         []string `yaml:"epic_types"`
	BugTypes          []string `yaml:"bug_types"`
	CompletedStatuses []string `yaml:"completed_statuses"`
	CodingStatuses    []string `yaml:"coding_statuses"`
	TeamField         string   `yaml:"team_field"`

	// Fields maps raw changelog field names to tracked canonical names.
	Fields map[string]string `yaml:"fields"`
	// ProjectNames maps project keys to display names.
	ProjectNames map[string]string `yaml:"project_names"`

	VersionAnchor VersionAnchor `yaml:"version_anchor"`

	EnableDynamics bool   `yaml:"enable_dynamics"`
	EnableForecast bool   `yaml:"enable_forecast"`
	Timezone       string `yaml:"timezone"`
}

// VersionAnchor pins program increment numbering to calendar quarters.
type VersionAnchor struct {
	PI         int `yaml:"pi"`
	Year       int `yaml:"year"`
	Quarter    int `yaml:"quarter"`
	PIsPerYear int `yaml:"pis_per_year"`
}

// LoadProfile returns the embedded default profile overlaid with the file at path, if any.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(defaultProfile, &p); err != nil {
		return nil, fmt.Errorf("parse default profile: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", path, err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the fields the analyzers cannot do without.
func (p *Profile) Validate() error {
	if len(p.StoryTypes) == 0 {
		return fmt.Errorf("profile: story_types must not be empty")
	}
	if len(p.CompletedStatuses) == 0 {
		return fmt.Errorf("profile: completed_statuses must not be empty")
	}
	if p.VersionAnchor.PIsPerYear <= 0 {
		return fmt.Errorf("profile: version_anchor.pis_per_year must be positive")
	}
	if p.VersionAnchor.Quarter < 1 || p.VersionAnchor.Quarter > 4 {
		return fmt.Errorf("profile: version_anchor.quarter must be 1-4")
	}
	if _, err := p.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the time zone used for day boundaries.
func (p *Profile) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("profile: timezone: %w", err)
	}
	return loc, nil
}
