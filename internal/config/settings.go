package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Settings holds all configuration options for a download run.
//
// Values come from three layers, strongest first: command-line flags,
// an optional YAML settings file, and the defaults below.
type Settings struct {
	// BaseURL is the AIR API root, e.g. "https://air.example.edu/api/".
	BaseURL string `yaml:"url"`

	// CredPath points at a KEY=VALUE credentials file holding
	// AIR_USERNAME and AIR_PASSWORD. When empty, the same two
	// environment variables are used instead.
	CredPath string `yaml:"cred_path"`

	// Output is the destination path or directory for archives.
	Output string `yaml:"output"`

	// ProjectID is the numeric AIR project to download under.
	ProjectID int `yaml:"project"`

	// ProfileID is the numeric anonymization profile applied when the
	// server packages the archive.
	ProfileID int `yaml:"profile"`

	// SeriesInclusion is a comma-separated list of case-insensitive
	// substring patterns; only series whose description matches at
	// least one pattern are packaged. Empty means all series.
	SeriesInclusion string `yaml:"series_inclusion"`

	// ModalityInclusion filters matched exams by modality, same
	// pattern syntax as SeriesInclusion.
	ModalityInclusion string `yaml:"modality_inclusion"`

	// DescriptionInclusion filters matched exams by exam description.
	DescriptionInclusion string `yaml:"description_inclusion"`

	// AccessionsOnly switches to reporting mode: matched exams are
	// appended to accessions.csv and nothing is downloaded.
	AccessionsOnly bool `yaml:"accessions_only"`

	// Parallel is the number of exams downloaded concurrently.
	Parallel int `yaml:"parallel"`

	// PollTimeout bounds how long to wait for the server to start
	// packaging one archive.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// Verbose enables verbose progress output.
	Verbose bool `yaml:"verbose"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Output:      ".",
		ProjectID:   -1,
		ProfileID:   -1,
		Parallel:    1,
		PollTimeout: 15 * time.Minute,
	}
}

// Load reads settings from a YAML file, applying defaults for any keys
// the file omits. A missing file yields plain defaults.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	return settings, nil
}

// Validate checks settings that must be present before any network call.
func (s *Settings) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("AIR API URL is required (flag --url or settings file)")
	}
	if s.Parallel < 1 {
		s.Parallel = 1
	}
	if s.PollTimeout <= 0 {
		s.PollTimeout = 15 * time.Minute
	}
	return nil
}
