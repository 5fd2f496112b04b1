package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"gopkg.in/yaml.v3"
)

// CampaignFile is the YAML document accepted by import-campaigns
type CampaignFile struct {
	Campaigns []CampaignDefinition `yaml:"campaigns"`
}

// CampaignDefinition describes one campaign and its sequence
type CampaignDefinition struct {
	Name         string                `yaml:"name"`
	Channel      string                `yaml:"channel"`
	Sender       string                `yaml:"sender"`
	Cooldown     time.Duration         `yaml:"cooldown"`
	MaxTouches   int                   `yaml:"max_touches"`
	MaxRetries   int                   `yaml:"max_retries"`
	OptOutFooter string                `yaml:"opt_out_footer"`
	DailyQuota   int                   `yaml:"daily_quota"`
	Paused       bool                  `yaml:"paused"`
	Steps        []models.SequenceStep `yaml:"steps"`
}

// LoadCampaignFile reads and validates a campaign YAML file
func LoadCampaignFile(path string) (*CampaignFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open campaign file: %w", err)
	}
	defer f.Close()
	return ParseCampaigns(f)
}

// ParseCampaigns decodes campaign definitions, rejecting unknown fields
func ParseCampaigns(r io.Reader) (*CampaignFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read campaign file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file CampaignFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode campaign file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *CampaignFile) Validate() error {
	if len(f.Campaigns) == 0 {
		return fmt.Errorf("campaign file defines no campaigns")
	}
	seen := make(map[string]bool, len(f.Campaigns))
	for i, c := range f.Campaigns {
		if c.Name == "" {
			return fmt.Errorf("campaign #%d: name is required", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("campaign %q is defined twice", c.Name)
		}
		seen[c.Name] = true
		if !models.Channel(c.Channel).Valid() {
			return fmt.Errorf("campaign %q: unknown channel %q", c.Name, c.Channel)
		}
		if len(c.Steps) == 0 {
			return fmt.Errorf("campaign %q: at least one step is required", c.Name)
		}
		if c.Cooldown < 0 || c.MaxTouches < 0 || c.MaxRetries < 0 || c.DailyQuota < 0 {
			return fmt.Errorf("campaign %q: cooldown, max_touches, max_retries and daily_quota must not be negative", c.Name)
		}
		keys := make(map[string]bool, len(c.Steps))
		for j, s := range c.Steps {
			if s.Key == "" || s.Body == "" {
				return fmt.Errorf("campaign %q step #%d: key and body are required", c.Name, j+1)
			}
			if keys[s.Key] {
				return fmt.Errorf("campaign %q: step key %q is used twice", c.Name, s.Key)
			}
			keys[s.Key] = true
		}
	}
	return nil
}

// Model converts the definition into a campaign row
func (c CampaignDefinition) Model() *models.Campaign {
	return &models.Campaign{
		Name:            c.Name,
		Channel:         models.Channel(c.Channel),
		Sender:          c.Sender,
		Steps:           models.SequenceSteps(c.Steps),
		CooldownSeconds: int64(c.Cooldown / time.Second),
		MaxTouches:      c.MaxTouches,
		MaxRetries:      c.MaxRetries,
		OptOutFooter:    c.OptOutFooter,
		Status:          models.CampaignStatusActive,
	}
}
