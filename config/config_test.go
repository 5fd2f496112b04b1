package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ChannelProviderProof, cfg.Orchestrator.ChannelProvider)
	assert.Equal(t, 5*time.Minute, cfg.Orchestrator.LeaseTTL)
	assert.Equal(t, 20*time.Second, cfg.Orchestrator.TickTimeout)
	assert.Equal(t, "@daily", cfg.Orchestrator.DecisionSchedule)
	assert.Empty(t, cfg.Operators)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	env := "ORCH_BATCH_SIZE=7\nORCH_OWNER_ID=worker-7\nSERVER_PORT=9090\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	// Variables already exported win over the file
	t.Setenv("SERVER_PORT", "9191")
	t.Cleanup(func() {
		os.Unsetenv("ORCH_BATCH_SIZE")
		os.Unsetenv("ORCH_OWNER_ID")
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Orchestrator.BatchSize)
	assert.Equal(t, "worker-7", cfg.Orchestrator.OwnerID)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadConfigRejectsBadOperators(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPERATORS", "alice")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "must be user:bcrypt-hash")
}

func TestParseOperators(t *testing.T) {
	ops, err := parseOperators(" alice:$2a$10$abc , bob:$2a$10$def,")
	require.NoError(t, err)
	assert.Equal(t, []OperatorConfig{
		{Username: "alice", PasswordHash: "$2a$10$abc"},
		{Username: "bob", PasswordHash: "$2a$10$def"},
	}, ops)

	ops, err = parseOperators("")
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "outreach", User: "postgres"},
		Server:   ServerConfig{Port: 8080},
		Orchestrator: OrchestratorConfig{
			ChannelProvider:        ChannelProviderProof,
			TickInterval:           time.Minute,
			LeaseTTL:               5 * time.Minute,
			TickTimeout:            20 * time.Second,
			SendTimeout:            10 * time.Second,
			BatchSize:              25,
			RetryBaseDelay:         5 * time.Minute,
			MaxRetries:             3,
			MaxConcurrentCampaigns: 4,
			MinSampleSize:          50,
			ReplyRateThreshold:     0.01,
			MaxBounceRate:          0.1,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "tick timeout must fit in the lease",
			mutate:  func(c *Config) { c.Orchestrator.TickTimeout = c.Orchestrator.LeaseTTL },
			wantErr: []string{"ORCH_TICK_TIMEOUT"},
		},
		{
			name: "sms channel needs provider settings",
			mutate: func(c *Config) {
				c.Orchestrator.ChannelProvider = ChannelProviderSMS
			},
			wantErr: []string{"SMS_PROVIDER_DOMAIN", "SMS_API_KEY", "SMS_SOURCE_NUMBER"},
		},
		{
			name:    "email channel needs a sender",
			mutate:  func(c *Config) { c.Orchestrator.ChannelProvider = ChannelProviderEmail },
			wantErr: []string{"SES_FROM_EMAIL"},
		},
		{
			name:    "unknown channel",
			mutate:  func(c *Config) { c.Orchestrator.ChannelProvider = "pigeon" },
			wantErr: []string{"ORCH_CHANNEL_PROVIDER"},
		},
		{
			name: "operators need a strong secret",
			mutate: func(c *Config) {
				c.Operators = []OperatorConfig{{Username: "alice", PasswordHash: "x"}}
				c.JWT = JWTConfig{SecretKey: "short", AccessTokenTTL: time.Hour}
			},
			wantErr: []string{"JWT_SECRET_KEY"},
		},
		{
			name: "every problem is reported",
			mutate: func(c *Config) {
				c.Database.Host = ""
				c.Orchestrator.BatchSize = 0
				c.Orchestrator.ReplyRateThreshold = 2
			},
			wantErr: []string{"DB_HOST", "ORCH_BATCH_SIZE", "ORCH_REPLY_RATE_THRESHOLD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestSMSConfigEndpoint(t *testing.T) {
	assert.Equal(t, "https://sms.example.com/api/v3.0.1/send", SMSConfig{ProviderDomain: "sms.example.com"}.Endpoint())
	assert.Equal(t, "http://127.0.0.1:9000/api/v3.0.1/send", SMSConfig{ProviderDomain: "http://127.0.0.1:9000/"}.Endpoint())
}

const campaignYAML = `
campaigns:
  - name: spring-launch
    channel: email
    sender: team@orochi.io
    cooldown: 72h
    max_retries: 2
    daily_quota: 200
    opt_out_footer: "Reply STOP to opt out"
    steps:
      - key: intro
        subject: "Hi {{.FirstName}}"
        body: "Saw {{.Company}}"
      - key: nudge
        body: "Bumping this"
        wait_hours: 96
  - name: sms-pilot
    channel: sms
    paused: true
    steps:
      - key: only
        body: "Hello"
`

func TestParseCampaigns(t *testing.T) {
	file, err := ParseCampaigns(strings.NewReader(campaignYAML))
	require.NoError(t, err)
	require.Len(t, file.Campaigns, 2)

	spring := file.Campaigns[0]
	assert.Equal(t, 72*time.Hour, spring.Cooldown)
	assert.Equal(t, 200, spring.DailyQuota)
	assert.Equal(t, 96, spring.Steps[1].WaitHours)
	assert.True(t, file.Campaigns[1].Paused)

	model := spring.Model()
	assert.Equal(t, models.ChannelEmail, model.Channel)
	assert.Equal(t, int64(72*3600), model.CooldownSeconds)
	assert.Equal(t, 2, model.MaxRetries)
	assert.Equal(t, models.CampaignStatusActive, model.Status)
	assert.Len(t, model.Steps, 2)
}

func TestParseCampaignsRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "campaigns: []", "defines no campaigns"},
		{"unknown field", "campaigns:\n  - name: a\n    channel: proof\n    colour: red\n    steps: [{key: a, body: b}]", "colour"},
		{"unknown channel", "campaigns:\n  - name: a\n    channel: fax\n    steps: [{key: a, body: b}]", "unknown channel"},
		{"no steps", "campaigns:\n  - name: a\n    channel: proof", "at least one step"},
		{"duplicate name", "campaigns:\n  - {name: a, channel: proof, steps: [{key: a, body: b}]}\n  - {name: a, channel: proof, steps: [{key: a, body: b}]}", "defined twice"},
		{"duplicate step key", "campaigns:\n  - name: a\n    channel: proof\n    steps: [{key: a, body: b}, {key: a, body: c}]", "used twice"},
		{"negative quota", "campaigns:\n  - name: a\n    channel: proof\n    daily_quota: -1\n    steps: [{key: a, body: b}]", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCampaigns(strings.NewReader(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadCampaignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaigns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(campaignYAML), 0o600))

	file, err := LoadCampaignFile(path)
	require.NoError(t, err)
	assert.Len(t, file.Campaigns, 2)

	_, err = LoadCampaignFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open campaign file")
}
