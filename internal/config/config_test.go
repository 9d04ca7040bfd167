package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urgency_detector/internal/apperr"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Minute, cfg.Rules.RefreshInterval())
	assert.True(t, cfg.Server.ToolsEnabled())
}

func TestValidateRejectsInvertedNgramBounds(t *testing.T) {
	cfg := Default()
	cfg.Preprocessing.NgramMin = 3
	cfg.Preprocessing.NgramMax = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Contains(t, err.Error(), "ngram_min (3) > ngram_max (2)")
}

func TestValidateFieldConstraints(t *testing.T) {
	cases := map[string]func(*Config){
		"ngram min zero":       func(c *Config) { c.Preprocessing.NgramMin = 0 },
		"dashed words zero":    func(c *Config) { c.Preprocessing.MinDashedWordsToParseURL = 0 },
		"negative refresh":     func(c *Config) { c.Rules.RefreshIntervalSeconds = -1 },
		"zero fetch timeout":   func(c *Config) { c.Rules.FetchTimeoutSeconds = 0 },
		"unknown source":       func(c *Config) { c.Rules.Source = "mysql" },
		"postgres without dsn": func(c *Config) { c.Rules.Source = SourcePostgres },
		"disk store no path":   func(c *Config) { c.Storage.InMemory = false },
		"bad log level":        func(c *Config) { c.Logging.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		})
	}
}

func TestRefreshIntervalDisabled(t *testing.T) {
	r := RulesConfig{RefreshIntervalSeconds: 0}
	assert.Zero(t, r.RefreshInterval())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  source: file
  file_path: /tmp/rules.yaml
  refresh_interval_seconds: 30
preprocessing:
  ngram_min: 1
  ngram_max: 3
  min_dashed_words_to_parse_url: 5
  reincluded_stop_words: [not]
  custom_spell_correct_map:
    pregnat: pregnant
`), 0o600))

	t.Setenv("PORT", "9000")
	t.Setenv("UD_INBOUND_CHECK_TOKEN", "secret-token")
	t.Setenv("RULE_REFRESH_FREQ", "0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "secret-token", cfg.Server.InboundToken)
	assert.Zero(t, cfg.Rules.RefreshInterval())
	assert.Equal(t, 3, cfg.Preprocessing.NgramMax)
	assert.Equal(t, 5, cfg.Preprocessing.MinDashedWordsToParseURL)
	assert.Equal(t, []string{"not"}, cfg.Preprocessing.ReincludedStopWords)
	assert.Equal(t, "pregnant", cfg.Preprocessing.CustomSpellCorrectMap["pregnat"])
}

func TestApplyEnvBadRefresh(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		if k == "RULE_REFRESH_FREQ" {
			return "often", true
		}
		return "", false
	})
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestApplyEnvDatabaseURLSelectsPostgres(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(&cfg, func(k string) (string, bool) {
		if k == "DATABASE_URL" {
			return "postgres://u:p@localhost:5432/ud", true
		}
		return "", false
	}))
	assert.Equal(t, SourcePostgres, cfg.Rules.Source)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestProductionHidesTools(t *testing.T) {
	s := ServerConfig{DeploymentEnv: DeploymentProduction}
	assert.False(t, s.ToolsEnabled())
}
