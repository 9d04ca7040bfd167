// Package config loads and validates the service configuration.
//
// Values come from an optional YAML file, then environment overrides. The
// result is validated once; an invalid configuration is a startup failure.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"urgency_detector/internal/apperr"
)

const (
	SourcePostgres = "postgres"
	SourceFile     = "file"

	// DeploymentProduction hides the /tools routes.
	DeploymentProduction = "PRODUCTION"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Rules         RulesConfig         `yaml:"rules"`
	Preprocessing PreprocessingConfig `yaml:"preprocessing"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Address            string  `yaml:"address" validate:"required"`
	InboundToken       string  `yaml:"inbound_token"`
	DeploymentEnv      string  `yaml:"deployment_env"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"gte=0"`
}

type RulesConfig struct {
	Source                 string `yaml:"source" validate:"oneof=postgres file"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds" validate:"gte=0"`
	FetchTimeoutSeconds    int    `yaml:"fetch_timeout_seconds" validate:"gt=0"`
	PostgresDSN            string `yaml:"postgres_dsn" validate:"required_if=Source postgres"`
	FilePath               string `yaml:"file_path" validate:"required_if=Source file"`
	WatchFile              bool   `yaml:"watch_file"`
}

// PreprocessingConfig is the text normalizer configuration.
type PreprocessingConfig struct {
	NgramMin                 int               `yaml:"ngram_min" validate:"gte=1"`
	NgramMax                 int               `yaml:"ngram_max" validate:"gte=1"`
	MinDashedWordsToParseURL int               `yaml:"min_dashed_words_to_parse_url" validate:"gte=1"`
	ReincludedStopWords      []string          `yaml:"reincluded_stop_words"`
	CustomSpellCheckList     []string          `yaml:"custom_spell_check_list"`
	CustomSpellCorrectMap    map[string]string `yaml:"custom_spell_correct_map"`
	PriorityWords            []string          `yaml:"priority_words"`
	DictionaryPath           string            `yaml:"dictionary_path"`
	MaxEditDistance          int               `yaml:"max_edit_distance" validate:"gte=0,lte=3"`
}

type StorageConfig struct {
	Path     string `yaml:"path" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// RefreshInterval is zero when periodic refresh is disabled.
func (r RulesConfig) RefreshInterval() time.Duration {
	if r.RefreshIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(r.RefreshIntervalSeconds) * time.Second
}

func (r RulesConfig) FetchTimeout() time.Duration {
	return time.Duration(r.FetchTimeoutSeconds) * time.Second
}

// ToolsEnabled reports whether the rule authoring tools are served.
func (s ServerConfig) ToolsEnabled() bool {
	return s.DeploymentEnv != DeploymentProduction
}

// Default returns a development configuration backed by a local rules file
// and an in-memory record store.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address: ":8050",
		},
		Rules: RulesConfig{
			Source:                 SourceFile,
			RefreshIntervalSeconds: 60,
			FetchTimeoutSeconds:    5,
			FilePath:               "rules.yaml",
		},
		Preprocessing: PreprocessingConfig{
			NgramMin:                 1,
			NgramMax:                 2,
			MinDashedWordsToParseURL: 4,
			ReincludedStopWords:      []string{"not", "no", "nor"},
			MaxEditDistance:          2,
		},
		Storage: StorageConfig{
			InMemory: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, apperr.Wrap(err, apperr.KindConfiguration, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, apperr.Wrap(err, apperr.KindConfiguration, "parse config")
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Server.Address = ":" + v
	}
	if v, ok := lookup("UD_INBOUND_CHECK_TOKEN"); ok {
		cfg.Server.InboundToken = v
	}
	if v, ok := lookup("DEPLOYMENT_ENV"); ok {
		cfg.Server.DeploymentEnv = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Rules.PostgresDSN = v
		cfg.Rules.Source = SourcePostgres
	}
	if v, ok := lookup("RULE_REFRESH_FREQ"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return apperr.Wrap(err, apperr.KindConfiguration, "RULE_REFRESH_FREQ")
		}
		cfg.Rules.RefreshIntervalSeconds = n
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-field n-gram bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return apperr.New(apperr.KindConfiguration, "invalid config: "+strings.Join(msgs, "; "))
		}
		return apperr.Wrap(err, apperr.KindConfiguration, "invalid config")
	}
	p := c.Preprocessing
	if p.NgramMin > p.NgramMax {
		return apperr.New(apperr.KindConfiguration,
			fmt.Sprintf("invalid config: ngram_min (%d) > ngram_max (%d)", p.NgramMin, p.NgramMax))
	}
	return nil
}
