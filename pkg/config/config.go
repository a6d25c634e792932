package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for codescore
type Config struct {
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Complexity ComplexityConfig `mapstructure:"complexity"`
	Security   SecurityConfig   `mapstructure:"security"`
	Gate       GateConfig       `mapstructure:"gate"`
}

// AnalysisConfig controls the stage scheduler and the style/formatting engines.
type AnalysisConfig struct {
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
	ContextLines  int           `mapstructure:"context_lines"`
	MaxLineLength int           `mapstructure:"max_line_length"`
}

// ScoringConfig holds the category weights fed to the scoring engine.
type ScoringConfig struct {
	Weights WeightsConfig `mapstructure:"weights"`
}

type WeightsConfig struct {
	Bug        float64 `mapstructure:"bug"`
	Security   float64 `mapstructure:"security"`
	Complexity float64 `mapstructure:"complexity"`
	Redundancy float64 `mapstructure:"redundancy"`
	Style      float64 `mapstructure:"style"`
}

// ComplexityConfig holds per-function thresholds.
type ComplexityConfig struct {
	MaxCyclomatic int `mapstructure:"max_cyclomatic"`
	MaxLength     int `mapstructure:"max_length"`
	MaxNesting    int `mapstructure:"max_nesting"`
}

// SecurityConfig holds settings for the external scanners.
type SecurityConfig struct {
	StaticAnalysis StaticAnalysisConfig `mapstructure:"static_analysis"`
	VulnDB         VulnDBConfig         `mapstructure:"vulndb"`
}

type StaticAnalysisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Binary  string `mapstructure:"binary"`
	Rules   string `mapstructure:"rules"`
}

type VulnDBConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	OfflineOnly   bool          `mapstructure:"offline_only"`
}

// GateConfig configures the quality gate evaluated after analysis.
type GateConfig struct {
	MinScore          float64 `mapstructure:"min_score"`
	MaxSecurityErrors int     `mapstructure:"max_security_errors"`
	PolicyFile        string  `mapstructure:"policy_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			TaskTimeout:   8 * time.Second,
			StageTimeout:  15 * time.Second,
			ContextLines:  3,
			MaxLineLength: 120,
		},
		Scoring: ScoringConfig{
			Weights: WeightsConfig{Bug: 0.3, Security: 0.35, Complexity: 0.15, Redundancy: 0.1, Style: 0.1},
		},
		Complexity: ComplexityConfig{MaxCyclomatic: 10, MaxLength: 50, MaxNesting: 4},
		Security: SecurityConfig{
			StaticAnalysis: StaticAnalysisConfig{Enabled: true, Binary: "semgrep", Rules: "auto"},
			VulnDB: VulnDBConfig{
				URL:           "https://api.osv.dev/v1/querybatch",
				Timeout:       5 * time.Second,
				RatePerSecond: 5,
				CacheTTL:      time.Hour,
			},
		},
		Gate: GateConfig{MinScore: 0.6, MaxSecurityErrors: 0},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("analysis.task_timeout", d.Analysis.TaskTimeout)
	v.SetDefault("analysis.stage_timeout", d.Analysis.StageTimeout)
	v.SetDefault("analysis.context_lines", d.Analysis.ContextLines)
	v.SetDefault("analysis.max_line_length", d.Analysis.MaxLineLength)

	v.SetDefault("scoring.weights.bug", d.Scoring.Weights.Bug)
	v.SetDefault("scoring.weights.security", d.Scoring.Weights.Security)
	v.SetDefault("scoring.weights.complexity", d.Scoring.Weights.Complexity)
	v.SetDefault("scoring.weights.redundancy", d.Scoring.Weights.Redundancy)
	v.SetDefault("scoring.weights.style", d.Scoring.Weights.Style)

	v.SetDefault("complexity.max_cyclomatic", d.Complexity.MaxCyclomatic)
	v.SetDefault("complexity.max_length", d.Complexity.MaxLength)
	v.SetDefault("complexity.max_nesting", d.Complexity.MaxNesting)

	v.SetDefault("security.static_analysis.enabled", d.Security.StaticAnalysis.Enabled)
	v.SetDefault("security.static_analysis.binary", d.Security.StaticAnalysis.Binary)
	v.SetDefault("security.static_analysis.rules", d.Security.StaticAnalysis.Rules)
	v.SetDefault("security.vulndb.url", d.Security.VulnDB.URL)
	v.SetDefault("security.vulndb.timeout", d.Security.VulnDB.Timeout)
	v.SetDefault("security.vulndb.rate_per_second", d.Security.VulnDB.RatePerSecond)
	v.SetDefault("security.vulndb.cache_ttl", d.Security.VulnDB.CacheTTL)
	v.SetDefault("security.vulndb.offline_only", d.Security.VulnDB.OfflineOnly)

	v.SetDefault("gate.min_score", d.Gate.MinScore)
	v.SetDefault("gate.max_security_errors", d.Gate.MaxSecurityErrors)
	v.SetDefault("gate.policy_file", d.Gate.PolicyFile)
}

// LoadConfig loads configuration from defaults, an optional config file and
// CODESCORE_* environment variables. When configFile is empty the standard
// search paths are used and a missing file is not an error.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("codescore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if configDir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(configDir)
		}
	}

	v.SetEnvPrefix("CODESCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Analysis.TaskTimeout <= 0 {
		return fmt.Errorf("analysis.task_timeout must be positive, got %v", c.Analysis.TaskTimeout)
	}
	if c.Analysis.StageTimeout <= 0 {
		return fmt.Errorf("analysis.stage_timeout must be positive, got %v", c.Analysis.StageTimeout)
	}
	if c.Analysis.ContextLines < 0 {
		return fmt.Errorf("analysis.context_lines must not be negative")
	}
	w := c.Scoring.Weights
	for name, val := range map[string]float64{
		"bug": w.Bug, "security": w.Security, "complexity": w.Complexity,
		"redundancy": w.Redundancy, "style": w.Style,
	} {
		if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("scoring.weights.%s must be a finite non-negative number, got %v", name, val)
		}
	}
	if c.Gate.MinScore < 0 || c.Gate.MinScore > 1 {
		return fmt.Errorf("gate.min_score must be within [0,1], got %v", c.Gate.MinScore)
	}
	return nil
}

// GetHome returns the codescore home directory
func GetHome() (string, error) {
	if home := os.Getenv("CODESCORE_HOME"); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".codescore"), nil
}

// GetConfigDir returns the user-level config directory. It is not created.
func GetConfigDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config"), nil
}
