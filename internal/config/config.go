package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Vector  VectorConfig  `mapstructure:"vector"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Secrets SecretsConfig `mapstructure:"secrets"`
}

type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	EmbedModel        string  `mapstructure:"embed_model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	TopK       int    `mapstructure:"top_k"`
}

// PathsConfig locates the run's inputs and outputs.
type PathsConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	Controls   string `mapstructure:"controls"`
	ReportPath string `mapstructure:"report_path"`
	ExportDir  string `mapstructure:"export_dir"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// SecretsConfig selects where API keys are resolved from when llm.api_key
// is not set directly.
type SecretsConfig struct {
	Backend      string `mapstructure:"backend"`
	VaultAddress string `mapstructure:"vault_address"`
	VaultToken   string `mapstructure:"vault_token"`
	VaultMount   string `mapstructure:"vault_mount"`
	VaultPath    string `mapstructure:"vault_path"`
	FilePath     string `mapstructure:"file_path"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "ollama",
			Temperature: 0.1,
		},
		Vector: VectorConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "cmmc_policies",
			TopK:       3,
		},
		Paths: PathsConfig{
			DataDir:    "data",
			Controls:   "controls/cmmc_controls.json",
			ReportPath: "output/gap_report.json",
			ExportDir:  "output",
		},
		Audit: AuditConfig{
			Enabled:    false,
			OutputPath: "stderr",
		},
		Tracing: TracingConfig{
			Environment: "development",
			SampleRate:  1.0,
		},
		Secrets: SecretsConfig{
			Backend: "env",
		},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	// Local providers run without a key; hosted ones need it.
	hosted := map[string]bool{"openai": true, "anthropic": true, "groq": true, "together": true, "deepseek": true}
	if hosted[c.LLM.Provider] && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	if c.Vector.TopK < 0 {
		warnings = append(warnings, fmt.Sprintf("vector top_k %d is negative", c.Vector.TopK))
	}

	if c.Vector.Collection == "" {
		warnings = append(warnings, "vector collection name is empty")
	}

	switch c.Secrets.Backend {
	case "", "env", "file", "vault":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown secrets backend '%s'", c.Secrets.Backend))
	}
	if c.Secrets.Backend == "vault" && c.Secrets.VaultToken == "" {
		warnings = append(warnings, "secrets backend 'vault' is configured but vault_token is empty")
	}

	return warnings
}

// Load reads configuration from file and environment. An empty path loads
// defaults plus GAPSCAN_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GAPSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key gets a default so environment overrides bind under Unmarshal.
	d := Default()
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.embed_model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("vector.host", d.Vector.Host)
	v.SetDefault("vector.port", d.Vector.Port)
	v.SetDefault("vector.collection", d.Vector.Collection)
	v.SetDefault("vector.top_k", d.Vector.TopK)
	v.SetDefault("paths.data_dir", d.Paths.DataDir)
	v.SetDefault("paths.controls", d.Paths.Controls)
	v.SetDefault("paths.report_path", d.Paths.ReportPath)
	v.SetDefault("paths.export_dir", d.Paths.ExportDir)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.output_path", d.Audit.OutputPath)
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("secrets.backend", d.Secrets.Backend)
	v.SetDefault("secrets.vault_address", "")
	v.SetDefault("secrets.vault_token", "")
	v.SetDefault("secrets.vault_mount", "")
	v.SetDefault("secrets.vault_path", "")
	v.SetDefault("secrets.file_path", "")
}
