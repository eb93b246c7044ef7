// Package config loads orchestrator settings from a file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	LLM            LLM           `mapstructure:"llm"`
	ServiceAccount string        `mapstructure:"service_account"`
	CompaniesDir   string        `mapstructure:"companies_dir"`
	SitesFile      string        `mapstructure:"sites_file"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	DoneStatus     string        `mapstructure:"done_status"`
	PendingMarker  string        `mapstructure:"pending_marker"`
	GrowthMarker   string        `mapstructure:"growth_marker"`
	Redis          Redis         `mapstructure:"redis"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	OutputDir      string        `mapstructure:"output_dir"`
	Tenants        []Tenant      `mapstructure:"tenants"`
}

// LLM selects the generation backend. APIKeys feed the credential pool.
type LLM struct {
	Provider   string   `mapstructure:"provider"`
	Model      string   `mapstructure:"model"`
	ImageModel string   `mapstructure:"image_model"`
	BaseURL    string   `mapstructure:"base_url"`
	APIKeys    []string `mapstructure:"-"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// Tenant is one site with its own worksheet, knowledge base and CMS.
type Tenant struct {
	CompanyID            string   `mapstructure:"company_id" json:"company_id"`
	SiteName             string   `mapstructure:"site_name" json:"site_name"`
	SpreadsheetID        string   `mapstructure:"spreadsheet_id" json:"spreadsheet_id"`
	WordPressURL         string   `mapstructure:"wordpress_url" json:"wordpress_url"`
	WordPressUsername    string   `mapstructure:"wordpress_username" json:"wordpress_username"`
	WordPressAppPassword string   `mapstructure:"wordpress_app_password" json:"wordpress_app_password"`
	PersonaPrompt        string   `mapstructure:"persona_prompt" json:"persona_prompt"`
	CTAHTML              string   `mapstructure:"cta_html" json:"cta_html"`
	KnowledgeFilters     []string `mapstructure:"knowledge_filters" json:"knowledge_filters"`
	AssetPoolDir         string   `mapstructure:"asset_pool_dir" json:"asset_pool_dir"`
	PostStatus           string   `mapstructure:"post_status" json:"post_status"`
}

// KnowledgeDir is the tenant's knowledge-base location under companiesDir.
func (t Tenant) KnowledgeDir(companiesDir string) string {
	return filepath.Join(companiesDir, t.CompanyID, "knowledge_base")
}

// Name is the display name, falling back to the company id.
func (t Tenant) Name() string {
	if t.SiteName != "" {
		return t.SiteName
	}
	return t.CompanyID
}

// Every key gets a default so AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.image_model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("sites_file", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("service_account", "config/service_account.json")
	v.SetDefault("companies_dir", "config/companies")
	v.SetDefault("stage_timeout", 5*time.Minute)
	v.SetDefault("done_status", "Done")
	v.SetDefault("pending_marker", "Pendente")
	v.SetDefault("growth_marker", "Sugestão IA")
	v.SetDefault("redis.lease_ttl", 2*time.Hour)
	v.SetDefault("output_dir", "output")
}

// Load reads configuration from path (yaml or json) and the environment.
// A missing file is not an error: everything can come from SEO_* variables.
// Credentials come from GOOGLE_API_KEYS (comma separated) or llm.api_keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_keys", "GOOGLE_API_KEYS", "SEO_LLM_API_KEYS"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.APIKeys = splitKeys(v.Get("llm.api_keys"))

	if len(cfg.Tenants) == 0 && cfg.SitesFile != "" {
		tenants, err := LoadSites(cfg.SitesFile)
		if err != nil {
			return nil, err
		}
		cfg.Tenants = tenants
	}
	for i := range cfg.Tenants {
		if cfg.Tenants[i].PostStatus == "" {
			cfg.Tenants[i].PostStatus = "publish"
		}
	}
	return &cfg, nil
}

// LoadSites reads a JSON array of tenants.
func LoadSites(path string) ([]Tenant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var tenants []Tenant
	if err := json.Unmarshal(data, &tenants); err != nil {
		return nil, fmt.Errorf("decode sites file %s: %w", path, err)
	}
	return tenants, nil
}

func splitKeys(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	var keys []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// Validate reports settings a run cannot start without.
func (c *Config) Validate() error {
	if c.LLM.Provider != "mock" && len(c.LLM.APIKeys) == 0 {
		return errors.New("no API keys: set GOOGLE_API_KEYS or llm.api_keys")
	}
	if len(c.Tenants) == 0 {
		return errors.New("no tenants configured")
	}
	seen := map[string]bool{}
	for i, t := range c.Tenants {
		if t.CompanyID == "" {
			return fmt.Errorf("tenant %d: company_id required", i)
		}
		if seen[t.CompanyID] {
			return fmt.Errorf("tenant %s: duplicate company_id", t.CompanyID)
		}
		seen[t.CompanyID] = true
	}
	if c.StageTimeout <= 0 {
		return errors.New("stage_timeout must be positive")
	}
	return nil
}
