package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// CompetitorConfig describes one competitor site and how to read its product pages
type CompetitorConfig struct {
	Domain  string `yaml:"domain" validate:"required,hostname"`
	Browser bool   `yaml:"browser,omitempty"` // Pages need a full browser engine

	// Selectors are tried in order; for prices the first one whose text parses wins
	NameSelectors  []string `yaml:"name_selectors" validate:"required,min=1,dive,required"`
	PriceSelectors []string `yaml:"price_selectors" validate:"required,min=1,dive,required"`
	WaitSelector   string   `yaml:"wait_selector,omitempty"` // Browser only: element awaited before reading

	RatePerSecond float64 `yaml:"rate_per_second,omitempty" validate:"gte=0"` // 0 = unlimited
	MaxConcurrent int     `yaml:"max_concurrent,omitempty" validate:"gte=0"`  // 0 = bounded by the pool only
	UserAgent     string  `yaml:"user_agent,omitempty"`
}

// AutomationConfig holds settings for the browser automation worker process
type AutomationConfig struct {
	StartupGrace  time.Duration `yaml:"startup_grace,omitempty"`  // Wait before the liveness check
	ResultTimeout time.Duration `yaml:"result_timeout,omitempty"` // Budget for each awaited result
	JoinGrace     time.Duration `yaml:"join_grace,omitempty"`     // Wait after the stop sentinel
	KillGrace     time.Duration `yaml:"kill_grace,omitempty"`     // Wait after SIGTERM before killing
	PageTimeout   time.Duration `yaml:"page_timeout,omitempty"`   // Wait for the product element
	WindowWidth   int           `yaml:"window_width,omitempty"`
	WindowHeight  int           `yaml:"window_height,omitempty"`
	Headless      *bool         `yaml:"headless,omitempty"`
	ExecPath      string        `yaml:"exec_path,omitempty"`      // Chrome binary override
	WorkerCommand []string      `yaml:"worker_command,omitempty"` // Overrides "<self> automation-worker"
}

// SearchConfig selects and configures the URL search collaborator
type SearchConfig struct {
	Provider string        `yaml:"provider" validate:"oneof=serper google"`
	Endpoint string        `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Results  int           `yaml:"results,omitempty" validate:"gte=0,lte=100"`
	CSEID    string        `yaml:"cse_id,omitempty"`
	APIKey   string        `yaml:"-"` // Environment only
}

// RemoteConfig selects the remote store mirrored by the local cache
type RemoteConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=sheets postgres none"`
	SpreadsheetID   string        `yaml:"spreadsheet_id,omitempty"`
	CredentialsFile string        `yaml:"credentials_file,omitempty"`
	Endpoint        string        `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	PostgresDSN     string        `yaml:"-"` // Environment only
	Timeout         time.Duration `yaml:"timeout,omitempty"`
}

// CatalogConfig describes the merchant catalog file layout
type CatalogConfig struct {
	NameColumn  string `yaml:"name_column,omitempty"`
	PriceColumn string `yaml:"price_column,omitempty"`
	Delimiter   string `yaml:"delimiter,omitempty" validate:"omitempty,len=1"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	Workers             int                `yaml:"workers"`
	SimilarityThreshold float64            `yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	StateDir            string             `yaml:"state_dir"`
	OutputDir           string             `yaml:"output_dir"`
	Export              string             `yaml:"export,omitempty" validate:"oneof=csv xlsx none"`
	DefaultUserAgent    string             `yaml:"default_user_agent,omitempty"`
	MetricsAddr         string             `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	HTTPClientSettings  HTTPClientConfig   `yaml:"http_client_settings,omitempty"`
	Competitors         []CompetitorConfig `yaml:"competitors" validate:"dive"`
	Automation          AutomationConfig   `yaml:"automation,omitempty"`
	Search              SearchConfig       `yaml:"search,omitempty"`
	Remote              RemoteConfig       `yaml:"remote,omitempty"`
	Catalog             CatalogConfig      `yaml:"catalog,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Competitor returns the competitor configured for domain (case-insensitive)
func (c *AppConfig) Competitor(domain string) (CompetitorConfig, bool) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, comp := range c.Competitors {
		if strings.ToLower(comp.Domain) == domain {
			return comp, true
		}
	}
	return CompetitorConfig{}, false
}

// BrowserCompetitor returns the competitor whose pages need the automation worker, if any
func (c *AppConfig) BrowserCompetitor() (CompetitorConfig, bool) {
	for _, comp := range c.Competitors {
		if comp.Browser {
			return comp, true
		}
	}
	return CompetitorConfig{}, false
}

// Domains lists the configured competitor domains in config order
func (c *AppConfig) Domains() []string {
	out := make([]string, 0, len(c.Competitors))
	for _, comp := range c.Competitors {
		out = append(out, comp.Domain)
	}
	return out
}

// SelectCompetitors resolves the requested domains against the config.
// An empty request selects every configured competitor.
func (c *AppConfig) SelectCompetitors(requested []string) ([]CompetitorConfig, error) {
	if len(requested) == 0 {
		return append([]CompetitorConfig(nil), c.Competitors...), nil
	}
	selected := make([]CompetitorConfig, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, d := range requested {
		comp, ok := c.Competitor(d)
		if !ok {
			return nil, fmt.Errorf("%w: competitor '%s' not found. Available competitors: %v",
				utils.ErrConfigValidation, d, c.Domains())
		}
		if seen[comp.Domain] {
			continue
		}
		seen[comp.Domain] = true
		selected = append(selected, comp)
	}
	return selected, nil
}

// IsHeadless determines the effective headless setting (default true)
func (a AutomationConfig) IsHeadless() bool {
	if a.Headless != nil {
		return *a.Headless
	}
	return true
}

// GetEffectiveUserAgent determines the User-Agent sent to a competitor
func GetEffectiveUserAgent(comp CompetitorConfig, appCfg AppConfig) string {
	if comp.UserAgent != "" {
		return comp.UserAgent
	}
	if appCfg.DefaultUserAgent != "" {
		return appCfg.DefaultUserAgent
	}
	return DefaultUserAgent
}
