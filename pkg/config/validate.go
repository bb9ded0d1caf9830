package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Workers
	if c.Workers <= 0 {
		warnings = append(warnings, "workers should be > 0, defaulting to 10")
		c.Workers = 10
	}

	// SimilarityThreshold
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './reconciler_state'")
		c.StateDir = "./reconciler_state"
	}

	// OutputDir
	if c.OutputDir == "" {
		c.OutputDir = "."
	}

	if c.Export == "" {
		c.Export = "csv"
	}

	// Competitors
	if len(c.Competitors) == 0 {
		warnings = append(warnings, "no competitors configured, using the built-in competitor set")
		c.Competitors = DefaultCompetitors()
	}
	compWarnings, err := c.validateCompetitors()
	warnings = append(warnings, compWarnings...)
	if err != nil {
		return warnings, err
	}

	c.validateHTTPClientSettings()
	c.validateAutomation()
	warnings = append(warnings, c.validateSearch()...)
	remoteWarnings, err := c.validateRemote()
	warnings = append(warnings, remoteWarnings...)
	if err != nil {
		return warnings, err
	}
	c.validateCatalog()

	if err := validator.New().Struct(c); err != nil {
		return warnings, fmt.Errorf("%w: %s", utils.ErrConfigValidation, describeValidationError(err))
	}

	return warnings, nil
}

// validateCompetitors normalizes domains and checks the browser competitor rule
func (c *AppConfig) validateCompetitors() (warnings []string, err error) {
	seen := make(map[string]bool, len(c.Competitors))
	browsers := 0
	for i := range c.Competitors {
		comp := &c.Competitors[i]
		comp.Domain = strings.ToLower(strings.TrimSpace(comp.Domain))
		if comp.Domain == "" {
			return warnings, utils.WrapErrorf(utils.ErrConfigValidation, "competitor #%d has no domain", i+1)
		}
		if seen[comp.Domain] {
			return warnings, utils.WrapErrorf(utils.ErrConfigValidation, "competitor '%s' is listed twice", comp.Domain)
		}
		seen[comp.Domain] = true

		if comp.Browser {
			browsers++
			if comp.WaitSelector == "" && len(comp.NameSelectors) > 0 {
				comp.WaitSelector = comp.NameSelectors[0]
			}
		} else if comp.WaitSelector != "" {
			warnings = append(warnings, fmt.Sprintf("[%s] wait_selector is ignored for non-browser competitors", comp.Domain))
		}
	}
	if browsers > 1 {
		return warnings, utils.WrapErrorf(utils.ErrConfigValidation,
			"%d competitors need a browser, only one automation worker is supported", browsers)
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 10 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.Workers
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 10 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

func (c *AppConfig) validateAutomation() {
	a := &c.Automation
	if a.StartupGrace <= 0 {
		a.StartupGrace = 500 * time.Millisecond
	}
	if a.ResultTimeout <= 0 {
		a.ResultTimeout = 180 * time.Second
	}
	if a.JoinGrace <= 0 {
		a.JoinGrace = 15 * time.Second
	}
	if a.KillGrace <= 0 {
		a.KillGrace = 5 * time.Second
	}
	if a.PageTimeout <= 0 {
		a.PageTimeout = 20 * time.Second
	}
	if a.WindowWidth <= 0 || a.WindowHeight <= 0 {
		a.WindowWidth, a.WindowHeight = 1920, 1080
	}
}

func (c *AppConfig) validateSearch() (warnings []string) {
	s := &c.Search
	if s.Provider == "" {
		s.Provider = "serper"
	}
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}
	if s.Results <= 0 {
		s.Results = 10
	}
	if s.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf(
			"no API key for search provider '%s', pairs without a cached URL will fail as 'Serper API Error'", s.Provider))
	}
	if s.Provider == "google" && s.CSEID == "" {
		warnings = append(warnings, "search provider 'google' needs cse_id (or GOOGLE_CSE_ID)")
	}
	return warnings
}

func (c *AppConfig) validateRemote() (warnings []string, err error) {
	r := &c.Remote
	if r.Backend == "" {
		r.Backend = "none"
		warnings = append(warnings, "remote.backend not set, discovered URLs stay in local state only")
	}
	if r.Timeout <= 0 {
		r.Timeout = 30 * time.Second
	}
	switch r.Backend {
	case "sheets":
		if r.SpreadsheetID == "" {
			return warnings, utils.WrapErrorf(utils.ErrConfigValidation, "remote backend 'sheets' needs spreadsheet_id")
		}
	case "postgres":
		if r.PostgresDSN == "" {
			return warnings, utils.WrapErrorf(utils.ErrConfigValidation,
				"remote backend 'postgres' needs RECONCILER_POSTGRES_DSN in the environment")
		}
	}
	return warnings, nil
}

func (c *AppConfig) validateCatalog() {
	cat := &c.Catalog
	if cat.NameColumn == "" {
		cat.NameColumn = "NomProduit"
	}
	if cat.PriceColumn == "" {
		cat.PriceColumn = "MonPrix"
	}
	if cat.Delimiter == "" {
		cat.Delimiter = ";"
	}
}

// describeValidationError flattens validator errors into one readable line
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails '%s=%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s fails '%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return strings.Join(parts, "; ")
}
