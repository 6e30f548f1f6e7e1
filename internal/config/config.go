// Package config loads runtime settings from the environment, an optional .env file and an
// optional YAML tuning file. Every missing or invalid setting is reported in one
// ValidationError so the operator can fix them all before the next start.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

const (
	LeadSourceSheets = "sheets"
	LeadSourceCSV    = "csv"

	BackendGoogleCSE    = "google-cse"
	BackendDuckDuckGo   = "duckduckgo"
	BackendBingRendered = "bing-rendered"
)

// Config is the fully validated runtime configuration of one process.
type Config struct {
	LeadSource string
	Sheets     SheetsConfig
	LeadsCSV   string

	Gemini    GeminiConfig
	SMTP      SMTPConfig
	Signature SignatureConfig
	Search    SearchConfig
	Files     FilesConfig

	Research  ResearchTuning
	Columns   map[string]string
	SkipRules []SkipRule

	LeadDelay time.Duration
}

type SheetsConfig struct {
	SpreadsheetID string
	Worksheet     string
	// CredentialsJSON is the service-account key, already read from disk when the
	// variable held a path.
	CredentialsJSON []byte
	Endpoint        string
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RateLimitRPS   float64
	MaxRetries     int
	RequestTimeout time.Duration
}

type SMTPConfig struct {
	Host        string
	Port        int
	SenderEmail string
	Password    string
}

type SignatureConfig struct {
	Name      string
	Company   string
	Role      string
	Phone     string
	InfoEmail string
	Tagline   string
}

type SearchConfig struct {
	Backends  []string
	CSEAPIKey string
	CSEID     string
	DelayMin  time.Duration
	DelayMax  time.Duration
}

// FilesConfig points at the prompt inputs, which are read fresh on every run.
type FilesConfig struct {
	PromptTemplate  string
	StyleExemplars  string
	ProvenTemplates string
	Rules           string
}

// ValidationError lists every configuration problem found by one Load.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "config: invalid configuration"
	}
	return "config: " + strings.Join(e.Problems, "; ")
}

// Lookup returns the value of one variable, or "" when unset.
type Lookup func(key string) string

// NewLookup reads envFile (a missing file is fine) and returns a Lookup in which the process
// environment wins over the file.
func NewLookup(envFile string) (Lookup, error) {
	fileVals := map[string]string{}
	if p := strings.TrimSpace(envFile); p != "" {
		vals, err := godotenv.Read(p)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, eris.Wrapf(err, "config: read env file %s", p)
		}
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileVals[key])
	}, nil
}

// Load reads envFile and the process environment and validates the result.
func Load(envFile string) (*Config, error) {
	lookup, err := NewLookup(envFile)
	if err != nil {
		return nil, err
	}
	return FromLookup(lookup)
}

// FromLookup builds and validates a Config from variables returned by get.
func FromLookup(get Lookup) (*Config, error) {
	p := &problems{}
	cfg := &Config{
		LeadSource: strings.ToLower(orDefault(get("LEAD_SOURCE"), LeadSourceSheets)),
		LeadsCSV:   get("LEADS_CSV"),
		Gemini: GeminiConfig{
			APIKey:         get("GEMINI_API_KEY"),
			Model:          orDefault(get("GEMINI_MODEL"), "gemini-2.5-pro"),
			BaseURL:        get("GEMINI_BASE_URL"),
			RateLimitRPS:   p.float(get, "GEMINI_RATE_LIMIT_RPS", 0),
			MaxRetries:     p.int(get, "GEMINI_MAX_RETRIES", 2),
			RequestTimeout: p.duration(get, "GEMINI_REQUEST_TIMEOUT", 120*time.Second),
		},
		SMTP: SMTPConfig{
			Host:        orDefault(get("SMTP_HOST"), "smtp.gmail.com"),
			Port:        p.int(get, "SMTP_PORT", 465),
			SenderEmail: get("SENDER_EMAIL"),
			Password:    get("SENDER_APP_PASSWORD"),
		},
		Signature: SignatureConfig{
			Name:      orDefault(get("SENDER_NAME"), "Graham Gordon"),
			Company:   orDefault(get("SENDER_COMPANY"), "FastCapitalNYC.com"),
			Role:      orDefault(get("SENDER_ROLE"), "Growth Funding Architect"),
			Phone:     orDefault(get("SENDER_PHONE"), "(917) 745-3378"),
			InfoEmail: orDefault(get("SENDER_INFO_EMAIL"), "info@fastcapitalnyc.com"),
			Tagline:   orDefault(get("SENDER_TAGLINE"), "Apply for Funding"),
		},
		Search: SearchConfig{
			Backends:  splitList(orDefault(get("SEARCH_BACKENDS"), defaultBackends(get))),
			CSEAPIKey: get("GOOGLE_CSE_API_KEY"),
			CSEID:     get("GOOGLE_CSE_ID"),
			DelayMin:  800 * time.Millisecond,
			DelayMax:  1200 * time.Millisecond,
		},
		Files: FilesConfig{
			PromptTemplate:  orDefault(get("PROMPT_TEMPLATE_PATH"), "master_prompt.txt"),
			StyleExemplars:  orDefault(get("STYLE_EXEMPLARS_PATH"), "direct_marketing_samples.txt"),
			ProvenTemplates: orDefault(get("PROVEN_TEMPLATES_PATH"), "successful_emails.txt"),
			Rules:           orDefault(get("RULES_PATH"), "llm_rules.txt"),
		},
		Research:  DefaultResearch(),
		LeadDelay: p.duration(get, "LEAD_DELAY", 5*time.Second),
	}

	switch cfg.LeadSource {
	case LeadSourceSheets:
		cfg.Sheets = SheetsConfig{
			SpreadsheetID: get("GOOGLE_SHEET_ID"),
			Worksheet:     orDefault(get("GOOGLE_WORKSHEET"), "Sheet1"),
			Endpoint:      get("SHEETS_ENDPOINT"),
		}
		p.require(cfg.Sheets.SpreadsheetID, "GOOGLE_SHEET_ID")
		cfg.Sheets.CredentialsJSON = p.credentials(get("GCP_SERVICE_ACCOUNT_JSON"), "GCP_SERVICE_ACCOUNT_JSON")
	case LeadSourceCSV:
		p.require(cfg.LeadsCSV, "LEADS_CSV")
	default:
		p.addf("LEAD_SOURCE=%q: must be %q or %q", cfg.LeadSource, LeadSourceSheets, LeadSourceCSV)
	}

	p.require(cfg.Gemini.APIKey, "GEMINI_API_KEY")
	p.require(cfg.SMTP.SenderEmail, "SENDER_EMAIL")
	p.require(cfg.SMTP.Password, "SENDER_APP_PASSWORD")
	p.require(cfg.SMTP.Host, "SMTP_HOST")
	if cfg.SMTP.Port < 1 || cfg.SMTP.Port > 65535 {
		p.addf("SMTP_PORT=%d: must be between 1 and 65535", cfg.SMTP.Port)
	}
	if cfg.Gemini.RateLimitRPS < 0 {
		p.addf("GEMINI_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.Gemini.MaxRetries < 0 {
		p.addf("GEMINI_MAX_RETRIES must be >= 0")
	}
	if cfg.Gemini.RequestTimeout <= 0 {
		p.addf("GEMINI_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.LeadDelay < 0 {
		p.addf("LEAD_DELAY must be >= 0")
	}

	validateBackends(p, cfg.Search)

	if fi, err := os.Stat(cfg.Files.PromptTemplate); err != nil || fi.IsDir() {
		p.addf("PROMPT_TEMPLATE_PATH=%q: prompt template file not found", cfg.Files.PromptTemplate)
	}

	if path := get("RESEARCH_CONFIG"); path != "" {
		applyTuningFile(p, cfg, path)
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultBackends only includes the Custom Search backend when its credentials are set.
func defaultBackends(get Lookup) string {
	if get("GOOGLE_CSE_API_KEY") != "" && get("GOOGLE_CSE_ID") != "" {
		return BackendDuckDuckGo + "," + BackendGoogleCSE
	}
	return BackendDuckDuckGo
}

func validateBackends(p *problems, s SearchConfig) {
	if len(s.Backends) == 0 {
		p.addf("SEARCH_BACKENDS: at least one backend is required")
	}
	seen := map[string]bool{}
	for _, b := range s.Backends {
		switch b {
		case BackendGoogleCSE:
			p.require(s.CSEAPIKey, "GOOGLE_CSE_API_KEY")
			p.require(s.CSEID, "GOOGLE_CSE_ID")
		case BackendDuckDuckGo, BackendBingRendered:
		default:
			p.addf("SEARCH_BACKENDS: unknown backend %q", b)
		}
		if seen[b] {
			p.addf("SEARCH_BACKENDS: %q listed twice", b)
		}
		seen[b] = true
	}
}

// ReadValueOrFile returns v itself, or the contents of the file v names. Multi-line values
// are always treated as inline content.
func ReadValueOrFile(v string, varName string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if strings.Contains(v, "\n") || strings.Contains(v, "\r") || strings.HasPrefix(v, "{") {
		return v, nil
	}
	if fi, err := os.Stat(v); err == nil && !fi.IsDir() {
		b, err := os.ReadFile(v)
		if err != nil {
			return "", eris.Wrapf(err, "read %s file", varName)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return v, nil
}

type problems struct {
	list []string
}

func (p *problems) addf(format string, args ...any) {
	p.list = append(p.list, fmt.Sprintf(format, args...))
}

func (p *problems) require(v, varName string) {
	if strings.TrimSpace(v) == "" {
		p.addf("%s is required", varName)
	}
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return &ValidationError{Problems: p.list}
}

func (p *problems) credentials(raw, varName string) []byte {
	if raw == "" {
		p.addf("%s is required", varName)
		return nil
	}
	v, err := ReadValueOrFile(raw, varName)
	if err != nil {
		p.addf("%s: %v", varName, err)
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(v), &parsed); err != nil {
		p.addf("%s: not valid service account JSON", varName)
		return nil
	}
	return []byte(v)
}

func (p *problems) int(get Lookup, varName string, fallback int) int {
	v := get(varName)
	if v == "" {
		return fallback
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		p.addf("invalid %s=%q: not an integer", varName, v)
		return fallback
	}
	return out
}

func (p *problems) float(get Lookup, varName string, fallback float64) float64 {
	v := get(varName)
	if v == "" {
		return fallback
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.addf("invalid %s=%q: not a number", varName, v)
		return fallback
	}
	return out
}

func (p *problems) duration(get Lookup, varName string, fallback time.Duration) time.Duration {
	v := get(varName)
	if v == "" {
		return fallback
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		p.addf("invalid %s=%q: not a duration", varName, v)
		return fallback
	}
	return out
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
