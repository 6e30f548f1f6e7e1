package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ResearchTuning holds the query-count and budget knobs of the research orchestrator.
type ResearchTuning struct {
	ProspectMaxResults      int
	SupplementaryMaxResults int
	SupplementaryThreshold  int
	ProfileKeep             int
	IndustryMaxResults      int
	CompanyMaxResults       int
	QueriesPerType          int
	// Essential maps a research category to the query types that run for it. A category
	// that is not a key runs every query type.
	Essential map[string][]string
	Budgets   PhaseBudgets
	// DeepResearch enables the grounded prompt-template call after the search phases.
	DeepResearch bool
}

// PhaseBudgets are advisory; exceeding one only logs a warning.
type PhaseBudgets struct {
	Prospect time.Duration
	Industry time.Duration
	Company  time.Duration
}

// SkipRule skips a lead whose column value contains any keyword (case-insensitive).
type SkipRule struct {
	Column   string   `yaml:"column"`
	Keywords []string `yaml:"keywords"`
}

// DefaultResearch returns the tuning used when no RESEARCH_CONFIG file is given.
func DefaultResearch() ResearchTuning {
	return ResearchTuning{
		ProspectMaxResults:      20,
		SupplementaryMaxResults: 3,
		SupplementaryThreshold:  5,
		ProfileKeep:             8,
		IndustryMaxResults:      6,
		CompanyMaxResults:       3,
		QueriesPerType:          2,
		Essential: map[string][]string{
			"company":  {"company_overview"},
			"industry": {"industry_trends"},
		},
		Budgets: PhaseBudgets{
			Prospect: 45 * time.Second,
			Industry: 15 * time.Second,
			Company:  30 * time.Second,
		},
		DeepResearch: true,
	}
}

// tuningFile mirrors the YAML document. Pointer fields distinguish "absent" from zero.
//
// Example:
//
//	research:
//	  prospect_max_results: 20
//	  essential:
//	    company: [company_overview]
//	search:
//	  delay_min: 0.8s
//	columns:
//	  Prospect_Name: "Full Name"
type tuningFile struct {
	Research struct {
		ProspectMaxResults      *int                `yaml:"prospect_max_results"`
		SupplementaryMaxResults *int                `yaml:"supplementary_max_results"`
		SupplementaryThreshold  *int                `yaml:"supplementary_threshold"`
		ProfileKeep             *int                `yaml:"profile_keep"`
		IndustryMaxResults      *int                `yaml:"industry_max_results"`
		CompanyMaxResults       *int                `yaml:"company_max_results"`
		QueriesPerType          *int                `yaml:"queries_per_type"`
		Essential               map[string][]string `yaml:"essential"`
		Budgets                 struct {
			Prospect *time.Duration `yaml:"prospect"`
			Industry *time.Duration `yaml:"industry"`
			Company  *time.Duration `yaml:"company"`
		} `yaml:"budgets"`
		DeepResearch *bool `yaml:"deep_research"`
	} `yaml:"research"`
	Search struct {
		DelayMin *time.Duration `yaml:"delay_min"`
		DelayMax *time.Duration `yaml:"delay_max"`
	} `yaml:"search"`
	Columns   map[string]string `yaml:"columns"`
	SkipRules []SkipRule        `yaml:"skip_rules"`
}

func applyTuningFile(p *problems, cfg *Config, path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		p.addf("RESEARCH_CONFIG=%q: %v", path, err)
		return
	}
	if err := ApplyTuning(cfg, b); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			for _, msg := range verr.Problems {
				p.addf("RESEARCH_CONFIG: %s", msg)
			}
			return
		}
		p.addf("RESEARCH_CONFIG: %v", err)
	}
}

// ApplyTuning overlays a YAML tuning document onto cfg. Unknown keys are rejected.
func ApplyTuning(cfg *Config, doc []byte) error {
	var tf tuningFile
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Problems: []string{"parse YAML: " + err.Error()}}
	}

	p := &problems{}
	r := &cfg.Research
	setPositive(p, &r.ProspectMaxResults, tf.Research.ProspectMaxResults, "research.prospect_max_results")
	setPositive(p, &r.SupplementaryMaxResults, tf.Research.SupplementaryMaxResults, "research.supplementary_max_results")
	setPositive(p, &r.SupplementaryThreshold, tf.Research.SupplementaryThreshold, "research.supplementary_threshold")
	setPositive(p, &r.ProfileKeep, tf.Research.ProfileKeep, "research.profile_keep")
	setPositive(p, &r.IndustryMaxResults, tf.Research.IndustryMaxResults, "research.industry_max_results")
	setPositive(p, &r.CompanyMaxResults, tf.Research.CompanyMaxResults, "research.company_max_results")
	setPositive(p, &r.QueriesPerType, tf.Research.QueriesPerType, "research.queries_per_type")
	if tf.Research.Essential != nil {
		r.Essential = tf.Research.Essential
	}
	setDuration(&r.Budgets.Prospect, tf.Research.Budgets.Prospect)
	setDuration(&r.Budgets.Industry, tf.Research.Budgets.Industry)
	setDuration(&r.Budgets.Company, tf.Research.Budgets.Company)
	if tf.Research.DeepResearch != nil {
		r.DeepResearch = *tf.Research.DeepResearch
	}

	setDuration(&cfg.Search.DelayMin, tf.Search.DelayMin)
	setDuration(&cfg.Search.DelayMax, tf.Search.DelayMax)
	if cfg.Search.DelayMin < 0 || cfg.Search.DelayMax < cfg.Search.DelayMin {
		p.addf("search: need 0 <= delay_min <= delay_max (got %s, %s)", cfg.Search.DelayMin, cfg.Search.DelayMax)
	}

	if len(tf.Columns) > 0 {
		cfg.Columns = make(map[string]string, len(tf.Columns))
		for k, v := range tf.Columns {
			if strings.TrimSpace(v) == "" {
				p.addf("columns.%s: column name is empty", k)
				continue
			}
			cfg.Columns[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	for i, rule := range tf.SkipRules {
		if strings.TrimSpace(rule.Column) == "" || len(rule.Keywords) == 0 {
			p.addf("skip_rules[%d]: column and keywords are required", i)
			continue
		}
		cfg.SkipRules = append(cfg.SkipRules, rule)
	}
	return p.err()
}

func setPositive(p *problems, dst *int, v *int, name string) {
	if v == nil {
		return
	}
	if *v <= 0 {
		p.addf("%s must be > 0", name)
		return
	}
	*dst = *v
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
