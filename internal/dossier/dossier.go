// Package dossier defines the intelligence report built per lead and the outreach assets
// synthesized from it.
package dossier

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shpitdev/dossier-outreach/internal/search"
)

// Section maps a query type (e.g. "company_overview") to its results.
type Section map[string][]search.Result

// Report is the aggregated research for one lead.
type Report struct {
	ProspectSpecific  ProspectIntel `json:"prospect_specific_intelligence"`
	Company           Section       `json:"company_intelligence"`
	Industry          Section       `json:"industry_intelligence"`
	Prospect          Section       `json:"prospect_intelligence"`
	Competitive       Section       `json:"competitive_intelligence"`
	Metadata          Metadata      `json:"search_metadata"`
	Lead              LeadMetadata  `json:"lead_metadata"`
	IndustryDetection Detection     `json:"industry_detection"`
	DeepResearch      *DeepResearch `json:"deep_research,omitempty"`
}

type ProspectIntel struct {
	Profile        []search.Result `json:"prospect_profile"`
	TotalResults   int             `json:"total_results"`
	SearchStrategy string          `json:"search_strategy"`
}

// Metadata is always populated, even when phases fail part way.
type Metadata struct {
	CompanyName          string `json:"company_name"`
	ProspectName         string `json:"prospect_name"`
	Industry             string `json:"industry"`
	TotalQueries         int    `json:"total_queries"`
	SuccessfulSearches   int    `json:"successful_searches"`
	ProspectResultsFound bool   `json:"prospect_results_found"`
	IndustryFromProspect bool   `json:"industry_detected_from_prospect_results"`
}

type LeadMetadata struct {
	ProspectName     string    `json:"prospect_name"`
	CompanyName      string    `json:"company_name"`
	ProspectEmail    string    `json:"prospect_email"`
	ProspectPhone    string    `json:"prospect_phone"`
	DetectedIndustry string    `json:"detected_industry"`
	EnrichedAt       time.Time `json:"enrichment_timestamp"`
}

// Detection methods recorded in the report.
const (
	DetectionProvided        = "provided"
	DetectionProspectResults = "prospect_results"
	DetectionDedicatedSearch = "dedicated_search"
)

type Detection struct {
	DetectedIndustry string `json:"detected_industry"`
	Method           string `json:"detection_method"`
	ResultsAnalyzed  int    `json:"results_analyzed"`
	FromProspect     bool   `json:"detected_from_prospect_results"`
}

// DeepResearch is the grounded prompt-template pass. Findings is the parsed model JSON, or
// {"summary": text} when the model did not answer in JSON.
type DeepResearch struct {
	Findings map[string]any `json:"findings,omitempty"`
	Sources  []Source       `json:"sources,omitempty"`
	Queries  []string       `json:"queries,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Source is a grounding attribution.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Empty reports whether no research was recorded at all.
func (r Report) Empty() bool {
	return r.Metadata.TotalQueries == 0 && r.DeepResearch == nil && len(r.AllResults()) == 0
}

// AllResults returns every search result in report order.
func (r Report) AllResults() []search.Result {
	out := append([]search.Result(nil), r.ProspectSpecific.Profile...)
	for _, s := range []Section{r.Company, r.Industry, r.Prospect, r.Competitive} {
		for _, key := range slices.Sorted(maps.Keys(s)) {
			out = append(out, s[key]...)
		}
	}
	return out
}

// SourceList returns the grounding sources when deep research produced any, otherwise the
// distinct links of the search results.
func (r Report) SourceList() []Source {
	if r.DeepResearch != nil && len(r.DeepResearch.Sources) > 0 {
		return r.DeepResearch.Sources
	}
	seen := map[string]bool{}
	var out []Source
	for _, res := range r.AllResults() {
		link := strings.TrimSpace(res.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, Source{Title: res.Title, URI: link})
	}
	return out
}

// EncodeReport renders a report result for persistence. A failed result becomes
// {"error": reason}.
func EncodeReport(res Result[Report]) (string, error) {
	var v any
	if rep, ok := res.Value(); ok {
		v = rep
	} else {
		v = map[string]string{"error": res.Reason()}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "dossier: encode report")
	}
	return string(b), nil
}

// DecodeReport parses a persisted report. A document carrying an "error" key decodes to a
// failed result.
func DecodeReport(raw string) Result[Report] {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Fail[Report]("no dossier recorded")
	}
	var envelope struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return Fail[Report]("dossier is not valid JSON: " + err.Error())
	}
	if envelope.Error != nil {
		return Fail[Report](*envelope.Error)
	}
	var rep Report
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return Fail[Report]("dossier does not match the report shape: " + err.Error())
	}
	return Ok(rep)
}
