package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/search"
)

// Industry sentinels. Anything starting with Unknown means no usable industry.
const (
	Unknown               = "Unknown"
	UnknownNoResults      = "Unknown (no results)"
	UnknownClassifyFailed = "Unknown (classification failed)"
)

const (
	classifierMaxResults  = 30
	classifierTemperature = 0.1
)

// IsUnknown reports whether industry carries no usable label.
func IsUnknown(industry string) bool {
	s := strings.TrimSpace(industry)
	return s == "" || strings.HasPrefix(s, Unknown)
}

// Classifier infers a company's industry from search results. It never fails: errors
// degrade to a sentinel.
type Classifier struct {
	gen    llm.Generator
	logger *zap.Logger
}

func NewClassifier(gen llm.Generator, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{gen: gen, logger: logger}
}

var industrySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"industry": {Type: genai.TypeString},
	},
	Required: []string{"industry"},
}

// Classify returns a concise industry label for company, or one of the Unknown sentinels.
func (c *Classifier) Classify(ctx context.Context, company string, results []search.Result) string {
	if len(results) == 0 {
		return UnknownNoResults
	}
	if len(results) > classifierMaxResults {
		results = results[:classifierMaxResults]
	}

	resp, err := c.gen.Generate(ctx, llm.Request{
		Prompt:      classifierPrompt(company, results),
		JSON:        true,
		Schema:      industrySchema,
		Temperature: llm.Temperature(classifierTemperature),
	})
	if err != nil {
		c.logger.Warn("industry classification failed", zap.String("company", company), logging.Err(err))
		return UnknownClassifyFailed
	}

	var out struct {
		Industry string `json:"industry"`
	}
	if err := llm.ExtractJSON(resp.Text, &out); err != nil {
		c.logger.Warn("industry classification returned no JSON", zap.String("company", company), logging.Err(err))
		return UnknownClassifyFailed
	}
	industry := strings.Trim(strings.TrimSpace(out.Industry), `"'.`)
	if industry == "" || strings.EqualFold(industry, Unknown) {
		return Unknown
	}
	return industry
}

func classifierPrompt(company string, results []search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following search results for the company %q and determine their primary industry.\n\n", company)
	b.WriteString("Search Results:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "Result %d:\nTitle: %s\nSnippet: %s\nLink: %s\n\n", i+1, orNA(r.Title), orNA(r.Snippet), orNA(r.Link))
	}
	b.WriteString(`Instructions:
1. Review all the search results carefully.
2. Look for industry indicators in company descriptions, news articles and business information.
3. Identify the primary industry this company operates in.
4. Be specific but concise (e.g. "Software Development" rather than "Technology").
5. If the results do not show the industry, answer "Unknown".

Respond with a JSON object: {"industry": "<industry name>"}`)
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
