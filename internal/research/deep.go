package research

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
)

const deepResearchTemperature = 0.2

// LoadTemplate reads the deep-research prompt template. A missing or empty file is an error.
func LoadTemplate(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "research: read prompt template %s", path)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", eris.Errorf("research: prompt template %s is empty", path)
	}
	return string(b), nil
}

// DeepResearcher runs the prompt template through a search-grounded generation call.
type DeepResearcher struct {
	gen      llm.Generator
	template string
	logger   *zap.Logger
}

func NewDeepResearcher(gen llm.Generator, template string, logger *zap.Logger) *DeepResearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeepResearcher{gen: gen, template: template, logger: logger}
}

// Prompt fills the template placeholders for l.
func (d *DeepResearcher) Prompt(l lead.Lead) string {
	return strings.NewReplacer(
		"{prospect_name}", strings.TrimSpace(l.ProspectName),
		"{company_name}", strings.TrimSpace(l.CompanyName),
		"{prospect_email}", strings.TrimSpace(l.ProspectEmail),
		"{prospect_phone}", strings.TrimSpace(l.ProspectPhone),
	).Replace(d.template)
}

// Run never fails the lead; a failed call is recorded in the section's Error.
func (d *DeepResearcher) Run(ctx context.Context, l lead.Lead) *dossier.DeepResearch {
	resp, err := d.gen.Generate(ctx, llm.Request{
		Prompt:      d.Prompt(l),
		Grounded:    true,
		Temperature: llm.Temperature(deepResearchTemperature),
	})
	if err != nil {
		d.logger.Warn("deep research failed", logging.Err(err))
		return &dossier.DeepResearch{Error: redact.Truncate(redact.Secrets(err.Error()), lead.MaxStatusLen)}
	}

	out := &dossier.DeepResearch{Queries: resp.Queries}
	for _, s := range resp.Sources {
		out.Sources = append(out.Sources, dossier.Source{Title: s.Title, URI: s.URI})
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		out.Error = "deep research returned no text"
		return out
	}
	var findings map[string]any
	if err := llm.ExtractJSON(text, &findings); err != nil || findings == nil {
		findings = map[string]any{"summary": text}
	}
	out.Findings = findings
	return out
}
