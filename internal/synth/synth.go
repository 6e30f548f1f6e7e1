// Package synth turns an intelligence report into outreach assets through one
// structured-output LLM call.
package synth

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
)

const synthesisTemperature = 0.3

var assetsSchema = func() *genai.Schema {
	props := make(map[string]*genai.Schema, len(dossier.AssetKeys))
	for _, k := range dossier.AssetKeys {
		props[k] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         dossier.AssetKeys,
		PropertyOrdering: dossier.AssetKeys,
	}
}()

type Synthesizer struct {
	gen    llm.Generator
	lib    Library
	logger *zap.Logger
}

func New(gen llm.Generator, lib Library, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{gen: gen, lib: lib, logger: logger}
}

// Synthesize fails closed: a failed or empty report never reaches the model.
func (s *Synthesizer) Synthesize(ctx context.Context, report dossier.Result[dossier.Report], fullName, rules string) dossier.Result[dossier.Assets] {
	rep, ok := report.Value()
	if !ok {
		return dossier.Fail[dossier.Assets]("invalid intelligence report: " + report.Reason())
	}
	if rep.Empty() {
		return dossier.Fail[dossier.Assets]("invalid intelligence report: empty report")
	}

	reportJSON, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return dossier.Fail[dossier.Assets]("encode intelligence report: " + err.Error())
	}

	resp, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      buildPrompt(string(reportJSON), s.lib, rules),
		JSON:        true,
		Schema:      assetsSchema,
		Temperature: llm.Temperature(synthesisTemperature),
	})
	if err != nil {
		s.logger.Warn("synthesis call failed", logging.Err(err))
		return dossier.Fail[dossier.Assets]("synthesis call failed: " + redact.Secrets(err.Error()))
	}

	var raw map[string]any
	if err := llm.ExtractJSON(resp.Text, &raw); err != nil || raw == nil {
		s.logger.Warn("synthesis returned invalid JSON",
			zap.Int("response_len", len(resp.Text)),
			zap.String("response_head", redact.Truncate(redact.Secrets(resp.Text), 200)))
		return dossier.Fail[dossier.Assets]("model did not return a valid JSON object")
	}

	fields := make(map[string]string, len(dossier.AssetKeys))
	var missing []string
	for _, k := range dossier.AssetKeys {
		v, present := raw[k]
		if !present {
			missing = append(missing, k)
		}
		fields[k] = stringValue(v)
	}
	if len(missing) > 0 {
		s.logger.Warn("synthesis response missing keys, backfilled", zap.Strings("keys", missing))
	}

	assets := dossier.AssetsFromFields(fields)
	first := FirstName(fullName)
	assets.EmailBody = Personalize(assets.EmailBody, first)
	assets.EmailSubject = Personalize(assets.EmailSubject, first)
	return dossier.Ok(assets)
}

// Personalize replaces the first-name placeholder and its legacy form.
func Personalize(text, firstName string) string {
	return strings.NewReplacer(
		dossier.FirstNameToken, firstName,
		dossier.LegacyProspectName, firstName,
	).Replace(text)
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
