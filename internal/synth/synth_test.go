package synth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/search"
	"github.com/shpitdev/dossier-outreach/internal/synth"
)

type stubGen struct {
	calls int
	last  llm.Request
	text  string
	err   error
}

func (g *stubGen) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	g.calls++
	g.last = req
	return llm.Response{Text: g.text}, g.err
}

func sampleReport() dossier.Result[dossier.Report] {
	return dossier.Ok(dossier.Report{
		ProspectSpecific: dossier.ProspectIntel{
			Profile:      []search.Result{{Title: "Jane Doe - CEO - Acme Corp", Link: "https://acme.test/team"}},
			TotalResults: 1,
		},
		Metadata: dossier.Metadata{
			CompanyName:          "Acme Corp",
			ProspectName:         "Jane Doe",
			TotalQueries:         5,
			SuccessfulSearches:   5,
			ProspectResultsFound: true,
		},
	})
}

const fullReply = `{
  "Prospect_Title": "CEO",
  "Halbert_Hook": "Acme opened a second plant",
  "Capital_Need_Hypothesis": "A second plant needs equipment financing.",
  "Selected_Email_Subject": "[First Name], your second plant",
  "Selected_Email_Body": "Hi [First Name],\n\nCongrats on the new plant. [Prospect Name], would you be opposed to a call?"
}`

func TestSynthesizeHappyPath(t *testing.T) {
	gen := &stubGen{text: fullReply}
	s := synth.New(gen, synth.Library{StyleExemplars: "Be direct.", ProvenTemplates: "The Challenger"}, nil)

	res := s.Synthesize(context.Background(), sampleReport(), "Dr. Jane Doe", "Minimum offer is $50k.\nAlways end with a no-oriented question.")
	assets, ok := res.Value()
	require.True(t, ok, res.Reason())

	assert.Equal(t, "CEO", assets.ProspectTitle)
	assert.Equal(t, "Jane, your second plant", assets.EmailSubject)
	assert.Equal(t, "Hi Jane,\n\nCongrats on the new plant. Jane, would you be opposed to a call?", assets.EmailBody)
	assert.NotContains(t, assets.EmailBody, dossier.FirstNameToken)

	assert.Equal(t, 1, gen.calls)
	assert.True(t, gen.last.JSON)
	require.NotNil(t, gen.last.Schema)
	assert.ElementsMatch(t, dossier.AssetKeys, gen.last.Schema.Required)
	require.NotNil(t, gen.last.Temperature)
	assert.InDelta(t, 0.3, *gen.last.Temperature, 1e-6)
	assert.Contains(t, gen.last.Prompt, "Minimum offer is $50k.\nAlways end with a no-oriented question.")
	assert.Contains(t, gen.last.Prompt, `"search_metadata"`)
	assert.Contains(t, gen.last.Prompt, "Be direct.")
	assert.Contains(t, gen.last.Prompt, "The Challenger")
}

func TestSynthesizeRejectsBadReportsWithoutCallingModel(t *testing.T) {
	for name, rep := range map[string]dossier.Result[dossier.Report]{
		"error report": dossier.Fail[dossier.Report]("missing critical lead information"),
		"empty report": dossier.Ok(dossier.Report{}),
	} {
		t.Run(name, func(t *testing.T) {
			gen := &stubGen{text: fullReply}
			res := synth.New(gen, synth.Library{}, nil).Synthesize(context.Background(), rep, "Jane Doe", "")
			require.False(t, res.OK())
			assert.True(t, strings.HasPrefix(res.Reason(), "invalid intelligence report"))
			assert.Zero(t, gen.calls)
		})
	}
}

func TestSynthesizeMalformedJSON(t *testing.T) {
	for _, text := range []string{"", "Sure! Here is your email.", "{not json}"} {
		gen := &stubGen{text: text}
		res := synth.New(gen, synth.Library{}, nil).Synthesize(context.Background(), sampleReport(), "Jane Doe", "")
		require.False(t, res.OK(), "text %q", text)
		assert.Contains(t, res.Reason(), "valid JSON")
	}
}

func TestSynthesizeBackfillsMissingKeys(t *testing.T) {
	gen := &stubGen{text: `{"Prospect_Title": "CEO", "Selected_Email_Body": "Hello [First Name]"}`}
	res := synth.New(gen, synth.Library{}, nil).Synthesize(context.Background(), sampleReport(), "", "")
	assets, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, dossier.Assets{ProspectTitle: "CEO", EmailBody: "Hello there"}, assets)
}

func TestSynthesizeCallFailure(t *testing.T) {
	gen := &stubGen{err: errors.New("401 unauthorized api_key=abc")}
	res := synth.New(gen, synth.Library{}, nil).Synthesize(context.Background(), sampleReport(), "Jane Doe", "")
	require.False(t, res.OK())
	assert.Contains(t, res.Reason(), "synthesis call failed")
	assert.NotContains(t, res.Reason(), "abc")
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	style := filepath.Join(dir, "style.txt")
	require.NoError(t, os.WriteFile(style, []byte("Short sentences."), 0o600))

	lib, err := synth.LoadLibrary(style, filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.Equal(t, synth.Library{StyleExemplars: "Short sentences."}, lib)
}
