package dossier_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/search"
)

func TestResult(t *testing.T) {
	ok := dossier.Ok(3)
	v, err := ok.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.True(t, ok.OK())
	assert.Empty(t, ok.Reason())

	bad := dossier.Fail[int]("no results")
	_, err = bad.Unwrap()
	require.EqualError(t, err, "no results")
	assert.False(t, bad.OK())

	assert.Equal(t, "unknown failure", dossier.Fail[string]("").Reason())
}

func TestEncodeFailedReport(t *testing.T) {
	raw, err := dossier.EncodeReport(dossier.Fail[dossier.Report]("missing critical lead information"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"missing critical lead information"}`, raw)

	back := dossier.DecodeReport(raw)
	assert.False(t, back.OK())
	assert.Equal(t, "missing critical lead information", back.Reason())
}

func TestReportJSONKeys(t *testing.T) {
	rep := dossier.Report{
		Metadata: dossier.Metadata{CompanyName: "Acme Corp", TotalQueries: 3, ProspectResultsFound: true},
	}
	raw, err := dossier.EncodeReport(dossier.Ok(rep))
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	for _, key := range []string{
		"prospect_specific_intelligence", "company_intelligence", "industry_intelligence",
		"prospect_intelligence", "competitive_intelligence", "search_metadata",
		"lead_metadata", "industry_detection",
	} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "error")
	assert.NotContains(t, m, "deep_research")

	back := dossier.DecodeReport(raw)
	got, err := back.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, rep.Metadata, got.Metadata)
}

func TestDecodeReportRejectsGarbage(t *testing.T) {
	assert.False(t, dossier.DecodeReport("").OK())
	assert.False(t, dossier.DecodeReport("not json").OK())
}

func TestSourceList(t *testing.T) {
	rep := dossier.Report{
		ProspectSpecific: dossier.ProspectIntel{Profile: []search.Result{
			{Title: "A", Link: "https://a.test"},
			{Title: "A again", Link: "https://a.test"},
		}},
		Company: dossier.Section{
			"company_overview": {{Title: "B", Link: "https://b.test"}, {Title: "blank"}},
		},
	}
	want := []dossier.Source{{Title: "A", URI: "https://a.test"}, {Title: "B", URI: "https://b.test"}}
	if diff := cmp.Diff(want, rep.SourceList()); diff != "" {
		t.Fatalf("fallback sources (-want +got):\n%s", diff)
	}

	rep.DeepResearch = &dossier.DeepResearch{Sources: []dossier.Source{{Title: "G", URI: "https://g.test"}}}
	assert.Equal(t, rep.DeepResearch.Sources, rep.SourceList())
	assert.False(t, rep.Empty())
	assert.True(t, dossier.Report{}.Empty())
}

func TestAssetsFields(t *testing.T) {
	a := dossier.Assets{ProspectTitle: "CEO", EmailBody: "Hi [First Name]"}
	back := dossier.AssetsFromFields(a.Fields())
	assert.Equal(t, a, back)
	assert.Len(t, dossier.AssetKeys, 5)
}
