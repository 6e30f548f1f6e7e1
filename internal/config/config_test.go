package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/dossier-outreach/internal/config"
)

func lookupFrom(m map[string]string) config.Lookup {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func validEnv(t *testing.T) map[string]string {
	t.Helper()
	dir := t.TempDir()
	return map[string]string{
		"GOOGLE_SHEET_ID":          "sheet-123",
		"GCP_SERVICE_ACCOUNT_JSON": `{"type":"service_account","client_email":"a@b.iam.gserviceaccount.com"}`,
		"GEMINI_API_KEY":           "gem-key",
		"SENDER_EMAIL":             "me@example.com",
		"SENDER_APP_PASSWORD":      "app-pass",
		"PROMPT_TEMPLATE_PATH":     writeFile(t, dir, "master_prompt.txt", "Research {prospect_name}"),
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := config.FromLookup(lookupFrom(validEnv(t)))
	require.NoError(t, err)

	assert.Equal(t, config.LeadSourceSheets, cfg.LeadSource)
	assert.Equal(t, "Sheet1", cfg.Sheets.Worksheet)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 2, cfg.Gemini.MaxRetries)
	assert.Equal(t, 120*time.Second, cfg.Gemini.RequestTimeout)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "Graham Gordon", cfg.Signature.Name)
	assert.Equal(t, []string{config.BackendDuckDuckGo}, cfg.Search.Backends)
	assert.Equal(t, 5*time.Second, cfg.LeadDelay)
	assert.Equal(t, config.DefaultResearch(), cfg.Research)
	assert.Contains(t, string(cfg.Sheets.CredentialsJSON), "service_account")
}

func TestFromLookupReportsEveryProblem(t *testing.T) {
	_, err := config.FromLookup(lookupFrom(map[string]string{
		"SMTP_PORT":            "70000",
		"GEMINI_MAX_RETRIES":   "many",
		"SEARCH_BACKENDS":      "duckduckgo,altavista,google-cse",
		"PROMPT_TEMPLATE_PATH": filepath.Join(t.TempDir(), "missing.txt"),
	}))
	require.Error(t, err)

	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))

	joined := strings.Join(verr.Problems, "\n")
	for _, want := range []string{
		"GOOGLE_SHEET_ID is required",
		"GCP_SERVICE_ACCOUNT_JSON is required",
		"GEMINI_API_KEY is required",
		"SENDER_EMAIL is required",
		"SENDER_APP_PASSWORD is required",
		"SMTP_PORT=70000",
		"invalid GEMINI_MAX_RETRIES",
		`unknown backend "altavista"`,
		"GOOGLE_CSE_API_KEY is required",
		"GOOGLE_CSE_ID is required",
		"prompt template file not found",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestCredentialsFromFile(t *testing.T) {
	env := validEnv(t)
	env["GCP_SERVICE_ACCOUNT_JSON"] = writeFile(t, t.TempDir(), "sa.json", `{"type":"service_account"}`)

	cfg, err := config.FromLookup(lookupFrom(env))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(cfg.Sheets.CredentialsJSON))
}

func TestCredentialsMustParse(t *testing.T) {
	env := validEnv(t)
	env["GCP_SERVICE_ACCOUNT_JSON"] = "{not json"

	_, err := config.FromLookup(lookupFrom(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid service account JSON")
}

func TestCSVLeadSource(t *testing.T) {
	env := validEnv(t)
	delete(env, "GOOGLE_SHEET_ID")
	delete(env, "GCP_SERVICE_ACCOUNT_JSON")
	env["LEAD_SOURCE"] = "CSV"

	_, err := config.FromLookup(lookupFrom(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEADS_CSV is required")

	env["LEADS_CSV"] = "leads.csv"
	cfg, err := config.FromLookup(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, config.LeadSourceCSV, cfg.LeadSource)
}

func TestResearchConfigFile(t *testing.T) {
	env := validEnv(t)
	env["RESEARCH_CONFIG"] = writeFile(t, t.TempDir(), "tuning.yaml", `
research:
  queries_per_type: 1
  essential:
    competitive: [competitors]
  budgets:
    prospect: 10s
  deep_research: false
search:
  delay_min: 0s
  delay_max: 50ms
columns:
  Prospect_Name: "Full Name"
skip_rules:
  - column: Company_Name
    keywords: [test]
`)

	cfg, err := config.FromLookup(lookupFrom(env))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Research.QueriesPerType)
	assert.Equal(t, 20, cfg.Research.ProspectMaxResults)
	assert.Equal(t, map[string][]string{"competitive": {"competitors"}}, cfg.Research.Essential)
	assert.Equal(t, 10*time.Second, cfg.Research.Budgets.Prospect)
	assert.Equal(t, 15*time.Second, cfg.Research.Budgets.Industry)
	assert.False(t, cfg.Research.DeepResearch)
	assert.Equal(t, time.Duration(0), cfg.Search.DelayMin)
	assert.Equal(t, 50*time.Millisecond, cfg.Search.DelayMax)
	assert.Equal(t, map[string]string{"Prospect_Name": "Full Name"}, cfg.Columns)
	assert.Equal(t, []config.SkipRule{{Column: "Company_Name", Keywords: []string{"test"}}}, cfg.SkipRules)
}

func TestApplyTuningRejectsUnknownKeys(t *testing.T) {
	cfg := &config.Config{Research: config.DefaultResearch()}
	err := config.ApplyTuning(cfg, []byte("research:\n  prospect_max: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prospect_max")
}

func TestApplyTuningCollectsBadValues(t *testing.T) {
	cfg := &config.Config{Research: config.DefaultResearch()}
	err := config.ApplyTuning(cfg, []byte(`
research:
  profile_keep: 0
search:
  delay_min: 2s
  delay_max: 1s
skip_rules:
  - column: Company_Name
`))
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 3)
}

func TestNewLookupEnvWinsOverFile(t *testing.T) {
	envFile := writeFile(t, t.TempDir(), ".env", "OUTREACH_TEST_A=from-file\nOUTREACH_TEST_B=file-only\n")
	t.Setenv("OUTREACH_TEST_A", "from-env")

	get, err := config.NewLookup(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env", get("OUTREACH_TEST_A"))
	assert.Equal(t, "file-only", get("OUTREACH_TEST_B"))

	get, err = config.NewLookup(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "", get("OUTREACH_TEST_B"))
}

func TestReadValueOrFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "v.txt", "  secret-from-file\n")

	got, err := config.ReadValueOrFile(p, "X")
	require.NoError(t, err)
	assert.Equal(t, "secret-from-file", got)

	got, err = config.ReadValueOrFile("inline-value", "X")
	require.NoError(t, err)
	assert.Equal(t, "inline-value", got)

	got, err = config.ReadValueOrFile("", "X")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
