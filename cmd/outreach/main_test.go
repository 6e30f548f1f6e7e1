package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/dossier-outreach/internal/version"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.Current+"\n", out)
}

func TestCheckReportsEveryProblemWithExit2(t *testing.T) {
	t.Setenv("LEAD_SOURCE", "sheets")
	t.Setenv("GOOGLE_SHEET_ID", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SENDER_EMAIL", "")
	t.Setenv("SENDER_APP_PASSWORD", "")

	_, stderr, err := execute(t, "check", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.code)
	for _, want := range []string{
		"GOOGLE_SHEET_ID is required",
		"GEMINI_API_KEY is required",
		"SENDER_EMAIL is required",
		"SENDER_APP_PASSWORD is required",
	} {
		assert.Contains(t, stderr, want)
	}
}

func TestCheckPassesWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "master_prompt.txt")
	require.NoError(t, os.WriteFile(tmpl, []byte("Research {prospect_name}."), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(strings.Join([]string{
		"LEAD_SOURCE=csv",
		"LEADS_CSV=" + filepath.Join(dir, "leads.csv"),
		"GEMINI_API_KEY=test-key",
		"SENDER_EMAIL=me@example.com",
		"SENDER_APP_PASSWORD=app-password",
		"SEARCH_BACKENDS=duckduckgo",
		"PROMPT_TEMPLATE_PATH=" + tmpl,
	}, "\n")+"\n"), 0o600))

	out, stderr, err := execute(t, "check", "--env-file", envFile)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "configuration ok")
	assert.Contains(t, out, "lead source:     csv")
	assert.Contains(t, out, "search backends: duckduckgo")
}

func TestRulesCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm_rules.txt")

	out, _, err := execute(t, "rules", "list", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "no rules\n", out)

	_, _, err = execute(t, "rules", "add", "--file", path, "Offer", "at least", "$50k")
	require.NoError(t, err)
	out, _, err = execute(t, "rules", "add", "--file", path, "End with a question")
	require.NoError(t, err)
	assert.Equal(t, "1. Offer at least $50k\n2. End with a question\n", out)

	out, _, err = execute(t, "rules", "remove", "--file", path, "1")
	require.NoError(t, err)
	assert.Equal(t, "1. End with a question\n", out)

	_, _, err = execute(t, "rules", "remove", "--file", path, "one")
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.code)
}
