//go:build gemini_e2e

package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shpitdev/dossier-outreach/internal/app"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/review"
)

func TestRun_RealGemini_EndToEnd(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Fatalf("GEMINI_API_KEY is required for gemini_e2e tests")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash"
	}

	ctx := context.Background()
	baseDir := t.TempDir()
	if artifactDir := os.Getenv("GEMINI_E2E_ARTIFACT_DIR"); artifactDir != "" {
		require.NoError(t, os.MkdirAll(artifactDir, 0o755))
		baseDir = artifactDir
	}

	// Synthetic lead only (public repo); this validates API and prompt-contract assumptions.
	path := filepath.Join(baseDir, "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Prospect_Name,Company_Name,Prospect_Email,Prospect_Phone,Status,Dossier_JSON,Sources\n"+
			"Jane Example,Example Manufacturing Co,jane@example.com,,\n"), 0o644))

	gen, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:         apiKey,
		Model:          model,
		BaseURL:        os.Getenv("GEMINI_BASE_URL"),
		MaxRetries:     2,
		RequestTimeout: 90 * time.Second,
	})
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Gemini.Model = model
	sender := &recordingSender{}
	a, err := app.New(ctx, cfg, nil,
		app.WithStore(lead.NewCSVStore(path)),
		app.WithProvider(&fakeProvider{perHit: 2}),
		app.WithGenerator(gen),
		app.WithSender(sender),
	)
	require.NoError(t, err)

	sum, err := a.Run(ctx, review.Always(review.Approve), app.RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Sent, "summary: %+v", sum)

	rows, err := lead.NewCSVStore(path).ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "Sent", column(t, rows, 1, "Status"))
	require.NotEmpty(t, column(t, rows, 1, "Selected_Email_Subject"))
	require.NotContains(t, column(t, rows, 1, "Selected_Email_Body"), "[First Name]")
	require.Len(t, sender.Sent(), 1)
}
