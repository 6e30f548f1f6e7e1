package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/app"
	"github.com/shpitdev/dossier-outreach/internal/config"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/review"
	"github.com/shpitdev/dossier-outreach/internal/rules"
	"github.com/shpitdev/dossier-outreach/internal/version"
)

type globalFlags struct {
	envFile   string
	verbose   bool
	logFormat string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "outreach",
		Short: "Research leads, draft outreach emails and send the approved ones",
		Long: `outreach reads prospect rows from a Google Sheet (or a local CSV), researches each
prospect and company on the web, asks Gemini for a personalized email, and sends the
drafts a reviewer approves. Results are written back to the same row.

Configuration comes from the environment and an optional .env file; see "outreach check".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "Optional .env file; process environment wins")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "json", `Log encoder: "json" or "console"`)

	root.AddCommand(
		newRunCmd(g),
		newPrepareCmd(g),
		newReviewCmd(g),
		newRulesCmd(g),
		newCheckCmd(g),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var opts app.RunOptions
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process new leads and review each draft on the console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var extra []app.Option
			if dryRun {
				extra = append(extra, app.WithDryRun())
			}
			a, logger, err := g.build(cmd, extra...)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(); _ = logger.Sync() }()

			console := review.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
			sum, err := a.Run(cmd.Context(), console, opts)
			printSummary(cmd.OutOrStdout(), sum)
			return runError(err)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Process at most N leads (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log approved emails instead of sending them; leads keep their status")
	return cmd
}

func newPrepareCmd(g *globalFlags) *cobra.Command {
	var opts app.RunOptions
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Research and draft new leads, leaving them as REVIEW_PENDING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logger, err := g.build(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(); _ = logger.Sync() }()

			sum, err := a.Prepare(cmd.Context(), opts)
			printSummary(cmd.OutOrStdout(), sum)
			return runError(err)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Process at most N leads (0 = all)")
	return cmd
}

func newReviewCmd(g *globalFlags) *cobra.Command {
	var opts app.RunOptions
	var dryRun, hideDossier bool
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Approve or skip drafts left as REVIEW_PENDING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var extra []app.Option
			if dryRun {
				extra = append(extra, app.WithDryRun())
			}
			a, logger, err := g.build(cmd, extra...)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(); _ = logger.Sync() }()

			console := review.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
			console.ShowDossier = !hideDossier
			sum, err := a.Review(cmd.Context(), console, opts)
			printSummary(cmd.OutOrStdout(), sum)
			return runError(err)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Review at most N drafts (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log approved emails instead of sending them; leads keep their status")
	cmd.Flags().BoolVar(&hideDossier, "hide-dossier", false, "Do not print the dossier JSON before each draft")
	return cmd
}

func newRulesCmd(g *globalFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List, add or remove the email generation rules",
	}
	cmd.PersistentFlags().StringVar(&path, "file", "", "Rules file (default: RULES_PATH or llm_rules.txt)")

	resolve := func() (string, error) {
		if path != "" {
			return path, nil
		}
		get, err := config.NewLookup(g.envFile)
		if err != nil {
			return "", err
		}
		if p := get("RULES_PATH"); p != "" {
			return p, nil
		}
		return "llm_rules.txt", nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the rules with their numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			rs, err := rules.Load(p)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), rs)
			return nil
		},
	}, &cobra.Command{
		Use:   "add <rule text>",
		Short: "Append a rule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			rs, err := rules.Add(p, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), rs)
			return nil
		},
	}, &cobra.Command{
		Use:   "remove <n>",
		Short: "Remove rule number n",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return &exitError{code: 2, err: fmt.Errorf("rule number %q is not an integer", args[0])}
			}
			p, err := resolve()
			if err != nil {
				return err
			}
			rs, err := rules.Remove(p, n)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), rs)
			return nil
		},
	})
	return cmd
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration without contacting any service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g.envFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "configuration ok\n")
			_, _ = fmt.Fprintf(w, "  lead source:     %s\n", cfg.LeadSource)
			_, _ = fmt.Fprintf(w, "  search backends: %s\n", strings.Join(cfg.Search.Backends, ", "))
			_, _ = fmt.Fprintf(w, "  gemini model:    %s\n", cfg.Gemini.Model)
			_, _ = fmt.Fprintf(w, "  smtp:            %s:%d\n", cfg.SMTP.Host, cfg.SMTP.Port)
			_, _ = fmt.Fprintf(w, "  deep research:   %t\n", cfg.Research.DeepResearch)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Current)
		},
	}
}

// build loads configuration, the logger and the application context.
func (g *globalFlags) build(cmd *cobra.Command, opts ...app.Option) (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig(cmd, g.envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{Verbose: g.verbose, Format: g.logFormat})
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	logger.Info("outreach starting",
		zap.String("run_id", a.RunID()),
		zap.String("version", version.Current),
		zap.String("command", cmd.Name()))
	return a, logger, nil
}

// loadConfig prints every configuration problem on its own line and maps them to exit 2.
func loadConfig(cmd *cobra.Command, envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		w := cmd.ErrOrStderr()
		_, _ = fmt.Fprintln(w, "configuration problems:")
		for _, p := range verr.Problems {
			_, _ = fmt.Fprintf(w, "  - %s\n", p)
		}
		return nil, &exitError{code: 2, err: fmt.Errorf("%d configuration problem(s)", len(verr.Problems))}
	}
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	return cfg, nil
}

// runError maps lead-source layout problems to exit 2; everything else is exit 1.
func runError(err error) error {
	if err == nil {
		return nil
	}
	var merr *lead.MappingError
	if errors.As(err, &merr) {
		return &exitError{code: 2, err: err}
	}
	return err
}

func printSummary(w io.Writer, s app.Summary) {
	_, _ = fmt.Fprintf(w, "leads=%d sent=%d skipped=%d review_pending=%d failed=%d previewed=%d\n",
		s.Leads, s.Sent, s.Skipped, s.Pending, s.Failed, s.Previewed)
}

func printRules(w io.Writer, rs []string) {
	if len(rs) == 0 {
		_, _ = fmt.Fprintln(w, "no rules")
		return
	}
	for i, r := range rs {
		_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, r)
	}
}
