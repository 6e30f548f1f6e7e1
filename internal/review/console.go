package review

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
)

// ErrNoDecision is returned when input ends before the reviewer answers.
var ErrNoDecision = eris.New("review: input closed before a decision was made")

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6B7280")
	warning = lipgloss.Color("#FFC107")
)

type consoleStyles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	body   lipgloss.Style
	prompt lipgloss.Style
	warn   lipgloss.Style
}

// Console asks a human on a terminal. "1" approves and "2" skips; anything else re-prompts.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	styles consoleStyles
	// ShowDossier prints the full report JSON before the draft.
	ShowDossier bool
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:  bufio.NewReader(in),
		out: out,
		styles: consoleStyles{
			title:  r.NewStyle().Bold(true).Foreground(accent),
			label:  r.NewStyle().Bold(true),
			muted:  r.NewStyle().Foreground(muted),
			body:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
			prompt: r.NewStyle().Bold(true),
			warn:   r.NewStyle().Foreground(warning),
		},
		ShowDossier: true,
	}
}

func (c *Console) Decide(ctx context.Context, d Draft) (Decision, error) {
	c.render(d)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, _ = fmt.Fprint(c.out, c.styles.prompt.Render("[1] Approve & send   [2] Skip > "))
		line, err := c.in.ReadString('\n')
		switch strings.TrimSpace(line) {
		case "1":
			return Approve, nil
		case "2":
			return Skip, nil
		}
		if err != nil {
			if err == io.EOF {
				return 0, ErrNoDecision
			}
			return 0, eris.Wrap(err, "review: read decision")
		}
		_, _ = fmt.Fprintln(c.out, c.styles.warn.Render("Please enter 1 or 2."))
	}
}

func (c *Console) render(d Draft) {
	s := c.styles
	w := c.out
	l := d.Lead
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Row %d: %s at %s", l.Row, l.ProspectName, l.CompanyName)))
	_, _ = fmt.Fprintln(w, s.muted.Render(fmt.Sprintf("%s  %s", l.ProspectEmail, l.ProspectPhone)))

	md := d.Report.Metadata
	_, _ = fmt.Fprintln(w, s.muted.Render(fmt.Sprintf(
		"industry: %s | queries: %d (%d successful) | prospect results: %t",
		orDash(md.Industry), md.TotalQueries, md.SuccessfulSearches, md.ProspectResultsFound)))

	if c.ShowDossier {
		if b, err := json.MarshalIndent(d.Report, "", "  "); err == nil {
			_, _ = fmt.Fprintln(w, s.label.Render("Dossier"))
			_, _ = fmt.Fprintln(w, string(b))
		}
	}

	a := d.Assets
	for _, kv := range [][2]string{
		{"Title", a.ProspectTitle},
		{"Hook", a.HalbertHook},
		{"Capital need", a.CapitalNeedHypothesis},
		{"Subject", a.EmailSubject},
	} {
		_, _ = fmt.Fprintf(w, "%s %s\n", s.label.Render(kv[0]+":"), kv[1])
	}
	_, _ = fmt.Fprintln(w, s.body.Render(a.EmailBody))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
