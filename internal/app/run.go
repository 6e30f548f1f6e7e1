package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/research"
	"github.com/shpitdev/dossier-outreach/internal/review"
	"github.com/shpitdev/dossier-outreach/internal/rules"
	"github.com/shpitdev/dossier-outreach/internal/synth"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/core"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/worker"
)

// RunOptions limits one pass over the lead source.
type RunOptions struct {
	// Limit caps the number of leads processed; 0 means no limit.
	Limit int
}

// Summary counts lead outcomes of one pass.
type Summary struct {
	Leads   int
	Sent    int
	Skipped int
	Pending int
	Failed  int
	// Previewed counts dry-run approvals of new leads; they stay new.
	Previewed int
}

func (s *Summary) record(status string) {
	switch status {
	case lead.StatusSent:
		s.Sent++
	case lead.StatusNew:
		s.Previewed++
	case lead.StatusSkipped:
		s.Skipped++
	case lead.StatusReviewPending:
		s.Pending++
	default:
		s.Failed++
	}
}

func (s Summary) fields() []zap.Field {
	return []zap.Field{
		zap.Int("leads", s.Leads),
		zap.Int("sent", s.Sent),
		zap.Int("skipped", s.Skipped),
		zap.Int("review_pending", s.Pending),
		zap.Int("failed", s.Failed),
		zap.Int("previewed", s.Previewed),
	}
}

// pass holds the per-run collaborators. Prompt files are read fresh for every pass.
type pass struct {
	adapter      *lead.Adapter
	orchestrator *research.Orchestrator
	synthesizer  *synth.Synthesizer
	dispatcher   *review.Dispatcher
	rules        string
}

// Run researches, synthesizes and reviews every new lead with decider.
func (a *App) Run(ctx context.Context, decider review.Decider, opts RunOptions) (Summary, error) {
	return a.runNew(ctx, "run", decider, opts)
}

// Prepare researches and synthesizes every new lead and parks it as REVIEW_PENDING.
func (a *App) Prepare(ctx context.Context, opts RunOptions) (Summary, error) {
	return a.runNew(ctx, "prepare", review.Always(review.Defer), opts)
}

func (a *App) runNew(ctx context.Context, mode string, decider review.Decider, opts RunOptions) (Summary, error) {
	logger := a.logger.With(zap.String("mode", mode))
	start := time.Now()

	p, err := a.newPass(ctx, decider, true)
	if err != nil {
		return Summary{}, err
	}
	leads, err := p.adapter.FetchNewLeads(ctx)
	if err != nil {
		return Summary{}, err
	}
	leads = limit(leads, opts.Limit)
	logger.Info("run start", zap.Int("new_leads", len(leads)), zap.Duration("lead_delay", a.cfg.LeadDelay))

	sum, err := a.processAll(ctx, p, leads, func(ctx context.Context, l lead.Lead) (string, error) {
		return a.processLead(ctx, p, l)
	})
	logger.Info("run complete", append(sum.fields(), logging.Duration(time.Since(start)))...)
	return sum, err
}

// Review resumes every REVIEW_PENDING row with decider. Nothing is researched or
// synthesized again.
func (a *App) Review(ctx context.Context, decider review.Decider, opts RunOptions) (Summary, error) {
	logger := a.logger.With(zap.String("mode", "review"))
	start := time.Now()

	p, err := a.newPass(ctx, decider, false)
	if err != nil {
		return Summary{}, err
	}
	leads, err := p.adapter.FetchByStatus(ctx, lead.StatusReviewPending)
	if err != nil {
		return Summary{}, err
	}
	leads = limit(leads, opts.Limit)
	logger.Info("review start", zap.Int("pending_leads", len(leads)))

	sum, err := a.processAll(ctx, p, leads, func(ctx context.Context, l lead.Lead) (string, error) {
		out, err := p.dispatcher.Resume(ctx, draftFromRow(l))
		return out.Status, err
	})
	logger.Info("review complete", append(sum.fields(), logging.Duration(time.Since(start)))...)
	return sum, err
}

func (a *App) newPass(ctx context.Context, decider review.Decider, withResearch bool) (*pass, error) {
	adapter := lead.NewAdapter(a.store, a.logger)
	if _, err := adapter.Prepare(ctx, lead.Mapping(a.cfg.Columns)); err != nil {
		return nil, err
	}
	p := &pass{
		adapter:    adapter,
		dispatcher: review.NewDispatcher(decider, a.sender, adapter, a.signature, a.logger),
	}
	if !withResearch {
		return p, nil
	}

	rs, err := rules.Load(a.cfg.Files.Rules)
	if err != nil {
		return nil, err
	}
	p.rules = rules.Text(rs)

	lib, err := synth.LoadLibrary(a.cfg.Files.StyleExemplars, a.cfg.Files.ProvenTemplates)
	if err != nil {
		return nil, err
	}
	p.synthesizer = synth.New(a.generator, lib, a.logger)

	var ropts []research.Option
	if a.cfg.Research.DeepResearch {
		tmpl, err := research.LoadTemplate(a.cfg.Files.PromptTemplate)
		if err != nil {
			return nil, err
		}
		ropts = append(ropts, research.WithDeepResearch(research.NewDeepResearcher(a.generator, tmpl, a.logger)))
	}
	p.orchestrator = research.NewOrchestrator(a.provider, research.NewClassifier(a.generator, a.logger), a.cfg.Research, a.logger, ropts...)
	a.logger.Info("prompt inputs loaded",
		zap.Int("rules", len(rs)),
		zap.Bool("style_exemplars", lib.StyleExemplars != ""),
		zap.Bool("proven_templates", lib.ProvenTemplates != ""),
		zap.Bool("deep_research", a.cfg.Research.DeepResearch))
	return p, nil
}

// processAll runs handle over leads in source order. A lead error or panic becomes a
// failure status on that row and the pass continues. A draft left without a decision is
// already parked and stops the pass, as does a failed status write.
func (a *App) processAll(
	ctx context.Context,
	p *pass,
	leads []lead.Lead,
	handle func(ctx context.Context, l lead.Lead) (string, error),
) (Summary, error) {
	sum := Summary{Leads: len(leads)}
	processor := core.ProcessFunc[lead.Lead, string](handle)

	_, err := worker.ProcessInOrder(ctx, leads, processor, func(res worker.Result[lead.Lead, string]) error {
		l := res.Input
		logger := a.logger.With(zap.Int("row", l.Row), zap.String("prospect", l.ProspectName))
		status := res.Output
		var undecided *review.UndecidedError
		if errors.As(res.Err, &undecided) {
			sum.record(status)
			logger.Warn("pass stopped: no review decision", logging.Err(res.Err),
				zap.Int("completed", res.Index+1),
				zap.Int("total", len(leads)))
			return res.Err
		}
		if res.Err != nil {
			logger.Error("lead failed", logging.Err(res.Err))
			status = lead.FailureStatus(lead.FailGeneric, res.Err.Error())
			if err := p.adapter.MarkStatus(ctx, l, status); err != nil {
				return eris.Wrapf(err, "app: record failure for row %d", l.Row)
			}
		}
		sum.record(status)
		logger.Info("lead done",
			zap.String("status", status),
			zap.Int("completed", res.Index+1),
			zap.Int("total", len(leads)))

		if res.Index < len(leads)-1 {
			return a.sleep(ctx, a.cfg.LeadDelay)
		}
		return nil
	}, worker.FailurePolicyPartialOutput)
	return sum, err
}

// processLead takes one new lead through skip rules, research, synthesis and review and
// returns the status written for it.
func (a *App) processLead(ctx context.Context, p *pass, l lead.Lead) (string, error) {
	logger := a.logger.With(zap.Int("row", l.Row), zap.String("prospect", l.ProspectName))

	if reason, ok := a.skipRules.Match(l); ok {
		logger.Info("lead skipped by rule", zap.String("reason", reason))
		err := p.adapter.WriteResult(ctx, l, lead.Update{Status: lead.StatusSkipped, SkipReason: reason})
		return lead.StatusSkipped, err
	}

	if err := p.adapter.MarkStatus(ctx, l, lead.StatusProcessing); err != nil {
		return "", err
	}

	report := p.orchestrator.Research(ctx, l, l.Industry)
	dossierJSON, err := dossier.EncodeReport(report)
	if err != nil {
		return "", err
	}
	if !report.OK() {
		logger.Warn("research failed", zap.String("reason", report.Reason()))
		status := lead.FailureStatus(lead.FailResearch, report.Reason())
		return status, p.adapter.WriteResult(ctx, l, lead.Update{Status: status, DossierJSON: dossierJSON})
	}
	rep, _ := report.Value()

	assets := p.synthesizer.Synthesize(ctx, report, l.ProspectName, p.rules)
	if !assets.OK() {
		logger.Warn("synthesis failed", zap.String("reason", assets.Reason()))
		status := lead.FailureStatus(lead.FailSynthesis, assets.Reason())
		return status, p.adapter.WriteResult(ctx, l, lead.Update{Status: status, DossierJSON: dossierJSON})
	}
	as, _ := assets.Value()

	sources, err := sourcesJSON(rep)
	if err != nil {
		return "", err
	}
	out, err := p.dispatcher.Process(ctx, review.Draft{
		Lead:        l,
		Report:      rep,
		Assets:      as,
		DossierJSON: dossierJSON,
		Sources:     sources,
	})
	return out.Status, err
}

// draftFromRow rebuilds a parked draft from the values written by Prepare.
func draftFromRow(l lead.Lead) review.Draft {
	d := review.Draft{
		Lead:        l,
		Assets:      dossier.AssetsFromFields(l.Values),
		DossierJSON: l.Values[lead.FieldDossierJSON],
		Sources:     l.Values[lead.FieldSources],
	}
	if rep, ok := dossier.DecodeReport(d.DossierJSON).Value(); ok {
		d.Report = rep
	}
	return d
}

func sourcesJSON(rep dossier.Report) (string, error) {
	list := rep.SourceList()
	if len(list) == 0 {
		return "", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", eris.Wrap(err, "app: encode sources")
	}
	return string(b), nil
}

func limit(leads []lead.Lead, n int) []lead.Lead {
	if n > 0 && len(leads) > n {
		return leads[:n]
	}
	return leads
}
