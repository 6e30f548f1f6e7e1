// Package research builds the intelligence report for one lead: prospect-specific search,
// industry detection, company research and an optional grounded deep-research pass.
package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/config"
	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/search"
)

// ErrMissingLeadInfo is the failure reason for leads without a prospect or company name.
const ErrMissingLeadInfo = "missing critical lead information"

// Search strategies recorded in the prospect section.
const (
	StrategyProspectPrimary = "prospect_name_company_name_primary"
	StrategyCompanyOnly     = "company_research_only"
)

// Orchestrator sequences the research phases. Phases run one query at a time.
type Orchestrator struct {
	provider   search.Provider
	classifier *Classifier
	deep       *DeepResearcher
	tuning     config.ResearchTuning
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDeepResearch enables the grounded pass when tuning.DeepResearch is set.
func WithDeepResearch(d *DeepResearcher) Option {
	return func(o *Orchestrator) { o.deep = d }
}

// WithClock overrides time.Now for timestamps and phase budgets.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(provider search.Provider, classifier *Classifier, tuning config.ResearchTuning, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		provider:   provider,
		classifier: classifier,
		tuning:     tuning,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// counters tracks query totals across phases.
type counters struct {
	queries    int
	successful int
}

// Research builds the report for l. industry is the externally supplied industry, or "".
// It never panics and never returns a Go error: total failure is a failed Result.
func (o *Orchestrator) Research(ctx context.Context, l lead.Lead, industry string) (res dossier.Result[dossier.Report]) {
	prospect := strings.TrimSpace(l.ProspectName)
	company := strings.TrimSpace(l.CompanyName)
	logger := o.logger.With(zap.String("prospect", prospect), zap.String("company", company))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("research panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = dossier.Fail[dossier.Report](fmt.Sprintf("research panicked: %v", r))
		}
	}()

	if prospect == "" || company == "" {
		return dossier.Fail[dossier.Report](ErrMissingLeadInfo)
	}

	industry = strings.TrimSpace(industry)
	rep := dossier.Report{
		Company:     dossier.Section{},
		Industry:    dossier.Section{},
		Prospect:    dossier.Section{},
		Competitive: dossier.Section{},
		Metadata: dossier.Metadata{
			CompanyName:  company,
			ProspectName: prospect,
			Industry:     industry,
		},
	}
	var n counters

	// Phase 1: prospect-specific.
	start := o.now()
	profile := o.prospectPhase(ctx, &n, prospect, company)
	rep.ProspectSpecific = dossier.ProspectIntel{
		Profile:        keepFirst(profile, o.tuning.ProfileKeep),
		TotalResults:   len(profile),
		SearchStrategy: StrategyCompanyOnly,
	}
	if len(profile) > 0 {
		rep.ProspectSpecific.SearchStrategy = StrategyProspectPrimary
		rep.Metadata.ProspectResultsFound = true
	}
	o.phaseDone(logger, "prospect", start, o.tuning.Budgets.Prospect, zap.Int("results", len(profile)))
	if err := ctx.Err(); err != nil {
		return dossier.Fail[dossier.Report]("research cancelled: " + err.Error())
	}

	// Phase 2: industry detection.
	start = o.now()
	rep.IndustryDetection = o.industryPhase(ctx, &n, l, industry, profile)
	rep.Metadata.Industry = rep.IndustryDetection.DetectedIndustry
	rep.Metadata.IndustryFromProspect = rep.IndustryDetection.FromProspect
	o.phaseDone(logger, "industry", start, o.tuning.Budgets.Industry,
		zap.String("industry", rep.Metadata.Industry),
		zap.String("method", rep.IndustryDetection.Method))
	if err := ctx.Err(); err != nil {
		return dossier.Fail[dossier.Report]("research cancelled: " + err.Error())
	}

	// Phase 3: company research.
	start = o.now()
	o.companyPhase(ctx, &n, &rep, prospect, company)
	o.phaseDone(logger, "company", start, o.tuning.Budgets.Company,
		zap.Int("company_types", len(rep.Company)),
		zap.Int("industry_types", len(rep.Industry)))
	if err := ctx.Err(); err != nil {
		return dossier.Fail[dossier.Report]("research cancelled: " + err.Error())
	}

	rep.Metadata.TotalQueries = n.queries
	rep.Metadata.SuccessfulSearches = n.successful
	rep.Lead = dossier.LeadMetadata{
		ProspectName:     prospect,
		CompanyName:      company,
		ProspectEmail:    strings.TrimSpace(l.ProspectEmail),
		ProspectPhone:    strings.TrimSpace(l.ProspectPhone),
		DetectedIndustry: rep.Metadata.Industry,
		EnrichedAt:       o.now().UTC(),
	}

	if o.deep != nil && o.tuning.DeepResearch {
		start = o.now()
		rep.DeepResearch = o.deep.Run(ctx, l)
		logger.Info("research phase complete",
			zap.String("phase", "deep_research"),
			logging.Duration(o.now().Sub(start)),
			zap.Int("sources", len(rep.DeepResearch.Sources)),
			zap.Bool("failed", rep.DeepResearch.Error != ""))
	}

	logger.Info("research complete",
		zap.Int("total_queries", n.queries),
		zap.Int("successful_searches", n.successful),
		zap.Bool("prospect_results_found", rep.Metadata.ProspectResultsFound),
		zap.String("industry", rep.Metadata.Industry))
	return dossier.Ok(rep)
}

func (o *Orchestrator) prospectPhase(ctx context.Context, n *counters, prospect, company string) []search.Result {
	results := o.runQueries(ctx, n, prospectQueries(prospect, company), o.tuning.ProspectMaxResults, search.TypeProspect)
	if len(results) < o.tuning.SupplementaryThreshold && ctx.Err() == nil {
		o.logger.Debug("few prospect results, running supplementary queries", zap.Int("results", len(results)))
		more := o.runQueries(ctx, n, supplementaryQueries(prospect, company), o.tuning.SupplementaryMaxResults, search.TypeProspectAdditional)
		results = append(results, more...)
	}
	return results
}

func (o *Orchestrator) industryPhase(ctx context.Context, n *counters, l lead.Lead, provided string, profile []search.Result) dossier.Detection {
	company := strings.TrimSpace(l.CompanyName)
	switch {
	case provided != "":
		return dossier.Detection{DetectedIndustry: provided, Method: dossier.DetectionProvided}
	case len(profile) > 0:
		return dossier.Detection{
			DetectedIndustry: o.classifier.Classify(ctx, company, profile),
			Method:           dossier.DetectionProspectResults,
			ResultsAnalyzed:  min(len(profile), classifierMaxResults),
			FromProspect:     true,
		}
	default:
		qs := industryDetectionQueries(company, l.ProspectPhone, l.ProspectEmail)
		results := o.runQueries(ctx, n, qs, o.tuning.IndustryMaxResults, search.TypeIndustryDetection)
		return dossier.Detection{
			DetectedIndustry: o.classifier.Classify(ctx, company, results),
			Method:           dossier.DetectionDedicatedSearch,
			ResultsAnalyzed:  min(len(results), classifierMaxResults),
		}
	}
}

func (o *Orchestrator) companyPhase(ctx context.Context, n *counters, rep *dossier.Report, prospect, company string) {
	sections := map[string]dossier.Section{
		CategoryCompany:     rep.Company,
		CategoryIndustry:    rep.Industry,
		CategoryProspect:    rep.Prospect,
		CategoryCompetitive: rep.Competitive,
	}
	for _, cat := range researchPlan(prospect, company, rep.Metadata.Industry) {
		for _, qt := range cat.Types {
			if !allowed(o.tuning.Essential, cat.Name, qt.Name) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			qs := keepFirst(qt.Queries, o.tuning.QueriesPerType)
			sections[cat.Name][qt.Name] = o.runQueries(ctx, n, qs, o.tuning.CompanyMaxResults, search.TypeCompanyResearch)
		}
	}
}

func (o *Orchestrator) runQueries(ctx context.Context, n *counters, queries []string, max int, typ search.Type) []search.Result {
	var out []search.Result
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		n.queries++
		b := o.provider.Search(ctx, search.Query{Text: q, MaxResults: max, Type: typ})
		if b.Succeeded > 0 {
			n.successful++
		}
		out = append(out, b.Results...)
	}
	return out
}

func (o *Orchestrator) phaseDone(logger *zap.Logger, phase string, start time.Time, budget time.Duration, fields ...zap.Field) {
	elapsed := o.now().Sub(start)
	fields = append([]zap.Field{zap.String("phase", phase), logging.Duration(elapsed)}, fields...)
	logger.Info("research phase complete", fields...)
	if budget > 0 && elapsed > budget {
		logger.Warn("research phase over budget", zap.String("phase", phase), logging.Duration(elapsed), zap.Duration("budget", budget))
	}
}

func keepFirst[T any](s []T, n int) []T {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
