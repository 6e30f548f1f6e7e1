package lead

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
)

// Adapter is the lead-source boundary of the pipeline. Prepare must succeed before any
// fetch or write.
type Adapter struct {
	store  Store
	logger *zap.Logger
	layout *Layout
}

func NewAdapter(store Store, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, logger: logger}
}

// Prepare resolves m against the current header, appends every missing "create" column
// in one header write, then re-reads and validates the layout. Nothing is written when the
// mapping has problems.
func (a *Adapter) Prepare(ctx context.Context, m Mapping) (*Layout, error) {
	rows, err := a.store.ReadAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "lead: read source")
	}
	header := headerOf(rows)

	p, problems := resolve(header, m, Contract())
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &MappingError{Problems: problems}
	}

	if len(p.creates) > 0 {
		cells := make([]Cell, 0, len(p.creates))
		for i, name := range p.creates {
			cells = append(cells, Cell{Row: 0, Col: len(header) + i, Value: name})
		}
		if err := a.store.WriteCells(ctx, cells); err != nil {
			return nil, eris.Wrap(err, "lead: append header columns")
		}
		a.logger.Info("lead source columns created", zap.Strings("columns", p.creates))

		rows, err = a.store.ReadAll(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "lead: re-read source")
		}
		header = headerOf(rows)
	}

	layout, problems := buildLayout(header, p.names)
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &MappingError{Problems: problems}
	}
	a.layout = layout
	return layout, nil
}

// Layout returns the layout resolved by Prepare, or nil.
func (a *Adapter) Layout() *Layout { return a.layout }

// FetchNewLeads returns rows whose status is empty or "new", in source order.
func (a *Adapter) FetchNewLeads(ctx context.Context) ([]Lead, error) {
	return a.fetch(ctx, IsNew)
}

// FetchByStatus returns rows whose trimmed status equals status, case-insensitive.
func (a *Adapter) FetchByStatus(ctx context.Context, status string) ([]Lead, error) {
	want := strings.TrimSpace(status)
	return a.fetch(ctx, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), want)
	})
}

func (a *Adapter) fetch(ctx context.Context, keep func(status string) bool) ([]Lead, error) {
	if a.layout == nil {
		return nil, eris.New("lead: Prepare must run before fetching")
	}
	rows, err := a.store.ReadAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "lead: read source")
	}

	fields := a.layout.Fields()
	var out []Lead
	for i := 1; i < len(rows); i++ {
		values := make(map[string]string, len(fields))
		for _, f := range fields {
			col, _ := a.layout.Col(f)
			if col < len(rows[i]) {
				values[f] = strings.TrimSpace(rows[i][col])
			}
		}
		l := Lead{
			Row:           i,
			ProspectName:  values[FieldProspectName],
			CompanyName:   values[FieldCompanyName],
			ProspectEmail: values[FieldProspectEmail],
			ProspectPhone: values[FieldProspectPhone],
			Status:        values[FieldStatus],
			Industry:      values[FieldIndustry],
			Values:        values,
		}
		if l.ProspectName == "" && l.CompanyName == "" && l.ProspectEmail == "" {
			continue
		}
		if keep(l.Status) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Update is everything written back for one lead.
type Update struct {
	Status string
	// Assets nil leaves the asset columns untouched.
	Assets      *dossier.Assets
	DossierJSON string
	Sources     string
	SkipReason  string
}

// WriteResult writes the status and every derived field present in the layout in a single
// batched call.
func (a *Adapter) WriteResult(ctx context.Context, l Lead, u Update) error {
	if a.layout == nil {
		return eris.New("lead: Prepare must run before writing")
	}
	if l.Row < 1 {
		return eris.Errorf("lead: invalid row %d", l.Row)
	}

	var cells []Cell
	add := func(field, value string, max int) {
		if col, ok := a.layout.Col(field); ok {
			cells = append(cells, Cell{Row: l.Row, Col: col, Value: redact.Truncate(value, max)})
		}
	}
	add(FieldStatus, u.Status, MaxStatusLen)
	if u.Assets != nil {
		add(FieldProspectTitle, u.Assets.ProspectTitle, MaxCellLen)
		add(FieldHook, u.Assets.HalbertHook, MaxCellLen)
		add(FieldCapitalNeed, u.Assets.CapitalNeedHypothesis, MaxCellLen)
		add(FieldEmailSubject, u.Assets.EmailSubject, MaxCellLen)
		add(FieldEmailBody, u.Assets.EmailBody, MaxCellLen)
	}
	if u.DossierJSON != "" {
		add(FieldDossierJSON, u.DossierJSON, MaxCellLen)
	}
	if u.Sources != "" {
		add(FieldSources, u.Sources, MaxCellLen)
	}
	if u.SkipReason != "" {
		add(FieldSkipReason, u.SkipReason, MaxCellLen)
	}

	if err := a.store.WriteCells(ctx, cells); err != nil {
		return eris.Wrapf(err, "lead: write row %d", l.Row)
	}
	return nil
}

// MarkStatus writes only the status cell.
func (a *Adapter) MarkStatus(ctx context.Context, l Lead, status string) error {
	return a.WriteResult(ctx, l, Update{Status: status})
}

func headerOf(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
