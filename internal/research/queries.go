package research

import (
	"fmt"
	"slices"
	"strings"
)

// Research categories of the company phase. Each fills one report section.
const (
	CategoryCompany     = "company"
	CategoryIndustry    = "industry"
	CategoryProspect    = "prospect"
	CategoryCompetitive = "competitive"
)

type queryType struct {
	Name    string
	Queries []string
}

type category struct {
	Name  string
	Types []queryType
}

func quoted(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(out, " ")
}

func prospectQueries(prospect, company string) []string {
	base := quoted(prospect, company)
	return []string{
		base,
		base + " linkedin",
		base + " title role",
		base + " executive",
		base + " contact",
	}
}

func supplementaryQueries(prospect, company string) []string {
	base := quoted(prospect, company)
	return []string{base + " professional", base + " business"}
}

// industryDetectionQueries adds the phone and the email domain when known.
func industryDetectionQueries(company, phone, email string) []string {
	c := quoted(company)
	qs := []string{
		c + " company profile",
		c + " about us",
		c + " business description",
		c + " what we do",
		c + " services",
		c + " products",
		c + " industry sector",
	}
	if p := strings.TrimSpace(phone); p != "" {
		qs = append(qs, quoted(company, p))
	}
	if _, domain, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && domain != "" {
		qs = append(qs, quoted(company, domain))
	}
	return qs
}

// researchPlan lists every category in report order. The industry category is omitted
// when the industry is unknown.
func researchPlan(prospect, company, industry string) []category {
	c := quoted(company)
	plan := []category{{
		Name: CategoryCompany,
		Types: []queryType{
			{Name: "company_overview", Queries: []string{
				c + " company profile",
				c + " about us",
				c + " company overview",
				c + " business description",
			}},
			{Name: "company_news", Queries: []string{
				c + " news",
				c + " press release",
				c + " announcement",
				c + " funding round",
				c + " expansion",
				c + " acquisition",
				c + " partnership",
			}},
			{Name: "company_financials", Queries: []string{
				c + " revenue",
				c + " funding",
				c + " investment",
				c + " financial results",
				c + " annual report",
			}},
		},
	}}

	if !IsUnknown(industry) {
		i := quoted(industry)
		plan = append(plan, category{
			Name: CategoryIndustry,
			Types: []queryType{
				{Name: "industry_trends", Queries: []string{
					i + " industry trends",
					i + " market analysis",
					i + " growth opportunities",
					i + " challenges",
				}},
				{Name: "industry_funding", Queries: []string{
					i + " funding trends",
					i + " investment opportunities",
					i + " capital needs",
				}},
			},
		})
	}

	pc := quoted(prospect, company)
	p := quoted(prospect)
	plan = append(plan,
		category{
			Name: CategoryProspect,
			Types: []queryType{
				{Name: "prospect_role", Queries: []string{
					pc + " title role",
					pc + " linkedin",
					pc + " position",
					pc + " executive",
				}},
				{Name: "prospect_background", Queries: []string{
					p + " professional background",
					p + " career history",
					p + " business experience",
				}},
			},
		},
		category{
			Name: CategoryCompetitive,
			Types: []queryType{
				{Name: "competitors", Queries: []string{
					c + " competitors",
					c + " vs competitors",
					c + " market position",
				}},
				{Name: "market_opportunity", Queries: []string{
					c + " growth opportunities",
					c + " market expansion",
					c + " new markets",
				}},
			},
		},
	)
	return plan
}

// allowed reports whether a query type runs under the essential filter.
func allowed(essential map[string][]string, cat, typ string) bool {
	types, restricted := essential[cat]
	return !restricted || slices.Contains(types, typ)
}
