// Package lead reads prospect rows from a tabular lead source and writes pipeline results
// back to them.
package lead

import (
	"strings"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/schema"
)

// Logical fields.
const (
	FieldProspectName  = "Prospect_Name"
	FieldCompanyName   = "Company_Name"
	FieldProspectEmail = "Prospect_Email"
	FieldProspectPhone = "Prospect_Phone"
	FieldStatus        = "Status"
	FieldProspectTitle = "Prospect_Title"
	FieldHook          = "Halbert_Hook"
	FieldCapitalNeed   = "Capital_Need_Hypothesis"
	FieldEmailSubject  = "Selected_Email_Subject"
	FieldEmailBody     = "Selected_Email_Body"
	FieldDossierJSON   = "Dossier_JSON"
	FieldSources       = "Sources"
	FieldSkipReason    = "Skip_Reason"
	FieldIndustry      = "Industry"
)

// Status values written by the pipeline.
const (
	StatusNew           = "New"
	StatusProcessing    = "Processing"
	StatusReviewPending = "REVIEW_PENDING"
	StatusSent          = "Sent"
	StatusSkipped       = "Skipped"
)

// Failure status prefixes; the reason follows ": ".
const (
	FailResearch  = "Research Failed"
	FailSynthesis = "Synthesis Failed"
	FailSend      = "Send Failed"
	FailGeneric   = "Failed"
)

// MaxStatusLen keeps status cells under the spreadsheet cell-size comfort zone.
const MaxStatusLen = 499

// MaxCellLen is the Sheets per-cell character limit.
const MaxCellLen = 50000

// Contract lists every logical field and how the pipeline uses it.
func Contract() schema.Contract {
	return schema.Contract{Fields: []schema.Field{
		{Name: FieldProspectName, Role: schema.RoleInput, Description: "prospect full name"},
		{Name: FieldCompanyName, Role: schema.RoleInput, Description: "company name"},
		{Name: FieldProspectEmail, Role: schema.RoleInput, Description: "recipient address"},
		{Name: FieldProspectPhone, Role: schema.RoleInput, Description: "prospect phone"},
		{Name: FieldStatus, Role: schema.RoleState, Description: "pipeline status"},
		{Name: FieldProspectTitle, Role: schema.RoleOutput},
		{Name: FieldHook, Role: schema.RoleOutput},
		{Name: FieldCapitalNeed, Role: schema.RoleOutput},
		{Name: FieldEmailSubject, Role: schema.RoleOutput},
		{Name: FieldEmailBody, Role: schema.RoleOutput},
		{Name: FieldDossierJSON, Role: schema.RoleOptional, Description: "intelligence report JSON"},
		{Name: FieldSources, Role: schema.RoleOptional, Description: "source attributions JSON"},
		{Name: FieldSkipReason, Role: schema.RoleOptional},
		{Name: FieldIndustry, Role: schema.RoleOptional, Description: "externally supplied industry"},
	}}
}

// Lead is one data row. Row is the zero-based row index in the source (0 is the header).
type Lead struct {
	Row           int
	ProspectName  string
	CompanyName   string
	ProspectEmail string
	ProspectPhone string
	Status        string
	Industry      string
	// Values holds every mapped logical field of the row.
	Values map[string]string
}

// IsNew reports whether status marks an unprocessed lead: empty or "new" after trimming,
// case-insensitive.
func IsNew(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return s == "" || s == "new"
}

// FailureStatus formats "<prefix>: <reason>" with secrets removed, capped at MaxStatusLen.
func FailureStatus(prefix, reason string) string {
	reason = strings.Join(strings.Fields(redact.Secrets(reason)), " ")
	if reason == "" {
		reason = "unknown error"
	}
	return redact.Truncate(prefix+": "+reason, MaxStatusLen)
}
