package dossier

// JSON keys the synthesizer must return.
const (
	KeyProspectTitle   = "Prospect_Title"
	KeyHook            = "Halbert_Hook"
	KeyCapitalNeed     = "Capital_Need_Hypothesis"
	KeySubject         = "Selected_Email_Subject"
	KeyBody            = "Selected_Email_Body"
	FirstNameToken     = "[First Name]"
	LegacyProspectName = "[Prospect Name]"
)

// AssetKeys lists the five required keys in write-back order.
var AssetKeys = []string{KeyProspectTitle, KeyHook, KeyCapitalNeed, KeySubject, KeyBody}

// Assets are the outreach fields synthesized for one lead.
type Assets struct {
	ProspectTitle         string `json:"Prospect_Title"`
	HalbertHook           string `json:"Halbert_Hook"`
	CapitalNeedHypothesis string `json:"Capital_Need_Hypothesis"`
	EmailSubject          string `json:"Selected_Email_Subject"`
	EmailBody             string `json:"Selected_Email_Body"`
}

// Fields returns the assets keyed by their JSON names.
func (a Assets) Fields() map[string]string {
	return map[string]string{
		KeyProspectTitle: a.ProspectTitle,
		KeyHook:          a.HalbertHook,
		KeyCapitalNeed:   a.CapitalNeedHypothesis,
		KeySubject:       a.EmailSubject,
		KeyBody:          a.EmailBody,
	}
}

// AssetsFromFields is the inverse of Fields. Missing keys become "".
func AssetsFromFields(m map[string]string) Assets {
	return Assets{
		ProspectTitle:         m[KeyProspectTitle],
		HalbertHook:           m[KeyHook],
		CapitalNeedHypothesis: m[KeyCapitalNeed],
		EmailSubject:          m[KeySubject],
		EmailBody:             m[KeyBody],
	}
}
