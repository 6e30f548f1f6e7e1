package synth

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Library holds the optional reference texts embedded in the synthesis prompt.
type Library struct {
	StyleExemplars  string
	ProvenTemplates string
}

// LoadLibrary reads both optional files. A missing file yields empty text.
func LoadLibrary(stylePath, provenPath string) (Library, error) {
	style, err := readOptional(stylePath)
	if err != nil {
		return Library{}, err
	}
	proven, err := readOptional(provenPath)
	if err != nil {
		return Library{}, err
	}
	return Library{StyleExemplars: style, ProvenTemplates: proven}, nil
}

func readOptional(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "synth: read %s", path)
	}
	return string(b), nil
}

const promptHeader = `Act as a world-class business intelligence analyst and a master direct-response copywriter.
Synthesize the Raw Intelligence Report below into a concise prospect dossier and a new, personalized outreach email. Use ONLY facts from the report; do not invent facts.
`

const promptOutput = `**Output Instructions:**
Return a single valid JSON object with exactly these five keys and no other text:

1. "Prospect_Title": the prospect's most likely job title, inferred from the data.
2. "Halbert_Hook": a single, specific, verifiable event, challenge or announcement from the report. This is the reason for the outreach.
3. "Capital_Need_Hypothesis": one sentence linking the hook to a likely need for working capital or growth financing.
4. "Selected_Email_Subject": a short, personal, curiosity-driven subject line.
5. "Selected_Email_Body": a new email body written from scratch that opens with the hook, uses short sentences and paragraphs, and ends with a low-friction call to action. The body MUST use "[First Name]" as the placeholder for the prospect's first name.
`

// buildPrompt embeds the report JSON, the optional library texts and the rules verbatim.
func buildPrompt(reportJSON string, lib Library, rules string) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	if s := strings.TrimSpace(lib.StyleExemplars); s != "" {
		b.WriteString("\n**Stylistic and tonal reference:**\n```\n")
		b.WriteString(s)
		b.WriteString("\n```\n")
	}
	if s := strings.TrimSpace(lib.ProvenTemplates); s != "" {
		b.WriteString("\n**Library of proven email principles (apply the strategy, do not copy a template):**\n```\n")
		b.WriteString(s)
		b.WriteString("\n```\n")
	}

	b.WriteString("\n**Raw Intelligence Report (source of truth):**\n```json\n")
	b.WriteString(reportJSON)
	b.WriteString("\n```\n\n")
	b.WriteString(promptOutput)

	if strings.TrimSpace(rules) != "" {
		b.WriteString("\n**Additional Email Generation Rules (must-follow):**\n```\n")
		b.WriteString(rules)
		b.WriteString("\n```\n")
	}
	return b.String()
}
