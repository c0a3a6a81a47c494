package changelog

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/branchflow/branchflow/internal/domain/changes"
)

// entryTemplate renders one version section of the changelog document.
// Empty buckets are omitted entirely.
const entryTemplate = `## {{ .Version }} ({{ .Date }})
{{ range .Sections }}
### {{ title .Title }}

{{ range .Lines }}{{ . }}
{{ end }}{{ end }}`

// documentHeader is written once at the top of a fresh changelog document.
const documentHeader = "# Changelog\n"

var titleCaser = cases.Title(language.English)

var tmpl = template.Must(
	template.New("entry").
		Funcs(template.FuncMap{"title": titleCaser.String}).
		Parse(entryTemplate),
)

// entryData is the template payload for one entry.
type entryData struct {
	Version  string
	Date     string
	Sections []sectionData
}

type sectionData struct {
	Title string
	Lines []string
}

// Renderer renders entries to markdown and merges them into the
// cumulative changelog document.
type Renderer struct{}

// NewRenderer creates a new Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the markdown for a single entry. Sections appear in
// priority order (breaking, feature, fix, chore) and empty buckets are
// omitted.
func (r *Renderer) Render(e Entry) (string, error) {
	data := entryData{
		Version: e.Version().String(),
		Date:    e.Date().Format("2006-01-02"),
	}

	for _, class := range changes.SectionOrder() {
		lines := e.Section(class)
		if len(lines) == 0 {
			continue
		}
		data.Sections = append(data.Sections, sectionData{
			Title: class.SectionTitle(),
			Lines: lines,
		})
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render changelog entry: %w", err)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

// Merge prepends a rendered entry to the cumulative document, keeping
// reverse-chronological order. Merging the same version twice replaces
// its prior section rather than duplicating it, so re-runs are
// idempotent.
func (r *Renderer) Merge(document string, e Entry) (string, error) {
	rendered, err := r.Render(e)
	if err != nil {
		return "", err
	}

	document = removeSection(document, e.Version().String())

	header, rest := splitHeader(document)
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString(rendered)
	if rest != "" {
		sb.WriteString("\n")
		sb.WriteString(rest)
	}
	return sb.String(), nil
}

// sectionStartRegex matches the heading line of a version section.
var sectionHeadingRegex = regexp.MustCompile(`(?m)^## `)

// removeSection deletes the section for the given version, if present.
func removeSection(document, ver string) string {
	prefix := "## " + ver + " "
	locs := sectionHeadingRegex.FindAllStringIndex(document, -1)
	for i, loc := range locs {
		if !strings.HasPrefix(document[loc[0]:], prefix) {
			continue
		}
		end := len(document)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		return document[:loc[0]] + document[end:]
	}
	return document
}

// splitHeader separates the document title from the version sections.
func splitHeader(document string) (header, rest string) {
	trimmed := strings.TrimSpace(document)
	if trimmed == "" {
		return documentHeader, ""
	}

	if loc := sectionHeadingRegex.FindStringIndex(document); loc != nil {
		header = strings.TrimRight(document[:loc[0]], "\n")
		rest = strings.TrimSpace(document[loc[0]:])
		if header == "" {
			header = strings.TrimRight(documentHeader, "\n")
		}
		return header + "\n", rest + "\n"
	}

	return strings.TrimRight(document, "\n") + "\n", ""
}
