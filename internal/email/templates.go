package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var sequenceShell = template.Must(template.ParseFS(templateFS, "templates/sequence.html"))

// templateSpec is the copy for one sequence email. Body paragraphs and the
// subject may contain {{first_name}} style placeholders filled from Vars.
type templateSpec struct {
	Subject    string
	Heading    string
	Paragraphs []string
	CTALabel   string
	CTAURL     string
}

type sequenceEmailData struct {
	Title      string
	Heading    string
	Paragraphs []string
	CTALabel   string
	CTAURL     string
}

func lookupTemplate(templateID string) (templateSpec, error) {
	spec, ok := templates[templateID]
	if !ok {
		return templateSpec{}, Permanent("unknown template "+templateID, nil)
	}
	return spec, nil
}

func renderSubject(spec templateSpec, vars Vars) string {
	return expandVars(spec.Subject, vars)
}

func renderSequenceTemplate(spec templateSpec, vars Vars) (string, error) {
	data := sequenceEmailData{
		Title:    expandVars(spec.Subject, vars),
		Heading:  expandVars(spec.Heading, vars),
		CTALabel: spec.CTALabel,
		CTAURL:   expandVars(spec.CTAURL, vars),
	}
	for _, p := range spec.Paragraphs {
		data.Paragraphs = append(data.Paragraphs, expandVars(p, vars))
	}

	var buf bytes.Buffer
	if err := sequenceShell.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// expandVars replaces {{key}} placeholders with values from vars. Unknown
// placeholders are left in place so broken copy is visible in previews
// instead of silently disappearing.
func expandVars(s string, vars Vars) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
