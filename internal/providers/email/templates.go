package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

var defaultSubjects = map[string]string{
	TemplateMemberInvite:       "You're invited to join %s on freightdesk",
	TemplateConnectionInvite:   "%s wants to connect on freightdesk",
	TemplateConnectionAccepted: "%s accepted your connection request",
}

// Render executes the named template. The subject is taken from data["subject"]
// when present, otherwise from the template default filled with data["org_name"].
func Render(templateName string, data map[string]any) (string, string, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.ParseFS(templateFS, "templates/*.html")
	})
	if parseErr != nil {
		return "", "", fmt.Errorf("parse email templates: %w", parseErr)
	}

	tmpl := parsed.Lookup(templateName + ".html")
	if tmpl == nil {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", templateName, err)
	}

	subject := "Notification from freightdesk"
	if subj, ok := data["subject"].(string); ok && subj != "" {
		subject = subj
	} else if format, ok := defaultSubjects[templateName]; ok {
		name, _ := data["org_name"].(string)
		if name == "" {
			name = "a freightdesk organization"
		}
		subject = fmt.Sprintf(format, name)
	}

	return subject, body.String(), nil
}
