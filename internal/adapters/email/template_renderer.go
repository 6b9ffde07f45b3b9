package email

import (
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"eventportal/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// Each name has three files under templates/: <name>_subject.txt, <name>.txt and <name>.html.
const (
	TemplateLoginCode             = "login_code"
	TemplateRegistrationConfirmed = "registration_confirmed"
)

// Parsed once; the embedded files cannot change after build.
var (
	textTemplates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
)

type templateRenderer struct{}

func NewTemplateRenderer() domain.EmailTemplateRenderer {
	return templateRenderer{}
}

func (templateRenderer) Render(name string, data any) (subject, html, text string, err error) {
	var b strings.Builder
	if err = textTemplates.ExecuteTemplate(&b, name+"_subject.txt", data); err != nil {
		return "", "", "", fmt.Errorf("email template %s subject: %w", name, err)
	}
	subject = strings.TrimSpace(b.String())

	b.Reset()
	if err = htmlTemplates.ExecuteTemplate(&b, name+".html", data); err != nil {
		return "", "", "", fmt.Errorf("email template %s html: %w", name, err)
	}
	html = b.String()

	b.Reset()
	if err = textTemplates.ExecuteTemplate(&b, name+".txt", data); err != nil {
		return "", "", "", fmt.Errorf("email template %s text: %w", name, err)
	}
	return subject, html, b.String(), nil
}
