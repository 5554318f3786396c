// Package notify renders transactional emails and hands them to a
// transport.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/AgiriTaofeek/natours-app/metrics"
	"github.com/AgiriTaofeek/natours-app/models"
)

const (
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "passwordReset"

	SubjectWelcome       = "Welcome to the Natours family!"
	SubjectPasswordReset = "Your password reset token is valid for only 10 mins"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders the email templates for a user.
type Mailer struct {
	from      string
	transport Transport
	templates map[string]*template.Template
}

func NewMailer(from string, transport Transport) (*Mailer, error) {
	m := &Mailer{from: from, transport: transport, templates: map[string]*template.Template{}}
	for _, name := range []string{TemplateWelcome, TemplatePasswordReset} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s email: %w", name, err)
		}
		m.templates[name] = tmpl
	}
	return m, nil
}

func (m *Mailer) SendWelcome(ctx context.Context, user models.User, url string) error {
	return m.send(ctx, user, url, TemplateWelcome, SubjectWelcome)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user models.User, url string) error {
	return m.send(ctx, user, url, TemplatePasswordReset, SubjectPasswordReset)
}

// Render builds the message without sending it.
func (m *Mailer) Render(user models.User, url, name, subject string) (Message, error) {
	tmpl, ok := m.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}

	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "layout", map[string]string{
		"FirstName": firstName(user.Name),
		"URL":       url,
		"Subject":   subject,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", name, err)
	}

	html := buf.String()
	return Message{
		From:    m.from,
		To:      user.Email,
		Subject: subject,
		HTML:    html,
		Text:    HTMLToText(html),
	}, nil
}

func (m *Mailer) send(ctx context.Context, user models.User, url, name, subject string) error {
	msg, err := m.Render(user, url, name, subject)
	if err != nil {
		return err
	}
	err = m.transport.Send(ctx, msg)
	metrics.ObserveEmail(name, err)
	return err
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}
