// Package mail sends registration confirmations over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	texttpl "text/template"

	"quizfest/internal/domain"

	gomail "github.com/go-mail/mail"
)

// Config is the SMTP account.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
	// EventName appears in the subject and body.
	EventName string
}

// Enabled reports whether enough is configured to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier emails the registrant a confirmation with their registration
// number. Registrations without an email address are skipped.
type Notifier struct {
	cfg    Config
	dialer sender
}

// New creates a Notifier. Port 465 uses implicit TLS; other ports negotiate
// STARTTLS.
func New(cfg Config) *Notifier {
	if cfg.EventName == "" {
		cfg.EventName = "Quiz Fest"
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	d.SSL = cfg.Port == 465
	return &Notifier{cfg: cfg, dialer: d}
}

// Name implements app.Notifier.
func (n *Notifier) Name() string { return "email" }

// NotifyRegistration implements app.Notifier.
func (n *Notifier) NotifyRegistration(ctx context.Context, r domain.Registration) error {
	if r.Email == "" {
		return nil
	}
	m, err := n.message(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type confirmationVars struct {
	Event string
	Reg   domain.Registration
	Date  string
}

var (
	htmlTmpl = template.Must(template.New("confirmation_html").Parse(confirmationHTML))
	textTmpl = texttpl.Must(texttpl.New("confirmation_txt").Parse(confirmationText))
)

func (n *Notifier) message(r domain.Registration) (*gomail.Message, error) {
	html, text, err := render(confirmationVars{Event: n.cfg.EventName, Reg: r, Date: r.CreatedAt.Format("02/01/2006")})
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", r.Email)
	m.SetHeader("Subject", fmt.Sprintf("Registration Confirmed - %s | Registration #%s", n.cfg.EventName, r.RegistrationNumber))
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)
	return m, nil
}

// render returns the html and plain-text bodies. Only the html body escapes
// registrant input.
func render(vars confirmationVars) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := htmlTmpl.Execute(&hb, vars); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&tb, vars); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

const confirmationText = `Dear {{.Reg.NameEnglish}},

Your registration for {{.Event}} is complete.

Registration Number: {{.Reg.RegistrationNumber}}

Name:       {{.Reg.NameEnglish}} ({{.Reg.NameBangla}})
Student ID: {{.Reg.StudentID}}
Class:      {{.Reg.Class}} - {{.Reg.Section}}
Category:   {{.Reg.ClassCategory}}
Phone:      {{.Reg.PhoneWhatsapp}}
Registered: {{.Date}}

Please keep this registration number and bring it on the competition day.

{{.Event}} Team
This is an automated email. Please do not reply.
`

const confirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Registration Confirmation - {{.Event}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Registration Confirmed!</h1>
  <p>Dear <strong>{{.Reg.NameEnglish}}</strong>,</p>
  <p>Your registration for <strong>{{.Event}}</strong> is complete.</p>
  <p style="background: #667eea; color: white; padding: 15px; text-align: center; font-weight: bold;">
    Registration Number: {{.Reg.RegistrationNumber}}
  </p>
  <table>
    <tr><td><strong>Name:</strong></td><td>{{.Reg.NameEnglish}} ({{.Reg.NameBangla}})</td></tr>
    <tr><td><strong>Student ID:</strong></td><td>{{.Reg.StudentID}}</td></tr>
    <tr><td><strong>Class:</strong></td><td>{{.Reg.Class}} - {{.Reg.Section}}</td></tr>
    <tr><td><strong>Category:</strong></td><td>{{.Reg.ClassCategory}}</td></tr>
    <tr><td><strong>Phone:</strong></td><td>{{.Reg.PhoneWhatsapp}}</td></tr>
    <tr><td><strong>Registration Date:</strong></td><td>{{.Date}}</td></tr>
  </table>
  <p><strong>Important:</strong> Please keep this registration number and bring it on the competition day.</p>
  <p>Best regards,<br><strong>{{.Event}} Team</strong></p>
  <p><em>This is an automated email. Please do not reply.</em></p>
</div>
</body>
</html>
`
