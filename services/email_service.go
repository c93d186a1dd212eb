package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// Mailer delivers one HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	msg := []byte("To: " + to + "\r\n" +
		"From: " + m.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		htmlBody + "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	tlsconfig := &tls.Config{ServerName: m.cfg.Host}

	var client *smtp.Client
	if m.cfg.Port == 465 {
		// Прямое TLS-соединение (обычно порт 465)
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, m.cfg.Host)
		if err != nil {
			return fmt.Errorf("smtp client: %w", err)
		}
	} else {
		// STARTTLS (обычно порт 587)
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	defer client.Quit()

	if m.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return nil
}

// logMailer writes messages to the log instead of sending them. Used when SMTP is not configured.
type logMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.InfoContext(ctx, "email not sent: smtp disabled",
		slog.String("to", to), slog.String("subject", subject), slog.String("body", htmlBody))
	return nil
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "welcome"}}<p>Hi {{.Name}},</p>
<p>Welcome to Let's Play! Your account has been created with the email <b>{{.Email}}</b>.</p>
<p>Verify your account from your profile to start registering teams.</p>{{end}}

{{define "verify"}}<p>Hi {{.Name}},</p>
<p>Your account verification code is <b>{{.Code}}</b>.</p>
<p>The code expires in {{.TTL}}.</p>{{end}}

{{define "reset"}}<p>Hi {{.Name}},</p>
<p>Your password reset code is <b>{{.Code}}</b>.</p>
<p>The code expires in {{.TTL}}. If you did not request a reset, ignore this email.</p>{{end}}
`))

type EmailService struct {
	mailer Mailer
}

func NewEmailService(mailer Mailer) *EmailService {
	return &EmailService{mailer: mailer}
}

func (s *EmailService) render(name string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return body.String(), nil
}

type otpEmailData struct {
	Name string
	Code string
	TTL  string
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, name, email string) error {
	body, err := s.render("welcome", struct{ Name, Email string }{name, email})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, email, "Welcome to Let's Play", body)
}

// SendVerificationOTP quotes ttl in the message so the text always matches the stored expiry.
func (s *EmailService) SendVerificationOTP(ctx context.Context, name, email, code string, ttl time.Duration) error {
	body, err := s.render("verify", otpEmailData{Name: name, Code: code, TTL: HumanizeDuration(ttl)})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, email, "Account Verification OTP", body)
}

func (s *EmailService) SendPasswordResetOTP(ctx context.Context, name, email, code string, ttl time.Duration) error {
	body, err := s.render("reset", otpEmailData{Name: name, Code: code, TTL: HumanizeDuration(ttl)})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, email, "Password Reset OTP", body)
}

// HumanizeDuration renders whole hours and minutes, e.g. "24 hours" or "1 hour 30 minutes".
func HumanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return plural(int(d.Seconds()), "second")
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	parts := make([]string, 0, 2)
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
