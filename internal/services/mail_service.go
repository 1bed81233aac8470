package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Mailer sends the transactional emails of the auth flows.
type Mailer interface {
	SendPasswordResetEmail(email, name, link string)
	SendGuideWelcomeEmail(email, name, link string)
}

type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Enabled  bool

	templatesDir string
	logger       *zap.Logger
}

// SMTPSettings mirrors the SMTP_* configuration.
type SMTPSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewMailService(smtpCfg SMTPSettings, templatesDir string, logger *zap.Logger) *MailService {
	enabled := smtpCfg.Host != "" && smtpCfg.Port != "" && smtpCfg.Username != "" && smtpCfg.Password != "" && smtpCfg.From != ""
	if !enabled {
		logger.Warn("MailService disabled: missing SMTP settings")
	}

	return &MailService{
		Host:         smtpCfg.Host,
		Port:         smtpCfg.Port,
		Username:     smtpCfg.Username,
		Password:     smtpCfg.Password,
		From:         smtpCfg.From,
		Enabled:      enabled,
		templatesDir: templatesDir,
		logger:       logger,
	}
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled {
		s.logger.Debug("mail skipped", zap.Strings("to", to), zap.String("subject", subject))
		return
	}

	go func() {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"From: Hike Club <%s>\r\n"+
			"Subject: %s\r\n"+
			"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))

		err := smtp.SendMail(addr, auth, s.From, to, msg)
		if err != nil {
			s.logger.Error("failed to send email", zap.Strings("to", to), zap.Error(err))
		} else {
			s.logger.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
		}
	}()
}

func (s *MailService) parseTemplate(templateName string, data interface{}) (string, error) {
	path := filepath.Join(s.templatesDir, "email", templateName)
	t, err := template.ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

func (s *MailService) SendPasswordResetEmail(email, name, link string) {
	body, err := s.parseTemplate("reset.html", map[string]string{
		"Name": name,
		"Link": link,
	})
	if err != nil {
		s.logger.Error("error rendering reset email", zap.Error(err))
		return
	}
	s.sendAsync([]string{email}, "Reset your Hike Club password", body)
}

func (s *MailService) SendGuideWelcomeEmail(email, name, link string) {
	body, err := s.parseTemplate("guide.html", map[string]string{
		"Name": name,
		"Link": link,
	})
	if err != nil {
		s.logger.Error("error rendering guide email", zap.Error(err))
		return
	}
	s.sendAsync([]string{email}, "Welcome to Hike Club, choose your password", body)
}
