package email

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bluecarbon/internal/config"
)

const (
	mimeBoundary = "BlueCarbonBoundary7f3a91c2"
	dialTimeout  = 10 * time.Second
)

// Service handles sending email notifications.
type Service struct {
	cfg     *config.Config
	enabled bool
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewService creates a new email service.
func NewService(cfg *config.Config, logger *zap.Logger) *Service {
	s := &Service{
		cfg:     cfg,
		enabled: cfg.IsEmailEnabled(),
		logger:  logger,
	}

	if s.enabled {
		logger.Info("email notifications enabled", zap.String("smtp_host", cfg.SMTPHost), zap.Int("smtp_port", cfg.SMTPPort))
	} else {
		logger.Info("email notifications disabled (SMTP not configured)")
	}

	return s
}

// IsEnabled returns true if email is enabled.
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// BuildMessage renders a multipart/alternative MIME message.
func (s *Service) BuildMessage(to []string, subject, htmlBody, textBody string) string {
	from := s.cfg.SMTPFrom
	if s.cfg.SMTPFromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", mimeBoundary)

	for _, part := range []struct{ contentType, body string }{
		{"text/plain", textBody},
		{"text/html", htmlBody},
	} {
		if part.body == "" {
			continue
		}
		fmt.Fprintf(&msg, "--%s\r\n", mimeBoundary)
		fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", part.contentType)
		msg.WriteString(part.body)
		msg.WriteString("\r\n")
	}

	fmt.Fprintf(&msg, "--%s--\r\n", mimeBoundary)
	return msg.String()
}

// Send delivers a message synchronously. It is a no-op when SMTP is not configured.
func (s *Service) Send(to []string, subject, htmlBody, textBody string) error {
	if !s.enabled || len(to) == 0 {
		return nil
	}

	client, err := s.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.SMTPUsername != "" && s.cfg.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := io.WriteString(w, s.BuildMessage(to, subject, htmlBody, textBody)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

// dial connects to the relay using the configured SMTP_TLS mode: "tls" for
// implicit TLS, "starttls" to upgrade a plain connection, anything else for
// an unencrypted session.
func (s *Service) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	tlsConfig := &tls.Config{ServerName: s.cfg.SMTPHost, MinVersion: tls.VersionTLS12}

	if s.cfg.SMTPTLS == "tls" {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: dialTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("smtp handshake: %w", err)
		}
		return client, nil
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if s.cfg.SMTPTLS == "starttls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	return client, nil
}

// SendAsync sends an email asynchronously (fire and forget with logging).
func (s *Service) SendAsync(to []string, subject, htmlBody, textBody string) {
	if !s.enabled || len(to) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Send(to, subject, htmlBody, textBody); err != nil {
			s.logger.Warn("failed to send email", zap.Strings("to", to), zap.Error(err))
			return
		}
		s.logger.Debug("email sent", zap.Strings("to", to), zap.String("subject", subject))
	}()
}

// Wait blocks until in-flight asynchronous sends finish.
func (s *Service) Wait() {
	s.wg.Wait()
}
