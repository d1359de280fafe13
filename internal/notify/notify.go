// Package notify delivers account notifications such as password reset links.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
)

// SMTPConfig describes the outgoing mail relay.
type SMTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	ResetURLBase string
}

// Enabled reports whether a relay host is configured.
func (c SMTPConfig) Enabled() bool { return strings.TrimSpace(c.Host) != "" }

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends notifications as plain-text mail.
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail sendFunc
}

// NewSMTPNotifier validates cfg and returns a notifier backed by net/smtp.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if !cfg.Enabled() {
		return nil, errors.New("notify: smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notify: sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Send implements auth.Notifier.
func (n *SMTPNotifier) Send(ctx context.Context, to, kind string, payload map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("notify: recipient is required")
	}
	subject, body, err := render(kind, payload, n.cfg.ResetURLBase)
	if err != nil {
		return err
	}
	msg := buildMessage(n.cfg.From, to, subject, body)

	var a smtp.Auth
	if n.cfg.Username != "" {
		a = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.sendMail(addr, a, n.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("notify: send %s mail: %w", kind, err)
	}
	return nil
}

// LogNotifier writes notifications to the logger instead of delivering them.
// Reset links are only emitted at debug level.
type LogNotifier struct {
	log          logrus.FieldLogger
	resetURLBase string
}

func NewLogNotifier(log logrus.FieldLogger, resetURLBase string) *LogNotifier {
	return &LogNotifier{log: log, resetURLBase: resetURLBase}
}

// Send implements auth.Notifier.
func (n *LogNotifier) Send(ctx context.Context, to, kind string, payload map[string]string) error {
	subject, _, err := render(kind, payload, n.resetURLBase)
	if err != nil {
		return err
	}
	entry := n.log.WithFields(logrus.Fields{
		"component": "notify",
		"kind":      kind,
		"to":        to,
	})
	entry.Info(subject)
	if kind == auth.NotifyPasswordReset {
		entry.WithField("link", ResetLink(n.resetURLBase, payload["token"])).Debug("reset link")
	}
	return nil
}

// ResetLink appends token as the token query parameter of base.
func ResetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func render(kind string, payload map[string]string, resetURLBase string) (subject, body string, err error) {
	switch kind {
	case auth.NotifyPasswordReset:
		name := payload["name"]
		if name == "" {
			name = "there"
		}
		expires := payload["expiresAt"]
		if t, perr := time.Parse(time.RFC3339, expires); perr == nil {
			expires = t.UTC().Format("2006-01-02 15:04 UTC")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Hello %s,\n\n", name)
		b.WriteString("A password reset was requested for your account.\n")
		fmt.Fprintf(&b, "Open the link below to choose a new password:\n\n%s\n\n", ResetLink(resetURLBase, payload["token"]))
		fmt.Fprintf(&b, "The link expires at %s. If you did not ask for this, ignore this message.\n", expires)
		return "Reset your password", b.String(), nil
	default:
		return "", "", fmt.Errorf("notify: unknown notification kind %q", kind)
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
