package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
)

// Message is one email to any number of recipients.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// ========================
// SMTP
// ========================

// SMTPMailer sends through an SMTP relay with PLAIN auth when a user is set.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	if len(m.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := compose(s.From, m)
	if err != nil {
		return fmt.Errorf("compose mail: %w", err)
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(s.Host+":"+s.Port, auth, s.From, m.To, body); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// compose renders m as a multipart/alternative message when it has an HTML
// part, plain text otherwise.
func compose(from string, m Message) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")

	if m.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(m.Text)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	for _, part := range []struct{ ctype, body string }{
		{"text/plain; charset=utf-8", m.Text},
		{"text/html; charset=utf-8", m.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ========================
// LOG
// ========================

// LogMailer writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogMailer struct {
	Log *slog.Logger
}

func (l *LogMailer) Send(ctx context.Context, m Message) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("mail", "to", strings.Join(m.To, ","), "subject", m.Subject, "body", m.Text)
	return nil
}
