package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@agendo.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	msg := buildMessage(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

// ReminderMessage composes the subject and plain-text body for an
// appointment reminder. when is the appointment time already formatted
// for display.
func ReminderMessage(clientName, serviceName, when string) (subject, body string) {
	subject = "Appointment reminder"
	if serviceName != "" {
		subject = fmt.Sprintf("Reminder: %s on %s", serviceName, when)
	}

	greeting := "Hello,"
	if clientName != "" {
		greeting = fmt.Sprintf("Hello %s,", clientName)
	}
	body = fmt.Sprintf(
		"%s\n\nThis is a reminder for your appointment on %s.\nIf you can no longer make it, please cancel with as much notice as you can so the slot opens up for someone else.\n",
		greeting, when)
	return subject, body
}

func buildMessage(from, to, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: Agendo <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}
