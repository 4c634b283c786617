package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Attachment вложение письма
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message письмо
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Sender отправка писем
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender отправляет письма через SMTP. Без логина работает с Mailpit и локальными релеями.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: strings.TrimSpace(from),
		auth: auth,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := buildMessage(s.from, msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// buildMessage собирает multipart/mixed письмо: HTML и вложения в base64
func buildMessage(from string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeQuotedPrintable(htmlPart, msg.HTML); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(wrapBase64(a.Content))); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&out, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func wrapBase64(content []byte) string {
	encoded := base64.StdEncoding.EncodeToString(content)
	var b strings.Builder
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.String()
}

// EmailNotifier письма ученику и репетитору
type EmailNotifier struct {
	sender Sender
	logger *zap.Logger
	now    func() time.Time
}

func NewEmailNotifier(sender Sender, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, logger: logger, now: time.Now}
}

func (n *EmailNotifier) SessionBooked(ctx context.Context, b Booking) error {
	s := b.Session
	start := b.Zone.In(s.StartTime)
	date := start.Format("January 02, 2006")
	clock := b.Zone.WallClock(start).Display()

	invite := Attachment{
		Filename:    "session.ics",
		ContentType: "text/calendar; method=REQUEST; charset=utf-8",
		Content:     []byte(BuildInvite(s, b.Tutor, b.Student, n.now())),
	}

	var errs []string
	if b.Student != nil && b.Student.Email != "" {
		msg := Message{
			To:          b.Student.Email,
			Subject:     fmt.Sprintf("Session Confirmed - %s at %s", date, clock),
			HTML:        renderBookingHTML("Session Booked Successfully!", b.Student.Name, "Your tutoring session has been confirmed.", b, date, clock),
			Attachments: []Attachment{invite},
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if b.Tutor != nil && b.Tutor.Email != "" {
		msg := Message{
			To:          b.Tutor.Email,
			Subject:     fmt.Sprintf("New Booking - %s on %s", displayName(b.Student), date),
			HTML:        renderBookingHTML("New Session Booked!", b.Tutor.Name, "A student has booked a session with you.", b, date, clock),
			Attachments: []Attachment{invite},
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("email booking notification: %s", strings.Join(errs, "; "))
	}

	n.logger.Debug("Booking emails sent", zap.Int64("session_id", s.ID))
	return nil
}

func (n *EmailNotifier) FeedbackRequested(ctx context.Context, r FeedbackRequest) error {
	if r.Student == nil || r.Student.Email == "" {
		return nil
	}
	date := r.Zone.In(r.Session.StartTime).Format("January 02, 2006")

	msg := Message{
		To:      r.Student.Email,
		Subject: fmt.Sprintf("How was your session with %s?", displayName(r.Tutor)),
		HTML:    renderFeedbackHTML(r, date),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("email feedback request: %w", err)
	}
	return nil
}
