package notify

import (
	"bytes"
	"html/template"
	"io"
	"mime/quotedprintable"
)

var bookingTmpl = template.Must(template.New("booking").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2563eb;">{{.Title}}</h2>
<p>Hi {{.Recipient}},</p>
<p>{{.Lead}}</p>
<div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
<p><strong>Course:</strong> {{.Course}}</p>
<p><strong>Tutor:</strong> {{.Tutor}}</p>
<p><strong>Student:</strong> {{.Student}}</p>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Time:</strong> {{.Time}}</p>
<p><strong>Type:</strong> {{.Medium}}</p>
</div>
<p>A calendar invite is attached to this email.</p>
</div>`))

var feedbackTmpl = template.Must(template.New("feedback").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2563eb;">How was your session?</h2>
<p>Hi {{.Student}},</p>
<p>We hope you had a great tutoring session with {{.Tutor}} on {{.Date}}!</p>
<p><a href="{{.Link}}">Leave Feedback</a></p>
<p style="color: #6b7280; font-size: 14px;">Or copy this link: {{.Link}}</p>
</div>`))

func renderBookingHTML(title, recipient, lead string, b Booking, date, clock string) string {
	var buf bytes.Buffer
	_ = bookingTmpl.Execute(&buf, map[string]string{
		"Title":     title,
		"Recipient": recipient,
		"Lead":      lead,
		"Course":    courseOrDefault(b.Session.Course),
		"Tutor":     displayName(b.Tutor),
		"Student":   displayName(b.Student),
		"Date":      date,
		"Time":      clock,
		"Medium":    mediumDisplay(b.Session.Medium),
	})
	return buf.String()
}

func renderFeedbackHTML(r FeedbackRequest, date string) string {
	var buf bytes.Buffer
	_ = feedbackTmpl.Execute(&buf, map[string]string{
		"Student": displayName(r.Student),
		"Tutor":   displayName(r.Tutor),
		"Date":    date,
		"Link":    r.Link,
	})
	return buf.String()
}

func writeQuotedPrintable(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(s)); err != nil {
		return err
	}
	return qp.Close()
}
