package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Email struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers report emails.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// SendgridMailer sends through the SendGrid v3 mail API.
type SendgridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridMailer(key, appName, fromEmail string) *SendgridMailer {
	return &SendgridMailer{
		key:        key,
		host:       sendgridHost,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

// WithHost points the mailer at another API host.
func (m *SendgridMailer) WithHost(host string) *SendgridMailer {
	m.host = host
	return m
}

func (m *SendgridMailer) Send(ctx context.Context, msg Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (m *SendgridMailer) prepare(msg Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	out := sgmail.NewV3Mail()
	out.SetFrom(m.from)
	out.AddPersonalizations(p)
	out.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		out.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	for _, a := range msg.Attachments {
		out.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return out
}

// LogMailer only logs outgoing mail; used when no SendGrid key is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	logger.InfoContext(ctx, "report email (not sent)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Any("attachments", names),
	)
	return nil
}
