package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("mailer: no recipients")

// DeliveryError is a non-2xx answer from the mail API.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mailer: send rejected: status %d: %s", e.StatusCode, e.Body)
}

// Message is one HTML email.
type Message struct {
	FromEmail string
	FromName  string
	To        []string
	Subject   string
	HTML      string
}

// Options configures a SendGrid mailer.
type Options struct {
	APIKey string

	// Host overrides the API host; tests point it at an httptest server.
	Host string
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	apiKey string
	host   string
}

// New returns a SendGrid mailer.
func New(opts Options) *SendGrid {
	host := opts.Host
	if host == "" {
		host = defaultHost
	}
	return &SendGrid{apiKey: opts.APIKey, host: host}
}

// Send delivers msg. All recipients share one personalization.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(msg.FromName, msg.FromEmail))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, addr := range msg.To {
		p.AddTos(mail.NewEmail("", addr))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/html", msg.HTML))

	req := sendgrid.GetRequest(s.apiKey, sendEndpoint, s.host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	slog.Info("mailer: message sent",
		"subject", msg.Subject, "recipients", len(msg.To), "status", resp.StatusCode)
	return nil
}
