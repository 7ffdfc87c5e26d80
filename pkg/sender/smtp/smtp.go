// Package smtp implements a delivery provider over plain SMTP.
package smtp

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/mailcraft/mailcraft/pkg/email"
)

// Config holds SMTP provider configuration.
// Embed this in your app config for env parsing.
type Config struct {
	Host        string `env:"SMTP_HOST" yaml:"host"`
	Port        int    `env:"SMTP_PORT" envDefault:"587" yaml:"port"`
	Username    string `env:"SMTP_USERNAME" yaml:"username"`
	Password    string `env:"SMTP_PASSWORD" yaml:"password"`
	SenderEmail string `env:"SMTP_FROM_EMAIL" yaml:"from_email"`
	SenderName  string `env:"SMTP_FROM_NAME" yaml:"from_name"`
}

// Provider implements sender.Provider over an SMTP connection.
type Provider struct {
	dialer *gomail.Dialer
	config Config
}

// New creates an SMTP provider.
func New(cfg Config) *Provider {
	return &Provider{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		config: cfg,
	}
}

// Send implements sender.Provider. The dial and transfer run in a goroutine
// so the context deadline is honored; gomail itself does not take a context.
func (p *Provider) Send(ctx context.Context, msg *email.Message) error {
	m := p.build(msg)

	done := make(chan error, 1)
	go func() {
		done <- p.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: failed to send email: %w", err)
		}
		return nil
	}
}

func (p *Provider) build(msg *email.Message) *gomail.Message {
	m := gomail.NewMessage()

	from := p.config.SenderEmail
	fromName := p.config.SenderName
	if msg.From != nil {
		from = msg.From.Address
		fromName = msg.From.Name
	}
	if fromName != "" {
		m.SetAddressHeader("From", from, fromName)
	} else {
		m.SetHeader("From", from)
	}

	m.SetHeader("To", addressList(msg.To)...)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", addressList(msg.CC)...)
	}
	if len(msg.BCC) > 0 {
		m.SetHeader("Bcc", addressList(msg.BCC)...)
	}
	if msg.ReplyTo != nil {
		m.SetHeader("Reply-To", msg.ReplyTo.String())
	}
	for key, value := range msg.Headers {
		m.SetHeader(key, value)
	}
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	for _, a := range msg.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		if a.ContentID != "" {
			m.Embed(a.Filename, settings...)
		} else {
			m.Attach(a.Filename, settings...)
		}
	}
	return m
}

func addressList(addrs []email.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
