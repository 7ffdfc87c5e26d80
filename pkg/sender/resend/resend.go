// Package resend implements a delivery provider on the Resend API.
package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/mailcraft/mailcraft/pkg/email"
)

// Provider implements sender.Provider using the Resend API.
type Provider struct {
	client *resend.Client
	config Config
}

// New creates a Resend provider.
func New(cfg Config) *Provider {
	return &Provider{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
	}
}

// Send implements sender.Provider. A missing From falls back to the
// configured sender address.
func (p *Provider) Send(ctx context.Context, msg *email.Message) error {
	from := p.config.SenderEmail
	if p.config.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", p.config.SenderName, p.config.SenderEmail)
	}
	if msg.From != nil {
		from = msg.From.String()
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      addressList(msg.To),
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Cc:      addressList(msg.CC),
		Bcc:     addressList(msg.BCC),
		Headers: msg.Headers,
	}
	if msg.ReplyTo != nil {
		req.ReplyTo = msg.ReplyTo.String()
	}
	if len(msg.Attachments) > 0 {
		req.Attachments = convertAttachments(msg.Attachments)
	}

	if _, err := p.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}

func addressList(addrs []email.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func convertAttachments(attachments []email.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
			ContentId:   a.ContentID,
		}
	}
	return result
}
