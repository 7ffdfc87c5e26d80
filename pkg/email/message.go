package email

// Message is a fully-composed email ready for transport handoff. All
// resolution (templates, placeholders, tracking rewrites) happens before a
// Message reaches a provider; providers treat it as opaque.
type Message struct {
	Headers     map[string]string `json:"headers,omitempty"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html,omitempty"`
	Text        string            `json:"text,omitempty"`
	From        *Address          `json:"from,omitempty"`
	ReplyTo     *Address          `json:"reply_to,omitempty"`
	To          []Address         `json:"to"`
	CC          []Address         `json:"cc,omitempty"`
	BCC         []Address         `json:"bcc,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

// Attachment carries resolved attachment bytes. Descriptors (file paths,
// storage references) are resolved into this form by AttachmentManager before
// transport handoff.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	Content     []byte `json:"content"`
}

// HasRecipients reports whether at least one To recipient is set.
func (m *Message) HasRecipients() bool {
	return len(m.To) > 0
}
