package mailer

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-account-lifecycle/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either the rendered Subject/Text/HTML or a Template with Data is set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // one of templates.Names
	Data     map[string]any `json:"data,omitempty"`
}

// NewEmailJob wraps an already rendered message.
func NewEmailJob(msg Message) EmailJob {
	return EmailJob{To: msg.To, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML}
}

// Message resolves the job into a deliverable message, rendering the template if needed.
func (j EmailJob) Message() (Message, error) {
	if j.To == "" {
		return Message{}, errors.New("email job has no recipient")
	}
	if j.Template == "" {
		if j.Subject == "" || (j.Text == "" && j.HTML == "") {
			return Message{}, errors.New("email job has no content")
		}
		return Message{To: j.To, Subject: j.Subject, Text: j.Text, HTML: j.HTML}, nil
	}
	subject, text, html, err := templates.Render(j.Template, j.Data)
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", j.Template, err)
	}
	return Message{To: j.To, Subject: subject, Text: text, HTML: html}, nil
}
