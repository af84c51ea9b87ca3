// Package notify renders and queues transactional email and SMS
// notifications. Templates live in an embedded YAML catalog keyed by
// event; delivery runs through dispatch jobs so a provider outage never
// blocks the request path.
package notify

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/realtechee/platform/errors"
)

//go:embed templates.yaml
var embeddedCatalog []byte

// Event keys for every notification the platform sends.
const (
	EventLeadAdminAlert = "lead.admin-alert"
	EventLeadAck        = "lead.ack"
	EventQuoteSent      = "quote.sent"
	EventQuoteSigned    = "quote.signed"
	EventProjectStatus  = "project.status"
)

// SMSMaxRunes caps rendered SMS bodies. Anything longer gets truncated;
// carriers split beyond ~2 segments and delivery rates drop.
const SMSMaxRunes = 320

// EmailTemplate defines the email channel of an event.
type EmailTemplate struct {
	Subject string   `yaml:"subject"`
	Body    string   `yaml:"body"`
	To      []string `yaml:"to,omitempty"` // default recipients
}

// SMSTemplate defines the SMS channel of an event.
type SMSTemplate struct {
	Body string   `yaml:"body"`
	To   []string `yaml:"to,omitempty"`
}

// EventTemplate holds the per-channel templates for one event key.
// A nil channel means the event does not fire on it.
type EventTemplate struct {
	Email *EmailTemplate `yaml:"email,omitempty"`
	SMS   *SMSTemplate   `yaml:"sms,omitempty"`
}

// Catalog is the parsed template catalog.
type Catalog struct {
	Events map[string]EventTemplate `yaml:"events"`
}

// LoadCatalog parses the embedded template catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// ParseCatalog parses a YAML template catalog. Exposed so tests and the
// CLI can load alternate catalogs.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Wrap(err, "failed to parse template catalog")
	}
	if len(catalog.Events) == 0 {
		return nil, errors.New("template catalog defines no events")
	}

	for key, event := range catalog.Events {
		if event.Email == nil && event.SMS == nil {
			return nil, errors.Newf("event %s defines no channels", key)
		}
	}
	return &catalog, nil
}

// Event returns the templates for an event key.
func (c *Catalog) Event(key string) (EventTemplate, error) {
	event, ok := c.Events[key]
	if !ok {
		return EventTemplate{}, errors.NewNotFound("notification event %s", key)
	}
	return event, nil
}

// EventKeys returns all event keys in the catalog.
func (c *Catalog) EventKeys() []string {
	keys := make([]string, 0, len(c.Events))
	for key := range c.Events {
		keys = append(keys, key)
	}
	return keys
}

// RenderedEmail is a fully rendered email, ready to hand to a provider.
type RenderedEmail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// RenderedSMS is a fully rendered SMS message.
type RenderedSMS struct {
	To   []string `json:"to"`
	Body string   `json:"body"`
}

// RenderEmail renders the email channel of an event against a payload map.
// Missing payload keys are render errors, not empty strings.
func (c *Catalog) RenderEmail(key string, data map[string]interface{}) (*RenderedEmail, error) {
	event, err := c.Event(key)
	if err != nil {
		return nil, err
	}
	if event.Email == nil {
		return nil, errors.Newf("event %s has no email channel", key)
	}

	subject, err := renderTemplate(key+".subject", event.Email.Subject, data)
	if err != nil {
		return nil, err
	}
	body, err := renderTemplate(key+".body", event.Email.Body, data)
	if err != nil {
		return nil, err
	}

	return &RenderedEmail{
		To:      append([]string(nil), event.Email.To...),
		Subject: strings.TrimSpace(subject),
		Body:    body,
	}, nil
}

// RenderSMS renders the SMS channel of an event against a payload map.
// Bodies longer than SMSMaxRunes are truncated.
func (c *Catalog) RenderSMS(key string, data map[string]interface{}) (*RenderedSMS, error) {
	event, err := c.Event(key)
	if err != nil {
		return nil, err
	}
	if event.SMS == nil {
		return nil, errors.Newf("event %s has no sms channel", key)
	}

	body, err := renderTemplate(key+".sms", event.SMS.Body, data)
	if err != nil {
		return nil, err
	}

	return &RenderedSMS{
		To:   append([]string(nil), event.SMS.To...),
		Body: capRunes(strings.TrimSpace(body), SMSMaxRunes),
	}, nil
}

func renderTemplate(name, text string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse template %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "failed to render template %s", name)
	}
	return buf.String(), nil
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
