package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/internal/httpclient"
)

const providerTimeout = 15 * time.Second

// EmailSender delivers a rendered email and returns the provider message ID.
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) (string, error)
}

// SMSSender delivers a rendered SMS to one number and returns the provider
// message ID.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// SendGridProvider posts to a SendGrid-compatible mail API.
type SendGridProvider struct {
	baseURL   string
	apiKey    string
	fromEmail string
	fromName  string
	http      *httpclient.SaferClient
	log       *zap.SugaredLogger
}

// NewSendGridProvider creates an email provider from config.
func NewSendGridProvider(cfg am.EmailProvider, log *zap.SugaredLogger) *SendGridProvider {
	return &SendGridProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		http:      httpclient.New(providerTimeout),
		log:       log.Named("notify.email"),
	}
}

// NewSendGridProviderWithClient injects a custom HTTP client (tests).
func NewSendGridProviderWithClient(cfg am.EmailProvider, client *httpclient.SaferClient, log *zap.SugaredLogger) *SendGridProvider {
	p := NewSendGridProvider(cfg, log)
	p.http = client
	return p
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// SendEmail posts one message to /v3/mail/send. All recipients land on a
// single personalization, matching how the original platform batches them.
func (p *SendGridProvider) SendEmail(ctx context.Context, to []string, subject, body string) (string, error) {
	if len(to) == 0 {
		return "", errors.NewValidation("email has no recipients")
	}

	addrs := make([]sendGridAddress, 0, len(to))
	for _, addr := range to {
		addrs = append(addrs, sendGridAddress{Email: addr})
	}

	payload := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: addrs}},
		From:             sendGridAddress{Email: p.fromEmail, Name: p.fromName},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: body}},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal mail request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v3/mail/send", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrUpstream, err.Error())
	}
	defer resp.Body.Close()

	if err := classifyProviderStatus(resp); err != nil {
		return "", errors.Wrapf(err, "mail provider rejected send to %d recipient(s)", len(to))
	}

	// SendGrid returns 202 with the message ID in a header and an empty body
	messageID := resp.Header.Get("X-Message-Id")
	p.log.Infow("Email accepted by provider",
		"recipients", len(to),
		"provider_message_id", messageID)
	return messageID, nil
}

// TwilioProvider posts to a Twilio-compatible messaging API.
type TwilioProvider struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	http       *httpclient.SaferClient
	log        *zap.SugaredLogger
}

// NewTwilioProvider creates an SMS provider from config.
func NewTwilioProvider(cfg am.SMSProvider, log *zap.SugaredLogger) *TwilioProvider {
	return &TwilioProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		http:       httpclient.New(providerTimeout),
		log:        log.Named("notify.sms"),
	}
}

// NewTwilioProviderWithClient injects a custom HTTP client (tests).
func NewTwilioProviderWithClient(cfg am.SMSProvider, client *httpclient.SaferClient, log *zap.SugaredLogger) *TwilioProvider {
	p := NewTwilioProvider(cfg, log)
	p.http = client
	return p
}

// SendSMS posts one message to the account's Messages endpoint.
func (p *TwilioProvider) SendSMS(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", errors.NewValidation("sms has no recipient")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "failed to build sms request")
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrUpstream, err.Error())
	}
	defer resp.Body.Close()

	if err := classifyProviderStatus(resp); err != nil {
		return "", errors.Wrapf(err, "sms provider rejected send to %s", to)
	}

	var result struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// Accepted but unparseable body - deliverable, just no message ID
		p.log.Warnw("Failed to decode sms provider response", "error", err)
	}

	p.log.Infow("SMS accepted by provider", "provider_message_id", result.SID)
	return result.SID, nil
}

// classifyProviderStatus maps provider HTTP status codes onto platform
// sentinels so the worker retry policy can distinguish throttling and
// outages from permanent rejections.
func classifyProviderStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.WithStack(errors.ErrThrottled)
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrUpstream, "provider returned %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
