package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a2zsellr/backend/internal/domain/messaging"
	"github.com/tidwall/gjson"
)

const sendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGridSender delivers email through the SendGrid v3 mail API
type SendGridSender struct {
	cfg    ProviderConfig
	poster *jsonPoster
}

// NewSendGridSender creates a SendGrid sender. An empty API key is an error.
func NewSendGridSender(cfg ProviderConfig) (*SendGridSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: sendgrid", ErrProviderNotConfigured)
	}
	cfg = cfg.withDefaults(sendGridEndpoint)
	return &SendGridSender{
		cfg:    cfg,
		poster: newJSONPoster("sendgrid", cfg, sendGridErrorMessage),
	}, nil
}

// Name returns "sendgrid"
func (s *SendGridSender) Name() string { return "sendgrid" }

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To         []sendGridAddress `json:"to"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// Send posts msg to SendGrid. SendGrid answers 202 with an empty body and
// reports the message id in the X-Message-Id header.
func (s *SendGridSender) Send(ctx context.Context, msg messaging.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	payload := sendGridPayload{
		Personalizations: []sendGridPersonalization{{
			To:         []sendGridAddress{{Email: msg.ToEmail, Name: strings.TrimSpace(msg.ToName)}},
			CustomArgs: msg.Tags,
		}},
		From:    sendGridAddress{Email: s.cfg.FromAddress, Name: s.cfg.FromName},
		Subject: msg.Subject,
	}
	// text/plain must come before text/html
	if msg.TextBody != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: msg.HTMLBody})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sendgrid: failed to encode payload: %w", err)
	}

	resp, err := s.poster.post(ctx, body)
	if err != nil {
		return "", err
	}
	return resp.header.Get("X-Message-Id"), nil
}

func sendGridErrorMessage(body []byte) string {
	messages := gjson.GetBytes(body, "errors.#.message").Array()
	if len(messages) == 0 {
		return strings.TrimSpace(string(body))
	}
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "; ")
}

var _ messaging.EmailSender = (*SendGridSender)(nil)
