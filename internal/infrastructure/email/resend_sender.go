package email

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/a2zsellr/backend/internal/domain/messaging"
	"github.com/tidwall/gjson"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendSender delivers email through the Resend API
type ResendSender struct {
	cfg    ProviderConfig
	poster *jsonPoster
}

// NewResendSender creates a Resend sender. An empty API key is an error.
func NewResendSender(cfg ProviderConfig) (*ResendSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: resend", ErrProviderNotConfigured)
	}
	cfg = cfg.withDefaults(resendEndpoint)
	return &ResendSender{
		cfg:    cfg,
		poster: newJSONPoster("resend", cfg, resendErrorMessage),
	}, nil
}

// Name returns "resend"
func (s *ResendSender) Name() string { return "resend" }

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendPayload struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html,omitempty"`
	Text    string      `json:"text,omitempty"`
	Tags    []resendTag `json:"tags,omitempty"`
}

// Send posts msg to Resend and returns the message id
func (s *ResendSender) Send(ctx context.Context, msg messaging.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	payload := resendPayload{
		From:    formatAddress(s.cfg.FromName, s.cfg.FromAddress),
		To:      []string{formatAddress(msg.ToName, msg.ToEmail)},
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.TextBody,
	}
	keys := make([]string, 0, len(msg.Tags))
	for k := range msg.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		payload.Tags = append(payload.Tags, resendTag{Name: k, Value: msg.Tags[k]})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("resend: failed to encode payload: %w", err)
	}

	resp, err := s.poster.post(ctx, body)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(resp.body, "id").String(), nil
}

func resendErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}

// formatAddress renders `Name <address>`, or the bare address without a name
func formatAddress(name, address string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", strings.ReplaceAll(name, `"`, ""), address)
}

var _ messaging.EmailSender = (*ResendSender)(nil)
