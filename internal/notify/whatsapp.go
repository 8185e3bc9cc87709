package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v20.0"

// WhatsAppSender sends text messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	http          *http.Client
}

func NewWhatsAppSender(accessToken, phoneNumberID string) *WhatsAppSender {
	return &WhatsAppSender{
		accessToken:   strings.TrimSpace(accessToken),
		phoneNumberID: strings.TrimSpace(phoneNumberID),
		baseURL:       defaultGraphBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WhatsAppSender) ProviderID() string {
	return "whatsapp-cloud"
}

func (s *WhatsAppSender) Send(ctx context.Context, phone string, text string) error {
	if s.accessToken == "" || s.phoneNumberID == "" {
		return errors.New("whatsapp cloud api not configured")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
