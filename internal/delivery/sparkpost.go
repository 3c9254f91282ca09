package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// SparkPostTransport sends through the SparkPost transmissions API.
type SparkPostTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSparkPostTransport returns a transport against the given API base URL
// (e.g. https://api.sparkpost.com/api/v1).
func NewSparkPostTransport(baseURL, apiKey string, timeout time.Duration) *SparkPostTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SparkPostTransport{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Type identifies this transport.
func (t *SparkPostTransport) Type() domain.TransportType { return domain.TransportSparkPost }

// Send submits a single-recipient transmission. SparkPost's own open/click
// tracking is disabled; tracking is injected upstream.
func (t *SparkPostTransport) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{
				"address": map[string]string{
					"email": msg.Email,
					"name":  msg.Name,
				},
			},
		},
		"content": map[string]interface{}{
			"from": map[string]string{
				"email": msg.FromEmail,
				"name":  msg.FromName,
			},
			"reply_to": msg.ReplyTo,
			"subject":  msg.Subject,
			"html":     msg.HTMLBody,
		},
		"metadata": map[string]interface{}{
			"campaign_id":  msg.CampaignID,
			"recipient_id": msg.RecipientID,
		},
		"options": map[string]interface{}{
			"open_tracking":  false,
			"click_tracking": false,
		},
	}

	body, err := json.Marshal(transmission)
	if err != nil {
		return "", permanent(domain.TransportSparkPost, "marshal", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return "", transient(domain.TransportSparkPost, "request", err.Error())
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", transient(domain.TransportSparkPost, "network", err.Error())
	}
	defer resp.Body.Close()

	var spResp struct {
		Results struct {
			TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
			ID                      string `json:"id"`
		} `json:"results"`
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&spResp); err != nil && resp.StatusCode == http.StatusOK {
		return "", transient(domain.TransportSparkPost, "decode", err.Error())
	}

	if resp.StatusCode == http.StatusOK && len(spResp.Errors) == 0 {
		return spResp.Results.ID, nil
	}

	code := fmt.Sprintf("http_%d", resp.StatusCode)
	msgText := "transmission rejected"
	if len(spResp.Errors) > 0 {
		msgText = spResp.Errors[0].Message
		if spResp.Errors[0].Code != "" {
			code = spResp.Errors[0].Code
		}
	}

	// 4xx other than throttling means the payload or address is bad and a
	// different transport will not help. 420/429 and 5xx are worth a
	// fallback attempt.
	switch {
	case resp.StatusCode == 420 || resp.StatusCode == http.StatusTooManyRequests:
		return "", transient(domain.TransportSparkPost, code, msgText)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", permanent(domain.TransportSparkPost, code, msgText)
	default:
		return "", transient(domain.TransportSparkPost, code, msgText)
	}
}
