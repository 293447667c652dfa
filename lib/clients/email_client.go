package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailMessage is the payload accepted by the transactional email API
type EmailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// EmailClientInterface defines the interface for sending transactional email
type EmailClientInterface interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// EmailClient posts messages to the external transactional email HTTP API
type EmailClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewEmailClient creates an email API client. apiURL and apiKey come from SSM.
func NewEmailClient(apiURL, apiKey string) EmailClientInterface {
	return &EmailClient{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts the message and returns the provider's message id.
// The API is called exactly once; there is no retry here.
func (client *EmailClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.apiKey)

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("email API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read email API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("email API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode email API response: %w", err)
	}

	return result.ID, nil
}
