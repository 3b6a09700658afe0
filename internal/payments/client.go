// Package payments is a thin client for the hosted payment provider. The
// checkout workflow drives the intent lifecycle: create before review,
// confirm only after the booking record exists.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrPaymentDeclined marks a provider-side decline: surfaced to the customer
// as-is and never retried automatically.
var ErrPaymentDeclined = errors.New("payment declined")

type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

// IntentRequest creates a pending charge. Amount is in minor currency units.
type IntentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Email       string            `json:"email"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Intent struct {
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
}

type Confirmation struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// CreateIntent initializes a pending charge and returns its client secret
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	var intent Intent
	if err := c.post(ctx, "/v1/intents", req, &intent); err != nil {
		return nil, err
	}
	if intent.IntentID == "" {
		return nil, errors.New("provider returned no intent id")
	}
	return &intent, nil
}

// Confirm settles a previously created intent. A non-succeeded status is a
// decline, returned with the provider's message attached.
func (c *Client) Confirm(ctx context.Context, intentID string) (*Confirmation, error) {
	var conf Confirmation
	if err := c.post(ctx, "/v1/intents/"+intentID+"/confirm", struct{}{}, &conf); err != nil {
		return nil, err
	}
	if conf.Status != "succeeded" {
		if conf.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, conf.Message)
		}
		return nil, ErrPaymentDeclined
	}
	if conf.PaymentID == "" {
		return nil, errors.New("provider returned no payment id")
	}
	return &conf, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message != "" {
			return fmt.Errorf("payment provider error (status=%d): %s", resp.StatusCode, e.Message)
		}
		return fmt.Errorf("payment provider error (status=%d)", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
