// Package mailer dispatches confirmation emails through the hosted email
// service. Failures here are secondary: a booking that is paid stays paid.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

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

// Confirmation is the booking-confirmation email payload
type Confirmation struct {
	Reference   string  `json:"reference"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	TourName    string  `json:"tourName"`
	Date        string  `json:"date"`
	TimeOfDay   string  `json:"time"`
	PartySize   int     `json:"partySize"`
	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
	ManageToken string  `json:"manageToken"`
}

// SendConfirmation dispatches the booking confirmation email
func (c *Client) SendConfirmation(ctx context.Context, msg Confirmation) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/emails/booking-confirmation", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("email dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email service error (status=%d)", resp.StatusCode)
	}
	return nil
}
