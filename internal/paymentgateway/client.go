package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// VerificationResult is the gateway's authoritative answer for a payment
// intent. TransactionID is the gateway's canonical id for the charge and is
// what the ledger records once the payment completes.
type VerificationResult struct {
	Succeeded     bool
	TransactionID string
	AmountCents   int64
	Currency      string
}

type IntentRequest struct {
	AmountCents int64
	Currency    string
	Description string
	LearnerID   int64
	CourseID    int64
}

type Intent struct {
	ID           string
	ClientSecret string
}

type Config struct {
	APIURL        string
	APIKey        string
	VerifyTimeout time.Duration
}

// Client wraps the external payment gateway's HTTP API. Every call carries a
// bounded timeout; a timeout surfaces as an error and the caller retries,
// the client never loops internally.
type Client struct {
	apiURL        string
	apiKey        string
	verifyTimeout time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.VerifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiURL:        config.APIURL,
		apiKey:        config.APIKey,
		verifyTimeout: timeout,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Healthy reports whether the gateway endpoint is reachable. Any HTTP
// response counts as reachable; only transport failures and server errors
// do not.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/payment_intents", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// CreateIntent registers a payment intent with the gateway before any money
// moves. The returned intent id correlates the pending ledger row with the
// gateway-side session.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	payload := map[string]interface{}{
		"amount":   req.AmountCents,
		"currency": req.Currency,
		"metadata": map[string]string{
			"learner_id": fmt.Sprintf("%d", req.LearnerID),
			"course_id":  fmt.Sprintf("%d", req.CourseID),
		},
		"description": req.Description,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/payment_intents", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("creating gateway payment intent",
		"learner_id", req.LearnerID,
		"course_id", req.CourseID,
		"amount_cents", req.AmountCents)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var apiResponse struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}

	c.logger.Info("gateway payment intent created",
		"intent_id", apiResponse.ID,
		"learner_id", req.LearnerID,
		"course_id", req.CourseID)

	return &Intent{
		ID:           apiResponse.ID,
		ClientSecret: apiResponse.ClientSecret,
	}, nil
}

// VerifyIntent asks the gateway whether the intent actually succeeded. The
// gateway is the source of truth: client-supplied status is never trusted.
func (c *Client) VerifyIntent(ctx context.Context, intentID string) (*VerificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/payment_intents/%s", c.apiURL, intentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &VerificationResult{Succeeded: false}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var apiResponse struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}

	result := &VerificationResult{
		Succeeded:     apiResponse.Status == "succeeded",
		TransactionID: apiResponse.ID,
		AmountCents:   apiResponse.Amount,
		Currency:      apiResponse.Currency,
	}

	c.logger.Info("gateway verification result",
		"intent_id", intentID,
		"succeeded", result.Succeeded,
		"amount_cents", result.AmountCents)

	return result, nil
}
