package mobilemoney

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

	"eventportal/internal/domain"
)

const currencyXAF = "XAF"

type collectRequest struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	From              string `json:"from"`
	Provider          string `json:"provider"`
	Description       string `json:"description,omitempty"`
	ExternalReference string `json:"external_reference"`
}

type collectResponse struct {
	Reference string `json:"reference"`
}

type transactionResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

type errorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

type aggregatorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient returns a gateway that talks to the mobile money aggregator's REST API.
func NewClient(baseURL, apiKey string, client *http.Client) domain.PaymentGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &aggregatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (c *aggregatorClient) Initiate(ctx context.Context, req domain.PaymentRequest) (string, error) {
	body, err := json.Marshal(collectRequest{
		Amount:            req.Amount,
		Currency:          currencyXAF,
		From:              req.PhoneNumber,
		Provider:          string(req.Provider),
		Description:       req.Description,
		ExternalReference: req.Reference,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode collect request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/collect", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out collectResponse
	if err := c.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.Reference == "" {
		return "", &domain.ProviderError{StatusCode: http.StatusBadGateway, Message: "payment provider returned no transaction reference"}
	}
	return out.Reference, nil
}

func (c *aggregatorClient) Status(ctx context.Context, transactionID string, provider domain.PaymentProvider) (domain.PaymentStatusResult, error) {
	u := fmt.Sprintf("%s/transaction/%s", c.baseURL, url.PathEscape(transactionID))
	if provider != "" {
		u += "?provider=" + url.QueryEscape(string(provider))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.PaymentStatusResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	var out transactionResponse
	if err := c.do(httpReq, &out); err != nil {
		return domain.PaymentStatusResult{}, err
	}
	return domain.PaymentStatusResult{Status: normalizeStatus(out.Status), Message: out.Reason}, nil
}

func (c *aggregatorClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.Message
		if msg == "" {
			msg = e.Detail
		}
		return &domain.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode payment provider response: %w", err)
	}
	return nil
}

// normalizeStatus maps aggregator states onto PENDING/SUCCESSFUL/FAILED. Anything unrecognized is still pending.
func normalizeStatus(s string) domain.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESSFUL", "SUCCESS", "COMPLETED":
		return domain.PaymentSuccessful
	case "FAILED", "FAILURE", "REJECTED", "CANCELLED", "EXPIRED":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}
