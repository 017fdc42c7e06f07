package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

type AuthorityConfig struct {
	BaseURL       string
	APIKey        string
	Authorization string
	Timeout       time.Duration
}

// AuthorityClient looks up payments on the gateway's ERP API.
type AuthorityClient struct {
	cfg  AuthorityConfig
	http *http.Client
}

func NewAuthorityClient(cfg AuthorityConfig, hc *http.Client) *AuthorityClient {
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AuthorityClient{cfg: cfg, http: hc}
}

type fetchResponse struct {
	Success bool                            `json:"success"`
	Message string                          `json:"message,omitempty"`
	Data    *domain.ReconciledPaymentStatus `json:"data"`
}

func (c *AuthorityClient) FetchPayment(ctx context.Context, applicationCode string) (*domain.ReconciledPaymentStatus, error) {
	u := c.cfg.BaseURL + "/v1/payments/fetch?application_code=" + url.QueryEscape(applicationCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("GQ-API-Key", c.cfg.APIKey)
	req.Header.Set("Authorization", c.cfg.Authorization)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch payment: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	if !out.Success || out.Data == nil {
		return nil, nil
	}
	if out.Data.ApplicationCode == "" {
		out.Data.ApplicationCode = applicationCode
	}
	out.Data.PaymentStatus = domain.ParsePaymentStatus(string(out.Data.PaymentStatus))
	return out.Data, nil
}

var _ usecase.PaymentAuthority = (*AuthorityClient)(nil)
