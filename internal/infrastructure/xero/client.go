// Package xero implements the invoicing gateway port against the Xero
// accounting API using the OAuth2 client credentials grant.
package xero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"club19/internal/core/apperror"
	"club19/internal/domain/gateway"
	"club19/pkg/logger"
)

const (
	defaultAPIBaseURL  = "https://api.xero.com/api.xro/2.0"
	defaultTokenURL    = "https://identity.xero.com/connect/token"
	requestTimeout     = 30 * time.Second
	tokenExpirySkew    = 60 * time.Second
	invoiceURLTemplate = "https://go.xero.com/AccountsReceivable/View.aspx?InvoiceID=%s"
)

// Config carries the gateway connection settings.
type Config struct {
	APIBaseURL   string
	TokenURL     string
	ClientID     string
	ClientSecret string
	TenantID     string
}

// ConfigFromEnv reads the gateway settings from the environment.
func ConfigFromEnv() Config {
	cfg := Config{
		APIBaseURL:   strings.TrimSpace(os.Getenv("XERO_API_BASE_URL")),
		TokenURL:     strings.TrimSpace(os.Getenv("XERO_TOKEN_URL")),
		ClientID:     strings.TrimSpace(os.Getenv("XERO_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("XERO_CLIENT_SECRET")),
		TenantID:     strings.TrimSpace(os.Getenv("XERO_TENANT_ID")),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return cfg
}

var _ gateway.Client = (*Client)(nil)

// Client talks to the Xero API. A credential obtained once is cached and
// reused until shortly before expiry.
type Client struct {
	cfg  Config
	http *http.Client

	mu     sync.Mutex
	cached *gateway.Credential
}

// NewClient creates a gateway client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("xero client credentials are not configured")
	}
	if cfg.TenantID == "" {
		return nil, errors.New("xero tenant id is not configured")
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Obtain returns a valid credential, requesting a fresh token when the
// cached one is missing or near expiry.
func (c *Client) Obtain(ctx context.Context) (*gateway.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && time.Until(c.cached.ExpiresAt) > tokenExpirySkew {
		return c.cached, nil
	}

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"accounting.transactions.read"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.NewGatewayUnavailable("token endpoint unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest:
		return nil, apperror.NewGatewayAuth("gateway rejected client credentials").
			WithDetail("status", resp.Status)
	default:
		return nil, apperror.NewGatewayUnavailable("token endpoint error").
			WithDetail("status", resp.Status)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, apperror.NewGatewayAuth("gateway returned an empty access token")
	}

	c.cached = &gateway.Credential{
		AccessToken: token.AccessToken,
		TenantID:    c.cfg.TenantID,
		ExpiresAt:   time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	logger.Debug(ctx, "obtained gateway credential", "expires_at", c.cached.ExpiresAt)
	return c.cached, nil
}

// GetInvoice fetches a single invoice by its external ID.
func (c *Client) GetInvoice(ctx context.Context, cred *gateway.Credential, invoiceID string) (*gateway.Invoice, error) {
	endpoint := fmt.Sprintf("%s/Invoices/%s", strings.TrimRight(c.cfg.APIBaseURL, "/"), url.PathEscape(invoiceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build invoice request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Xero-Tenant-Id", cred.TenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, apperror.NewGatewayUnavailable("invoice fetch timed out").
				WithDetail("invoice_id", invoiceID)
		}
		return nil, apperror.NewGatewayUnavailable("gateway unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Invalidate the cached token so the next batch re-authenticates.
		c.mu.Lock()
		c.cached = nil
		c.mu.Unlock()
		return nil, apperror.NewGatewayAuth("gateway rejected access token").
			WithDetail("status", resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperror.NewNotFound("invoice", invoiceID)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperror.NewGatewayUnavailable("gateway error").
			WithDetail("status", resp.Status).
			WithDetail("invoice_id", invoiceID)
	default:
		var apiErr apiErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		return nil, fmt.Errorf("gateway error %s: %s", resp.Status, apiErr.Message)
	}

	var parsed invoicesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode invoice response: %w", err)
	}
	if len(parsed.Invoices) == 0 {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}

	return mapInvoice(parsed.Invoices[0]), nil
}

func mapInvoice(w wireInvoice) *gateway.Invoice {
	return &gateway.Invoice{
		ID:          w.InvoiceID,
		Number:      w.InvoiceNumber,
		Status:      w.Status,
		Currency:    w.CurrencyCode,
		Total:       w.Total,
		AmountDue:   w.AmountDue,
		DueDate:     w.DueDate.timePtr(),
		FullyPaidOn: w.FullyPaidOnDate.timePtr(),
		URL:         fmt.Sprintf(invoiceURLTemplate, w.InvoiceID),
	}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
