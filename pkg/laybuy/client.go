package laybuy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderrecon/pkg/config"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
)

const (
	SandboxBaseURL    = "https://sandbox-api.laybuy.com"
	ProductionBaseURL = "https://api.laybuy.com"

	resultSuccess               = "SUCCESS"
	responseBodyReadLimit int64 = 1024
	// responseBodyMaxBytes caps any provider response; order payloads are a few KB.
	responseBodyMaxBytes int64 = 1 << 20
)

var (
	errMerchantIDRequired = errors.New("laybuy merchant id is required")
	errAPIKeyRequired     = errors.New("laybuy api key is required")
)

// Client talks to the Laybuy merchant API using basic auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	merchantID string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the environment base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a client for the merchant credentials in cfg.
func NewClient(cfg config.LaybuyConfig, opts ...Option) (*Client, error) {
	merchantID := strings.TrimSpace(cfg.MerchantID)
	if merchantID == "" {
		return nil, errMerchantIDRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURLFor(cfg),
		merchantID: merchantID,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func baseURLFor(cfg config.LaybuyConfig) string {
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		return trimmed
	}
	if cfg.Environment() == config.LaybuyEnvProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Order is the provider's view of a charged order.
type Order struct {
	OrderID           string
	Amount            decimal.Decimal
	Currency          string
	MerchantReference string
	// HasRefunds is true when the payload carries a non-null refunds entry.
	HasRefunds bool
	Raw        json.RawMessage
}

type confirmResponse struct {
	Result  string      `json:"result"`
	OrderID json.Number `json:"orderId"`
	Error   string      `json:"error"`
}

type orderResponse struct {
	Result            string          `json:"result"`
	OrderID           json.Number     `json:"orderId"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	MerchantReference string          `json:"merchantReference"`
	Refunds           json.RawMessage `json:"refunds"`
}

// Confirm resolves a checkout token to the provider order id. An empty id with
// a nil error means the provider did not report SUCCESS for the token.
func (c *Client) Confirm(ctx context.Context, token string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "laybuy client not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal confirm request")
	}

	body, status, err := c.do(ctx, http.MethodPost, "order/confirm", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", statusError(status, body, "confirm request failed")
	}

	var resp confirmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode confirm response")
	}
	if !strings.EqualFold(resp.Result, resultSuccess) {
		return "", nil
	}
	return resp.OrderID.String(), nil
}

// OrderByID fetches an order by provider id. A missing order yields (nil, nil).
func (c *Client) OrderByID(ctx context.Context, orderID string) (*Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return c.fetchOrder(ctx, "order/"+url.PathEscape(orderID))
}

// OrderByMerchantReference fetches an order by the store's increment id. A missing order yields (nil, nil).
func (c *Client) OrderByMerchantReference(ctx context.Context, reference string) (*Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant reference is required")
	}
	return c.fetchOrder(ctx, "order/merchant/"+url.PathEscape(reference))
}

func (c *Client) fetchOrder(ctx context.Context, path string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "laybuy client not configured")
	}

	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, statusError(status, body, "order request failed")
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order response")
	}
	if resp.Result != "" && !strings.EqualFold(resp.Result, resultSuccess) {
		return nil, nil
	}

	refunds := bytes.TrimSpace(resp.Refunds)
	return &Order{
		OrderID:           resp.OrderID.String(),
		Amount:            resp.Amount,
		Currency:          resp.Currency,
		MerchantReference: resp.MerchantReference,
		HasRefunds:        len(refunds) > 0 && !bytes.Equal(refunds, []byte("null")),
		Raw:               json.RawMessage(body),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build laybuy request")
	}
	httpReq.SetBasicAuth(c.merchantID, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute laybuy request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyMaxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read laybuy response")
	}
	if int64(len(body)) > responseBodyMaxBytes {
		return nil, resp.StatusCode, pkgerrors.Newf(pkgerrors.CodeDependency, "laybuy response exceeds %d bytes", responseBodyMaxBytes)
	}
	return body, resp.StatusCode, nil
}

func statusError(status int, body []byte, msg string) error {
	if int64(len(body)) > responseBodyReadLimit {
		body = body[:responseBodyReadLimit]
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body))), msg)
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
