// Package paymentprovider реализует клиент REST API PayPal для подписок:
// создание, получение, отмена и проверка подписи вебхуков.
// Токен доступа получается по client credentials и обновляется автоматически.
package paymentprovider

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

// Config — параметры доступа к PayPal.
type Config struct {
	ClientID  string
	Secret    string
	BaseURL   string
	WebhookID string
	Timeout   time.Duration
}

// Client — клиент PayPal.
type Client struct {
	baseURL    string
	webhookID  string
	httpClient *http.Client
}

// NewClient создаёт новый клиент PayPal.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.Secret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    baseURL,
		webhookID:  cfg.WebhookID,
		httpClient: httpClient,
	}
}

// VerifiesWebhooks сообщает, настроен ли идентификатор вебхука для проверки подписи.
func (c *Client) VerifiesWebhooks() bool {
	return c.webhookID != ""
}

// CreateSubscription создаёт подписку и возвращает её вместе со ссылкой подтверждения.
func (c *Client) CreateSubscription(ctx context.Context, reqParams CreateSubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, "create", http.MethodPost, "/v1/billing/subscriptions", reqParams, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscription возвращает текущее состояние подписки.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	path := "/v1/billing/subscriptions/" + url.PathEscape(id)
	if err := c.do(ctx, "verify", http.MethodGet, path, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription отменяет подписку на стороне PayPal.
func (c *Client) CancelSubscription(ctx context.Context, id, reason string) error {
	path := "/v1/billing/subscriptions/" + url.PathEscape(id) + "/cancel"
	return c.do(ctx, "cancel", http.MethodPost, path, cancelRequest{Reason: reason}, nil)
}

// VerifyWebhookSignature проверяет подпись уведомления через API PayPal.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, body []byte) (bool, error) {
	if c.webhookID == "" {
		return false, &models.GatewayError{Op: "verify-webhook", Message: "webhook id is not configured"}
	}
	reqParams := verifyWebhookRequest{
		AuthAlgo:         headers.AuthAlgo,
		CertURL:          headers.CertURL,
		TransmissionID:   headers.TransmissionID,
		TransmissionSig:  headers.TransmissionSig,
		TransmissionTime: headers.TransmissionTime,
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}
	var resp verifyWebhookResponse
	if err := c.do(ctx, "verify-webhook", http.MethodPost, "/v1/notifications/verify-webhook-signature", reqParams, &resp); err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return &models.GatewayError{Op: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			gErr := &models.GatewayError{Op: "auth", Name: rErr.ErrorCode, Message: rErr.ErrorDescription, Err: err}
			if rErr.Response != nil {
				gErr.StatusCode = rErr.Response.StatusCode
			}
			return gErr
		}
		return &models.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	gErr := &models.GatewayError{Op: op, StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		gErr.Err = err
		return gErr
	}
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && (apiErr.Name != "" || apiErr.Message != "") {
		gErr.Name = apiErr.Name
		gErr.Message = apiErr.Message
		return gErr
	}
	gErr.Message = strings.TrimSpace(string(raw))
	if gErr.Message == "" {
		gErr.Message = resp.Status
	}
	return gErr
}
