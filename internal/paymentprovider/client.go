// Package paymentprovider реализует клиент FastSpring: создание checkout-сессий
// для popup-окна и проверку подписи webhook.
package paymentprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
)

// TagUserID тег, по которому заказ сопоставляется с пользователем.
const TagUserID = "user_id"

var (
	// ErrNotLoaded построитель checkout не сконфигурирован.
	ErrNotLoaded = errors.New("payment builder is not loaded")
	// ErrBuilderUnavailable построитель сконфигурирован, но не может открыть checkout.
	ErrBuilderUnavailable = errors.New("payment builder is unavailable")
)

// Client клиент FastSpring Sessions API.
type Client struct {
	apiURL     string
	username   string
	password   string
	storefront string
	httpClient *http.Client
}

// NewClient создаёт новый клиент FastSpring.
func NewClient(cfg config.FastSpring) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		storefront: strings.Trim(cfg.Storefront, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ready сообщает, может ли клиент открыть checkout.
func (c *Client) Ready() error {
	if c == nil || c.apiURL == "" || c.username == "" || c.password == "" {
		return ErrNotLoaded
	}
	if c.storefront == "" {
		return ErrBuilderUnavailable
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Push создает checkout-сессию для переданных продуктов и возвращает адрес popup-окна.
// Ошибки транспорта и ответы 5xx оборачивают ErrBuilderUnavailable.
func (c *Client) Push(ctx context.Context, cfg PushConfig) (*Popup, error) {
	const op = "paymentprovider.Push"
	if err := c.Ready(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(cfg.Products) == 0 {
		return nil, fmt.Errorf("%s: no products", op)
	}

	body := createSessionRequest{Tags: cfg.Tags}
	for _, p := range cfg.Products {
		body.Items = append(body.Items, sessionItem{Product: p.Path, Quantity: 1})
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/sessions", body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrBuilderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s: %w: unexpected status: %s", op, ErrBuilderUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var session createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%s: empty session id", op)
	}

	popup := &Popup{
		SessionID: session.ID,
		URL:       "https://" + c.storefront + "/session/" + session.ID,
	}
	if session.Expires > 0 {
		popup.ExpiresAt = time.UnixMilli(session.Expires).UTC()
	}
	if cfg.Checkout {
		popup.URL += "?checkout=true"
	}
	return popup, nil
}

// VerifySignature проверяет подпись webhook: base64(HMAC-SHA256(body)).
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// Sign подписывает тело webhook тем же способом, что и платежная система.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
