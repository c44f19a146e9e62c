// Package accountapi реализует клиент внешнего API аккаунтов, из которого
// читается статус подписки пользователя.
package accountapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// Client клиент API аккаунтов.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент API аккаунтов.
func NewClient(cfg config.AccountAPI) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchStatus возвращает текущий статус подписки пользователя.
func (c *Client) FetchStatus(ctx context.Context, userUID string) (*models.SubscriptionStatus, error) {
	const op = "accountapi.FetchStatus"

	endpoint := c.baseURL + "/users/" + url.PathEscape(userUID) + "/subscription"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var status models.SubscriptionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &status, nil
}
