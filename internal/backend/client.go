package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// secretHeader authenticates every request against the backend.
const secretHeader = "x-admin-secret"

// RequestError is returned for any non-2xx backend response. It carries
// enough context to be shown to the operator verbatim.
type RequestError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s → %d %s", e.Method, e.Path, e.Status, e.Body)
}

// IsAuthError reports whether err is a backend rejection of the admin secret.
func IsAuthError(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status == http.StatusUnauthorized || reqErr.Status == http.StatusForbidden
	}
	return false
}

// Client talks to the remote Dispen-Agua backend. The admin secret is bound
// at construction time; there is no ambient/global secret lookup.
type Client struct {
	baseURL string
	secret  string
	httpc   *http.Client
}

// New creates a backend client for the given base URL and admin secret.
func New(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// do issues a request and decodes the JSON response into out (when out is
// non-nil and the response has a body). A 204 is a bare success marker.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	} else if method != http.MethodGet {
		reader = bytes.NewBufferString("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(secretHeader, c.secret)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response for %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// ListDispensers returns all dispensers. It doubles as the auth probe: a
// rejected secret surfaces here as a 401/403 RequestError.
func (c *Client) ListDispensers(ctx context.Context) ([]Dispenser, error) {
	var ds []Dispenser
	if err := c.get(ctx, "/api/dispensers", &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// CreateDispenser asks the backend for a new dispenser with server-side
// defaults. The request carries no payload.
func (c *Client) CreateDispenser(ctx context.Context) (*Dispenser, error) {
	var resp dispenserResponse
	if err := c.do(ctx, http.MethodPost, "/api/dispensers", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Dispenser, nil
}

// ListProducts returns the products configured on a dispenser. The backend
// may return zero, one, or two records.
func (c *Client) ListProducts(ctx context.Context, dispenserID int64) ([]Product, error) {
	var ps []Product
	path := fmt.Sprintf("/api/productos?dispenser_id=%d", dispenserID)
	if err := c.get(ctx, path, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// CreateProduct creates a product on a dispenser slot.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (*Product, error) {
	var resp productResponse
	if err := c.do(ctx, http.MethodPost, "/api/productos", p, &resp); err != nil {
		return nil, err
	}
	return resp.Producto, nil
}

// UpdateProduct applies a partial update to an existing product.
func (c *Client) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	var resp productResponse
	path := fmt.Sprintf("/api/productos/%d", id)
	if err := c.do(ctx, http.MethodPut, path, patch, &resp); err != nil {
		return nil, err
	}
	return resp.Producto, nil
}

// ListPayments returns the most recent payments, newest first.
func (c *Client) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	var ps []Payment
	path := fmt.Sprintf("/api/pagos?limit=%d", limit)
	if err := c.get(ctx, path, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// CreatePreference requests a fresh payment link for a product. Links are
// never cached or reused.
func (c *Client) CreatePreference(ctx context.Context, productID int64) (string, error) {
	var resp preferenceResponse
	body := map[string]int64{"product_id": productID}
	if err := c.do(ctx, http.MethodPost, "/api/pagos/preferencia", body, &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.Link == "" {
		return "", fmt.Errorf("backend did not return a payment link")
	}
	return resp.Link, nil
}

// RetryDispense asks the backend to re-send the dispense command for an
// approved but undispensed payment.
func (c *Client) RetryDispense(ctx context.Context, paymentID int64) (string, error) {
	var resp retryResponse
	path := fmt.Sprintf("/api/pagos/%d/reenviar", paymentID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.Msg == "" {
		resp.Msg = "OK"
	}
	return resp.Msg, nil
}

// GetMode returns the active payment mode ("test" or "live").
func (c *Client) GetMode(ctx context.Context) (string, error) {
	var resp configResponse
	if err := c.get(ctx, "/api/config", &resp); err != nil {
		return "", err
	}
	mode := strings.ToLower(resp.MPMode)
	if mode == "" {
		mode = "test"
	}
	return mode, nil
}

// SetMode switches the backend between test and live payments.
func (c *Client) SetMode(ctx context.Context, mode string) error {
	body := map[string]string{"mode": mode}
	return c.do(ctx, http.MethodPost, "/api/mp/mode", body, nil)
}

// OAuthStatus reports the MercadoPago account link state.
func (c *Client) OAuthStatus(ctx context.Context) (OAuthStatus, error) {
	var st OAuthStatus
	if err := c.get(ctx, "/api/mp/oauth/status", &st); err != nil {
		return OAuthStatus{}, err
	}
	return st, nil
}

// OAuthInitURL returns the MercadoPago authorization URL to open in a
// browser.
func (c *Client) OAuthInitURL(ctx context.Context) (string, error) {
	var resp oauthInitResponse
	if err := c.get(ctx, "/api/mp/oauth/init", &resp); err != nil {
		return "", err
	}
	url := resp.URL
	if url == "" {
		url = resp.AuthURL
	}
	if url == "" {
		return "", fmt.Errorf("backend did not return an authorization URL")
	}
	return url, nil
}

// OAuthUnlink disconnects the linked MercadoPago account.
func (c *Client) OAuthUnlink(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/mp/oauth/unlink", nil, nil)
}
