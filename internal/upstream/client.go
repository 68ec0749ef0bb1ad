// Package upstream is the client for the external sentimetrics REST
// backend. It owns the gateway's error taxonomy: transport failures,
// non-2xx responses carrying a message, and cancellation (which is never
// surfaced to users). No request is ever retried.
package upstream

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

	"sentimetrics/internal/models"
)

// ErrCanceled marks a request abandoned because its scope changed or its
// consumer went away. Callers swallow it silently.
var ErrCanceled = errors.New("request canceled")

// ErrUnreachable wraps transport-level failures (no response at all).
var ErrUnreachable = errors.New("cannot reach server")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (HTTP %d)", e.Status)
}

// TokenSource supplies the current bearer token, empty when logged out.
type TokenSource func() string

type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
}

// New creates a client for the backend at base. tokens may be nil for a
// client that only performs unauthenticated calls.
func New(base string, tokens TokenSource) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{},
		tokens: tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return nil, ErrCanceled
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return nil, ErrCanceled
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: bodyMessage(data)}
	}

	return data, nil
}

// bodyMessage pulls the backend's "message" field out of an error body.
func bodyMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return ""
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// decodeRows accepts both a bare JSON array and a {"rows": [...]} envelope.
func decodeRows[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []T
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var envelope struct {
		Rows []T `json:"rows"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Rows, nil
}

// LoginResult is the backend's login response.
type LoginResult struct {
	Token   string         `json:"token"`
	User    models.User    `json:"user"`
	Brands  []models.Brand `json:"brands"`
	Message string         `json:"message,omitempty"`
}

// Login authenticates with the backend. The only unauthenticated call.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var res LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.postJSON(ctx, "/auth/login", body, &res); err != nil {
		return LoginResult{}, err
	}
	if res.Token == "" {
		return LoginResult{}, &APIError{Status: http.StatusBadGateway, Message: "token missing from login response"}
	}
	return res, nil
}

// Brands lists the brands visible to the current token.
func (c *Client) Brands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if err := c.getJSON(ctx, "/brands", nil, &brands); err != nil {
		return nil, err
	}
	return brands, nil
}

// SelectBrand tells the backend which brand is active.
func (c *Client) SelectBrand(ctx context.Context, brandID string) (models.Brand, error) {
	var res struct {
		Selected models.Brand `json:"selected"`
	}
	if err := c.postJSON(ctx, "/brands/select", map[string]string{"brandId": brandID}, &res); err != nil {
		return models.Brand{}, err
	}
	return res.Selected, nil
}

// ActiveBrand asks the backend for its recorded active brand, nil when
// none is set.
func (c *Client) ActiveBrand(ctx context.Context) (*models.Brand, error) {
	var res struct {
		Active *models.Brand `json:"active"`
	}
	if err := c.getJSON(ctx, "/brands/active", nil, &res); err != nil {
		return nil, err
	}
	return res.Active, nil
}

// Products fetches all item rows for a brand.
func (c *Client) Products(ctx context.Context, brandID string) ([]models.Product, error) {
	q := url.Values{"brandId": {brandID}}
	data, err := c.do(ctx, http.MethodGet, "/products", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Product](data)
}

// ReviewQuery is the review fetch scope. Empty or "all" fields are
// omitted from the request.
type ReviewQuery struct {
	BrandID   string
	ChannelID string
	OutletID  string
	Rating    string
	Q         string
	DateFrom  string
	DateTo    string
}

func (q ReviewQuery) values() url.Values {
	v := url.Values{"brandId": {q.BrandID}}
	set := func(key, val string) {
		if val != "" && val != "all" {
			v.Set(key, val)
		}
	}
	set("channelId", q.ChannelID)
	set("outletId", q.OutletID)
	set("rating", q.Rating)
	set("q", q.Q)
	set("dateFrom", q.DateFrom)
	set("dateTo", q.DateTo)
	return v
}

// Reviews fetches review rows for a scope.
func (c *Client) Reviews(ctx context.Context, query ReviewQuery) ([]models.Review, error) {
	data, err := c.do(ctx, http.MethodGet, "/reviews", query.values(), nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Review](data)
}

// Outlets fetches the outlets of a brand.
func (c *Client) Outlets(ctx context.Context, brandID string) ([]models.Outlet, error) {
	q := url.Values{"brandId": {brandID}}
	data, err := c.do(ctx, http.MethodGet, "/outlets", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeRows[models.Outlet](data)
}

// Channels fetches the delivery channel catalog. The endpoint wraps its
// payload in a {"data": [...]} envelope.
func (c *Client) Channels(ctx context.Context) ([]models.Channel, error) {
	var res struct {
		Data []models.Channel `json:"data"`
	}
	if err := c.getJSON(ctx, "/channels", nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Companies lists companies. Superadmin only.
func (c *Client) Companies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := c.getJSON(ctx, "/companies", nil, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// CreateCompany creates a company. Superadmin only.
func (c *Client) CreateCompany(ctx context.Context, name string) (models.Company, error) {
	var company models.Company
	if err := c.postJSON(ctx, "/companies", map[string]string{"name": name}, &company); err != nil {
		return models.Company{}, err
	}
	return company, nil
}

// CompanyBrands lists the brands of one company.
func (c *Client) CompanyBrands(ctx context.Context, companyID string) ([]models.Brand, error) {
	var brands []models.Brand
	if err := c.getJSON(ctx, "/companies/"+url.PathEscape(companyID)+"/brands", nil, &brands); err != nil {
		return nil, err
	}
	return brands, nil
}

// CreateCompanyBrand adds a brand under a company. Superadmin only.
func (c *Client) CreateCompanyBrand(ctx context.Context, companyID, name string) (models.Brand, error) {
	var brand models.Brand
	path := "/companies/" + url.PathEscape(companyID) + "/brands"
	if err := c.postJSON(ctx, path, map[string]string{"name": name}, &brand); err != nil {
		return models.Brand{}, err
	}
	return brand, nil
}

// CreateUser provisions a user linked to a company. Superadmin only.
func (c *Client) CreateUser(ctx context.Context, u models.NewUser) error {
	return c.postJSON(ctx, "/superadmin/create-user", u, nil)
}

// Dashboard fetches the raw dashboard payload.
func (c *Client) Dashboard(ctx context.Context) (json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/dashboard", nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// DashboardSummary fetches the per-brand dashboard summary.
func (c *Client) DashboardSummary(ctx context.Context, brandID string) (models.DashboardSummary, error) {
	var summary models.DashboardSummary
	q := url.Values{"brandId": {brandID}}
	if err := c.getJSON(ctx, "/dashboard/summary", q, &summary); err != nil {
		return models.DashboardSummary{}, err
	}
	return summary, nil
}
