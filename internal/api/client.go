// Package api provides a typed client for the membership platform REST API.
// All calls are context-bound and carry an explicit timeout; failures are
// returned as *Error with the server status and message attached.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/affinityhq/affinity/internal/domain"
)

// TokenSource supplies the bearer credential for authenticated requests.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	Token() string
}

// Client talks to the membership platform API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
}

// Config holds configuration for the API client.
type Config struct {
	BaseURL string

	// Tokens supplies the bearer credential; nil means anonymous only.
	Tokens TokenSource

	// HTTPClient overrides the default tuned client (used for resilience
	// wrapping and in tests).
	HTTPClient *http.Client

	// Timeout bounds each individual request. Default: 15s.
	Timeout time.Duration
}

// NewClient creates a membership API client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newAPIHTTPClient()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		tokens:     cfg.Tokens,
		timeout:    cfg.Timeout,
	}
}

// LoginRequest carries credentials for auth.login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest carries the fields for auth.register.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	UserType  string `json:"userType,omitempty"`
}

// AuthResponse is the server reply to login and register. Register may omit
// the token and instead flag that email verification is pending.
type AuthResponse struct {
	User                      *domain.User `json:"user"`
	Token                     string       `json:"token,omitempty"`
	EmailVerificationRequired bool         `json:"emailVerificationRequired,omitempty"`
	Message                   string       `json:"message,omitempty"`
}

// SubmitApplicationRequest is the payload for application.submit. The form
// snapshot is a serialized copy of the form definition at submission time.
type SubmitApplicationRequest struct {
	PlanID       int64             `json:"planId"`
	Values       map[string]string `json:"values"`
	FormSnapshot json.RawMessage   `json:"formData"`
	CouponID     int64             `json:"couponId,omitempty"`
}

// SubmitApplicationResponse reports the created or completed application.
type SubmitApplicationResponse struct {
	ApplicationID int64 `json:"applicationId"`
	IsIncomplete  bool  `json:"isIncomplete"`
}

// PaymentRequest carries payment details for an application.
type PaymentRequest struct {
	ApplicationID int64   `json:"applicationId"`
	PlanID        int64   `json:"planId"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	Reference     string  `json:"reference,omitempty"`
}

// PaymentConfirmation is the server acknowledgement of a payment.
type PaymentConfirmation struct {
	PaymentID     int64  `json:"paymentId"`
	ApplicationID int64  `json:"applicationId"`
	Status        string `json:"status"`
}

// Login exchanges credentials for a user record and bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a new account. The response may require email
// verification before the account can authenticate.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile fetches the user record for the current bearer token.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListPlans returns all public membership plans.
func (c *Client) ListPlans(ctx context.Context) ([]domain.MembershipPlan, error) {
	var plans []domain.MembershipPlan
	if err := c.do(ctx, http.MethodGet, "/api/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// ListOrganizations returns all public organizations.
func (c *Client) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	if err := c.do(ctx, http.MethodGet, "/api/organizations", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetForm fetches a plan-specific application form by id.
func (c *Client) GetForm(ctx context.Context, formID int64) (*domain.ApplicationForm, error) {
	var form domain.ApplicationForm
	path := "/api/forms/" + strconv.FormatInt(formID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// GetOrganizationForm fetches an organization's default application form.
func (c *Client) GetOrganizationForm(ctx context.Context, orgID int64) (*domain.ApplicationForm, error) {
	var form domain.ApplicationForm
	path := "/api/organizations/" + strconv.FormatInt(orgID, 10) + "/form"
	if err := c.do(ctx, http.MethodGet, path, nil, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// GetDefaultForm fetches the global default application form.
func (c *Client) GetDefaultForm(ctx context.Context) (*domain.ApplicationForm, error) {
	var form domain.ApplicationForm
	if err := c.do(ctx, http.MethodGet, "/api/forms/default", nil, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// CheckIncomplete returns incomplete applications recorded for an email.
func (c *Client) CheckIncomplete(ctx context.Context, email string) ([]domain.IncompleteApplication, error) {
	var apps []domain.IncompleteApplication
	path := "/api/applications/incomplete?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// ValidateCoupon checks a coupon code against a plan.
func (c *Client) ValidateCoupon(ctx context.Context, code string, planID int64) (*domain.Coupon, error) {
	req := struct {
		Code   string `json:"code"`
		PlanID int64  `json:"planId"`
	}{Code: code, PlanID: planID}

	var coupon domain.Coupon
	if err := c.do(ctx, http.MethodPost, "/api/coupons/validate", req, &coupon); err != nil {
		return nil, err
	}
	coupon.Code = code
	return &coupon, nil
}

// SubmitApplication submits a filled application form.
func (c *Client) SubmitApplication(ctx context.Context, req SubmitApplicationRequest) (*SubmitApplicationResponse, error) {
	var resp SubmitApplicationResponse
	if err := c.do(ctx, http.MethodPost, "/api/applications", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitPayment pays for a submitted application.
func (c *Client) SubmitPayment(ctx context.Context, req PaymentRequest) (*PaymentConfirmation, error) {
	var resp PaymentConfirmation
	if err := c.do(ctx, http.MethodPost, "/api/payments/application", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs a single API round trip: marshal, send, map non-2xx to
// *Error, decode into out (which may be nil for empty responses).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps a failure response to *Error, preferring the server's
// message field when the body is parseable.
func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Message != "":
			apiErr.Message = payload.Message
		case payload.Error != "":
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}
