package licensing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// API is the license backend as seen by the console.
// *Client implements it; tests substitute fakes.
type API interface {
	Login(ctx context.Context, username, password string) (LoginResponse, error)
	FetchLicenseSummaries(ctx context.Context) ([]LicenseSummary, error)
	FetchLicenseDetail(ctx context.Context, id int64) (LicenseDetail, error)
	FetchModuleCatalog(ctx context.Context) ([]ModuleCatalogEntry, error)
	SaveLicense(ctx context.Context, payload SavePayload) (SaveResponse, error)
	DeleteLicense(ctx context.Context, id int64) error
	FetchAuditTrail(ctx context.Context, domain string) ([]AuditRecord, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Observer is told about every outbound request. End is called exactly once
// per Begin, after the response body is closed or the request fails.
type Observer interface {
	Begin()
	End()
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Token returns the bearer token for the current session, or "".
	Token    func() string
	Observer Observer
	Logger   zerolog.Logger
}

// Client talks to the license REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	token     func() string
	logger    zerolog.Logger
}

const (
	DefaultBaseURL   = "http://localhost:9090/NexxLicense"
	defaultUserAgent = "licdesk/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
)

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	var transport http.RoundTripper = http.DefaultTransport
	if opts.Observer != nil {
		transport = &trackingTransport{next: transport, observer: opts.Observer}
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgent,
		token:     opts.Token,
		logger:    opts.Logger.With().Str("component", "licensing").Logger(),
	}, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL.String()
}

// Login authenticates an administrator.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	if c == nil {
		return LoginResponse{}, fmt.Errorf("client is nil")
	}
	body := map[string]string{"username": username, "password": password}
	var payload LoginResponse
	if err := c.do(ctx, http.MethodPost, "login", nil, body, &payload); err != nil {
		return LoginResponse{}, err
	}
	return payload, nil
}

// FetchLicenseSummaries retrieves every license summary.
func (c *Client) FetchLicenseSummaries(ctx context.Context) ([]LicenseSummary, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []LicenseSummary
	if err := c.do(ctx, http.MethodGet, "licenses", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchLicenseDetail retrieves the header and modules of one license.
func (c *Client) FetchLicenseDetail(ctx context.Context, id int64) (LicenseDetail, error) {
	if c == nil {
		return LicenseDetail{}, fmt.Errorf("client is nil")
	}
	if id <= 0 {
		return LicenseDetail{}, fmt.Errorf("license id required")
	}
	var payload LicenseDetail
	if err := c.do(ctx, http.MethodGet, licensePath(id), nil, nil, &payload); err != nil {
		return LicenseDetail{}, err
	}
	if payload.Header.ID == nil {
		payload.Header.ID = &id
	}
	return payload, nil
}

// FetchModuleCatalog retrieves the grantable modules.
func (c *Client) FetchModuleCatalog(ctx context.Context) ([]ModuleCatalogEntry, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []ModuleCatalogEntry
	if err := c.do(ctx, http.MethodGet, "modules", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// SaveLicense creates the license when payload carries no positive id and
// updates it otherwise.
func (c *Client) SaveLicense(ctx context.Context, payload SavePayload) (SaveResponse, error) {
	if c == nil {
		return SaveResponse{}, fmt.Errorf("client is nil")
	}
	method, path := http.MethodPost, "licenses"
	if !payload.IsCreate() {
		method, path = http.MethodPut, licensePath(*payload.ID)
	}
	var resp SaveResponse
	if err := c.do(ctx, method, path, nil, payload, &resp); err != nil {
		return SaveResponse{}, err
	}
	return resp, nil
}

// DeleteLicense removes a license.
func (c *Client) DeleteLicense(ctx context.Context, id int64) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if id <= 0 {
		return fmt.Errorf("license id required")
	}
	return c.do(ctx, http.MethodDelete, licensePath(id), nil, nil, nil)
}

// FetchAuditTrail retrieves the audit log for a license domain.
func (c *Client) FetchAuditTrail(ctx context.Context, domain string) ([]AuditRecord, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("domain required")
	}
	values := url.Values{}
	values.Set("domain", domain)
	var payload []AuditRecord
	if err := c.do(ctx, http.MethodGet, "licenses/audit", values, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func licensePath(id int64) string {
	return "licenses/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	rel := &url.URL{Path: path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := strings.TrimSpace(c.token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("request failed")
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, "/"+path, raw)
	}
	if dest == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseBaseURL normalizes the configured API root so relative endpoint
// paths resolve beneath it.
func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

type trackingTransport struct {
	next     http.RoundTripper
	observer Observer
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.observer.Begin()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.observer.End()
		return nil, err
	}
	resp.Body = &trackedBody{ReadCloser: resp.Body, done: t.observer.End}
	return resp, nil
}

type trackedBody struct {
	io.ReadCloser
	once sync.Once
	done func()
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.done)
	return err
}
