package okta

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

	"go.uber.org/zap"
)

const (
	usersPath       = "/api/v1/users"
	jsonContentType = "application/json"
)

var (
	errMissingBaseURL       = errors.New("base url required")
	errMissingAuthorization = errors.New("authorization header value required")
	ErrInvalidClientConfig  = errors.New("okta: invalid client config")
)

// ClientConfig configures a Client for a single invocation.
type ClientConfig struct {
	BaseURL       string
	Authorization string
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Client issues user lookups and creations against the Okta users API.
type Client struct {
	baseURL       string
	authorization string
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient constructs a client bound to one base URL and one Authorization header value.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingBaseURL)
	}
	if strings.TrimSpace(cfg.Authorization) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingAuthorization)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:       baseURL,
		authorization: cfg.Authorization,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// GetUser fetches a user by login. A missing user yields an *APIError with IsNotFound true.
func (c *Client) GetUser(ctx context.Context, login string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, usersPath+"/"+escapePathSegment(login), nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// CreateUser creates a user. Group ids travel in the request body; no membership calls are made.
func (c *Client) CreateUser(ctx context.Context, request CreateUserRequest) (User, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := c.do(ctx, http.MethodPost, usersPath, payload, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authorization)
	req.Header.Set("Accept", jsonContentType)
	req.Header.Set("Content-Type", jsonContentType)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr, parsed := parseAPIError(response.StatusCode, responseBody)
		if !parsed {
			c.logger.Debug("okta error body not parseable",
				zap.String("method", method),
				zap.Int("status", response.StatusCode),
				zap.Int("body_bytes", len(responseBody)),
			)
		}
		return apiErr
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("okta: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// escapePathSegment encodes a value the way encodeURIComponent does for a path segment.
func escapePathSegment(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
