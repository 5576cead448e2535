// Package scrapinghub is a thin adapter over the Scrapinghub (Scrapy Cloud) HTTP API.
package scrapinghub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/version"
)

const (
	DefaultAPIURL     = "https://app.scrapinghub.com/api/"
	DefaultStorageURL = "https://storage.scrapinghub.com/"

	defaultTimeout  = 60 * time.Second
	maxErrorMessage = 512
)

// APIError is returned for HTTP responses with a status code of 400 or above.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrapinghub %s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

type Client struct {
	apiKey     string
	apiURL     *url.URL
	storageURL *url.URL
	httpClient *http.Client
}

type Option func(*Client) error

func WithAPIURL(rawURL string) Option {
	return func(c *Client) (err error) {
		c.apiURL, err = parseBaseURL(rawURL)
		return err
	}
}

func WithStorageURL(rawURL string) Option {
	return func(c *Client) (err error) {
		c.storageURL, err = parseBaseURL(rawURL)
		return err
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = httpClient
		return nil
	}
}

// NewClient returns a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("scrapinghub API key is required")
	}
	c := &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	c.apiURL, _ = url.Parse(DefaultAPIURL)
	c.storageURL, _ = url.Parse(DefaultStorageURL)
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func parseBaseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", rawURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Do performs op with args and returns the raw JSON response body.
func (c *Client) Do(ctx context.Context, op Operation, args map[string]any) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, op, args)
	if err != nil {
		return nil, err
	}
	klog.V(3).Infof("Calling Scrapinghub %s: %s %s", op.ID, req.Method, req.URL.Redacted())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrapinghub %s request failed: %w", op.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrapinghub %s response: %w", op.ID, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Operation: op.ID, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("scrapinghub %s returned a non-JSON response", op.ID)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, op Operation, args map[string]any) (*http.Request, error) {
	values := url.Values{}
	path := op.Path
	for _, param := range op.Params {
		arg, ok := args[param.Name]
		if !ok || arg == nil {
			if param.Required {
				return nil, fmt.Errorf("%s: missing required parameter %q", op.ID, param.Name)
			}
			continue
		}
		encoded, err := encodeParam(param, arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.ID, err)
		}
		placeholder := "{" + param.Name + "}"
		if strings.Contains(path, placeholder) {
			value := strings.Join(encoded, ",")
			if param.Pattern == nil || !param.Pattern.MatchString(value) {
				return nil, fmt.Errorf("%s: parameter %q has invalid value %q", op.ID, param.Name, value)
			}
			path = strings.ReplaceAll(path, placeholder, value)
			continue
		}
		values[param.Name] = encoded
	}

	base := c.apiURL
	if op.Endpoint == EndpointStorage {
		base = c.storageURL
	}
	target := base.JoinPath(path)

	var body io.Reader
	query := url.Values{}
	for k, v := range op.Query {
		query.Set(k, v)
	}
	if op.Method == http.MethodGet {
		for k, v := range values {
			query[k] = v
		}
	} else {
		body = strings.NewReader(values.Encode())
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, op.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.BinaryName+"/"+version.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func encodeParam(param Param, arg any) ([]string, error) {
	if param.Type == ParamArray {
		items, ok := arg.([]any)
		if !ok {
			items = []any{arg}
		}
		encoded := make([]string, 0, len(items))
		for _, item := range items {
			s, err := encodeScalar(param.Name, item)
			if err != nil {
				return nil, err
			}
			encoded = append(encoded, s)
		}
		return encoded, nil
	}
	s, err := encodeScalar(param.Name, arg)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func encodeScalar(name string, arg any) (string, error) {
	switch v := arg.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		// whole numbers outside the int64 range are formatted as floats
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("parameter %q has unsupported type %T", name, arg)
	}
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage] + "..."
	}
	return msg
}
