// Package jazzhr provides a client for the JazzHR (Resumator) REST API.
package jazzhr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the JazzHR API.
	DefaultBaseURL = "https://api.resumatorapi.com/v1"

	// DefaultTimeout is the default HTTP timeout. Resume payloads are
	// base64-encoded inline, so responses can be large.
	DefaultTimeout = 120 * time.Second

	// DefaultRequestsPerMinute matches the API's documented 80 calls per
	// rolling 60 second window.
	DefaultRequestsPerMinute = 80

	// pageSize is the fixed page size of the API's list endpoints. A page
	// with fewer rows is the last page.
	pageSize = 100
)

// Client is a JazzHR API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	retry      *RetryPolicy
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit in requests per minute.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
}

// WithRetryPolicy sets a custom retry policy.
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a new JazzHR API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  arbor.NewLogger(),
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRequestsPerMinute), DefaultRequestsPerMinute),
		retry:   NewRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the JazzHR API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jazzhr API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a GET request with rate limiting and retries. Authentication
// is the apikey query parameter.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var body []byte
	_, err := c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().
			Str("endpoint", path).
			Msg("JazzHR API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(data),
				Endpoint:   path,
			}
		}

		body = data
		return resp.StatusCode, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// getPaginated walks an API list endpoint page by page until a short page.
// The API returns a bare object instead of an array when a page holds
// exactly one row, so pages decode through normalizeList.
func (c *Client) getPaginated(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for page := 1; ; page++ {
		var raw json.RawMessage
		pagePath := fmt.Sprintf("%s/page/%d", path, page)
		if err := c.get(ctx, pagePath, cloneValues(params), &raw); err != nil {
			return nil, err
		}

		rows, err := normalizeList(raw)
		if err != nil {
			return nil, fmt.Errorf("unexpected payload from %s: %w", pagePath, err)
		}

		all = append(all, rows...)
		if len(rows) < pageSize {
			break
		}
	}

	return all, nil
}

// GetApplicantsForJob lists the applicant/job links for one job posting
func (c *Client) GetApplicantsForJob(ctx context.Context, jobID string) ([]ApplicantJob, error) {
	params := url.Values{}
	params.Set("job_id", jobID)

	rows, err := c.getPaginated(ctx, "/applicants2jobs", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applicants for job %s: %w", jobID, err)
	}

	return decodeRows[ApplicantJob](rows)
}

// GetApplicant retrieves one applicant's detail record
func (c *Client) GetApplicant(ctx context.Context, applicantID string) (*Applicant, error) {
	var applicant Applicant
	if err := c.get(ctx, "/applicants/"+applicantID, nil, &applicant); err != nil {
		return nil, fmt.Errorf("failed to fetch applicant %s: %w", applicantID, err)
	}
	return &applicant, nil
}

// GetFilesForApplicant lists the files attached to an applicant
func (c *Client) GetFilesForApplicant(ctx context.Context, applicantID string) ([]FileRecord, error) {
	params := url.Values{}
	params.Set("applicant_id", applicantID)

	rows, err := c.getPaginated(ctx, "/files", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch files for applicant %s: %w", applicantID, err)
	}

	return decodeRows[FileRecord](rows)
}

// GetFile retrieves a file with its base64-encoded content
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileDetail, error) {
	var file FileDetail
	if err := c.get(ctx, "/files/"+fileID, nil, &file); err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", fileID, err)
	}
	return &file, nil
}

// GetJobs lists job postings, optionally filtered by status ("open",
// "closed", ...). An empty status lists everything.
func (c *Client) GetJobs(ctx context.Context, status string) ([]Job, error) {
	path := "/jobs"
	if status != "" {
		path = "/jobs/status/" + status
	}

	rows, err := c.getPaginated(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	return decodeRows[Job](rows)
}

// GetJob retrieves one job posting
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.get(ctx, "/jobs/"+jobID, nil, &job); err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", jobID, err)
	}
	return &job, nil
}

// normalizeList accepts an array, a bare object (single-row page), or null
func normalizeList(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	case '{':
		return []json.RawMessage{raw}, nil
	default:
		return nil, fmt.Errorf("neither array nor object: %.32s", string(raw))
	}
}

func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var item T
		if err := json.Unmarshal(row, &item); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func cloneValues(params url.Values) url.Values {
	if params == nil {
		return nil
	}
	clone := url.Values{}
	for key, values := range params {
		for _, value := range values {
			clone.Add(key, value)
		}
	}
	return clone
}
