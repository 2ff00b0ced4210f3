package generation

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

	"golang.org/x/time/rate"
)

const (
	DefaultAPIBase    = "https://api.kie.ai/api/v1"
	DefaultTextModel  = "sora-2-text-to-video"
	DefaultImageModel = "sora-2-image-to-video"

	defaultHTTPTimeout = 60 * time.Second
)

// ErrNoTaskID is returned by CreateTask when the provider answers without a
// task identifier.
var ErrNoTaskID = errors.New("provider did not return taskId")

// HTTPStatusError captures non-2xx provider responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// TaskRecord is the status of a provider task.
type TaskRecord struct {
	TaskID     string
	Model      string
	State      string
	ResultJSON string
	FailCode   string
	FailMsg    string
}

// FailureReason returns the most specific reason text the provider gave.
func (r *TaskRecord) FailureReason() string {
	switch {
	case strings.TrimSpace(r.FailMsg) != "":
		return r.FailMsg
	case strings.TrimSpace(r.FailCode) != "":
		return r.FailCode
	default:
		return r.State
	}
}

// Provider is the task API consumed by the Orchestrator.
type Provider interface {
	CreateTask(ctx context.Context, req Request) (taskID string, err error)
	RecordInfo(ctx context.Context, taskID string) (*TaskRecord, error)
}

// Client is an HTTP client for the provider's jobs API.
type Client struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithModels overrides the model names used per job kind.
func WithModels(textModel, imageModel string) Option {
	return func(c *Client) {
		if textModel != "" {
			c.textModel = textModel
		}
		if imageModel != "" {
			c.imageModel = imageModel
		}
	}
}

// WithRateLimit paces every request through a shared limiter, so many
// concurrent poll loops stay within the provider quota. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a provider client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("provider: api key must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultAPIBase,
		textModel:  DefaultTextModel,
		imageModel: DefaultImageModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createTaskRequest struct {
	Model string    `json:"model"`
	Input taskInput `json:"input"`
}

type taskInput struct {
	Prompt      string   `json:"prompt,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	AspectRatio Aspect   `json:"aspect_ratio"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type recordInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		TaskID     string     `json:"taskId"`
		Model      string     `json:"model"`
		State      string     `json:"state"`
		ResultJSON string     `json:"resultJson"`
		FailCode   flexString `json:"failCode"`
		FailMsg    string     `json:"failMsg"`
	} `json:"data"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	*s = flexString(raw)
	return nil
}

// CreateTask submits a generation request and returns the provider task ID.
func (c *Client) CreateTask(ctx context.Context, req Request) (string, error) {
	payload := createTaskRequest{
		Model: c.modelFor(req.Kind),
		Input: taskInput{
			Prompt:      strings.TrimSpace(req.Prompt),
			AspectRatio: req.Aspect,
		},
	}
	if req.Kind == ImageToVideo && req.ImageURL != "" {
		payload.Input.ImageURLs = []string{req.ImageURL}
	}
	if payload.Input.AspectRatio == "" {
		payload.Input.AspectRatio = Portrait
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal createTask: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, c.baseURL+"/jobs/createTask", body)
	if err != nil {
		return "", err
	}

	var resp createTaskResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse createTask response: %w", err)
	}
	if resp.Data == nil || strings.TrimSpace(resp.Data.TaskID) == "" {
		return "", fmt.Errorf("%w (code=%d msg=%q)", ErrNoTaskID, resp.Code, resp.Msg)
	}
	return resp.Data.TaskID, nil
}

// RecordInfo fetches the current status of a task.
func (c *Client) RecordInfo(ctx context.Context, taskID string) (*TaskRecord, error) {
	endpoint := c.baseURL + "/jobs/recordInfo?taskId=" + url.QueryEscape(taskID)
	data, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp recordInfoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse recordInfo response: %w", err)
	}
	if resp.Data == nil {
		// No data block: report an unknown state so the caller keeps polling.
		return &TaskRecord{TaskID: taskID}, nil
	}
	return &TaskRecord{
		TaskID:     resp.Data.TaskID,
		Model:      resp.Data.Model,
		State:      resp.Data.State,
		ResultJSON: resp.Data.ResultJSON,
		FailCode:   string(resp.Data.FailCode),
		FailMsg:    resp.Data.FailMsg,
	}, nil
}

func (c *Client) modelFor(k Kind) string {
	if k == ImageToVideo {
		return c.imageModel
	}
	return c.textModel
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: endpoint, Body: string(data)}
	}
	return data, nil
}
