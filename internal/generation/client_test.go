package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

// capturedRequest is what a test server saw, checked on the test goroutine.
type capturedRequest struct {
	method string
	path   string
	auth   string
	query  string
	body   []byte
}

func captureServer(t *testing.T, reply string) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			query:  r.URL.Query().Get("taskId"),
			body:   body,
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestCreateTaskSendsModelAndInput(t *testing.T) {
	srv, seen := captureServer(t, `{"code":200,"msg":"success","data":{"taskId":"task-1"}}`)

	c, err := NewClient("secret", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	id, err := c.CreateTask(context.Background(), Request{Kind: ImageToVideo, Aspect: Landscape, ImageURL: "https://img/1.png"})
	require.NoError(t, err)
	require.Equal(t, "task-1", id)

	req := <-seen
	require.Equal(t, http.MethodPost, req.method)
	require.Equal(t, "/jobs/createTask", req.path)
	require.Equal(t, "Bearer secret", req.auth)

	var got createTaskRequest
	require.NoError(t, json.Unmarshal(req.body, &got))
	require.Equal(t, DefaultImageModel, got.Model)
	require.Equal(t, Landscape, got.Input.AspectRatio)
	require.Equal(t, []string{"https://img/1.png"}, got.Input.ImageURLs)
	require.Empty(t, got.Input.Prompt)
}

func TestCreateTaskOmitsBlankPrompt(t *testing.T) {
	srv, seen := captureServer(t, `{"code":200,"data":{"taskId":"t"}}`)

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.CreateTask(context.Background(), Request{Kind: ImageToVideo, Aspect: Portrait, Prompt: "   ", ImageURL: "u"})
	require.NoError(t, err)

	req := <-seen
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(req.body, &top))
	require.JSONEq(t, `"sora-2-image-to-video"`, string(top["model"]))

	var input map[string]any
	require.NoError(t, json.Unmarshal(top["input"], &input))
	_, hasPrompt := input["prompt"]
	require.False(t, hasPrompt)
	require.Equal(t, "portrait", input["aspect_ratio"])
	require.Equal(t, []any{"u"}, input["image_urls"])
}

func TestCreateTaskBlankTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":402,"msg":"insufficient credits","data":null}`))
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.CreateTask(context.Background(), Request{Kind: TextToVideo, Prompt: "cat"})
	require.ErrorIs(t, err, ErrNoTaskID)
}

func TestCreateTaskHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.CreateTask(context.Background(), Request{Kind: TextToVideo, Prompt: "cat"})

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.NotErrorIs(t, err, ErrNoTaskID)
}

func TestRecordInfoParsesRecord(t *testing.T) {
	srv, seen := captureServer(t, `{"code":200,"data":{"taskId":"abc 1","state":"fail","failCode":501,"failMsg":"","resultJson":""}}`)

	c, err := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(100, 1))
	require.NoError(t, err)
	rec, err := c.RecordInfo(context.Background(), "abc 1")
	require.NoError(t, err)
	require.Equal(t, "fail", rec.State)
	require.Equal(t, "501", rec.FailCode)
	require.Equal(t, "501", rec.FailureReason())

	req := <-seen
	require.Equal(t, http.MethodGet, req.method)
	require.Equal(t, "/jobs/recordInfo", req.path)
	require.Equal(t, "abc 1", req.query)
}

func TestRecordInfoMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200}`))
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	rec, err := c.RecordInfo(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, "", rec.State)
}

func TestRateLimitWaitHonorsContext(t *testing.T) {
	c, err := NewClient("k", WithBaseURL("http://127.0.0.1:0"), WithRateLimit(0.001, 1))
	require.NoError(t, err)

	// Drain the single burst token.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.RecordInfo(ctx, "t")
	require.Error(t, err)
}
