// Package apiclient talks to the explainer HTTP API: upload a document, then poll its status.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 60 * time.Second},
		pollInterval: time.Second,
		logger:       logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// UploadFile sends the file at path as the multipart "file" field.
func (c *Client) UploadFile(ctx context.Context, path, owner string) (uuid.UUID, error) {
	f, err := os.Open(path)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = f.Close() }()
	return c.Upload(ctx, filepath.Base(path), owner, f)
}

// Upload posts one document and returns the job id the server assigned.
func (c *Client) Upload(ctx context.Context, name, owner string, r io.Reader) (uuid.UUID, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return uuid.Nil, fmt.Errorf("read %s: %w", name, err)
	}
	if owner != "" {
		if err := mw.WriteField("ownerIdentifier", owner); err != nil {
			return uuid.Nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return uuid.Nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		UID string `json:"uid"`
	}
	if err := c.do(req, &out); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(out.UID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("server returned invalid uid %q: %w", out.UID, err)
	}
	c.logger.Info("client.upload.ok", "job_id", id, "source_name", name)
	return id, nil
}

// Status fetches the current view of a job.
func (c *Client) Status(ctx context.Context, id uuid.UUID) (*entity.StatusView, error) {
	q := url.Values{"jobId": {id.String()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var v entity.StatusView
	if err := c.do(req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Wait polls Status until the job is completed or failed, or ctx ends.
func (c *Client) Wait(ctx context.Context, id uuid.UUID) (*entity.StatusView, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		v, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if v.State.Terminal() {
			return v, nil
		}
		c.logger.Info("client.wait.pending", "job_id", id, "state", v.State)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(b, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(b))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
