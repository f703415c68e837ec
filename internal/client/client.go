package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/pkg/requestid"
)

// RequestEditorFn is called on every outgoing request before it is sent.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	server     *url.URL
	httpClient *http.Client
	editors    []RequestEditorFn
}

type ClientOption func(c *Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) {
		c.editors = append(c.editors, fn)
	}
}

func WithToken(token string) ClientOption {
	return WithRequestEditorFn(func(ctx context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

func NewClient(server string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", server, err)
	}
	c := &Client{server: u, httpClient: http.DefaultClient}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListJobsParams filters GET /jobs.
type ListJobsParams struct {
	States []api.JobState
	Limit  int
}

func (c *Client) CreateJob(ctx context.Context, body api.JobCreate) (*api.Job, error) {
	job := new(api.Job)
	return job, c.doJSON(ctx, http.MethodPost, "/jobs", nil, body, job)
}

func (c *Client) GetJob(ctx context.Context, id string) (*api.Job, error) {
	job := new(api.Job)
	return job, c.doJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, nil, job)
}

func (c *Client) ListJobs(ctx context.Context, params ListJobsParams) (api.JobList, error) {
	q := url.Values{}
	for _, s := range params.States {
		q.Add("state", string(s))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	var jobs api.JobList
	return jobs, c.doJSON(ctx, http.MethodGet, "/jobs", q, nil, &jobs)
}

func (c *Client) UpdateClip(ctx context.Context, jobID, clipID string, body api.ClipUpdate) (*api.Job, error) {
	job := new(api.Job)
	return job, c.doJSON(ctx, http.MethodPatch, clipPath(jobID, clipID), nil, body, job)
}

func (c *Client) DeleteClip(ctx context.Context, jobID, clipID string) (*api.Job, error) {
	job := new(api.Job)
	return job, c.doJSON(ctx, http.MethodDelete, clipPath(jobID, clipID), nil, nil, job)
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CancelJob(ctx context.Context, id string) (*api.Job, error) {
	job := new(api.Job)
	return job, c.doJSON(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, job)
}

// Upload streams a video file as multipart form data.
func (c *Client) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*api.Upload, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)}
		header["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/uploads", nil, pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	upload := new(api.Upload)
	return upload, c.do(req, upload)
}

func clipPath(jobID, clipID string) string {
	return fmt.Sprintf("/jobs/%s/clips/%s", url.PathEscape(jobID), url.PathEscape(clipID))
}

func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := *c.server
	u.Path = c.server.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query).String(), body)
	if err != nil {
		return nil, err
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}
	for _, edit := range c.editors {
		if err := edit(ctx, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body api.Error
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
			apiErr.Message = body.Message
			if body.RequestId != nil {
				apiErr.RequestID = *body.RequestId
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
