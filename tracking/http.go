package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

const backendName = "tracking-server"

// httpSession talks to the tracking server REST API:
//
//	GET  /api/v1/projects/{project}
//	POST /api/v1/projects/{project}/runs
//	POST /api/v1/runs/{id}/metrics
//	POST /api/v1/runs/{id}/images
//	POST /api/v1/runs/{id}/tags
//	POST /api/v1/runs/{id}/stop
type httpSession struct {
	baseURL string
	project string
	token   string
	client  *http.Client
	logger  log.Logger
}

type projectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type startRunRequest struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

type startRunResponse struct {
	ID string `json:"id"`
}

type metricRequest struct {
	Channel   string    `json:"channel"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type imageRequest struct {
	Channel   string    `json:"channel"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Data      []byte    `json:"data"` // base64 in JSON
	Timestamp time.Time `json:"timestamp"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

func openHTTP(ctx context.Context, opts Options) (*httpSession, error) {
	if opts.APIToken == "" {
		return nil, errors.NewAuthenticationError(backendName, opts.Project, "API token is not set (TRACKING_API_TOKEN)")
	}
	if opts.Project == "" {
		return nil, errors.NewAuthenticationError(backendName, opts.Project, "project is not set (TRACKING_PROJECT)")
	}
	if opts.URL == "" {
		return nil, errors.NewInvalidParameterError("TRACKING_URL", "required in sync mode", opts.URL)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	s := &httpSession{
		baseURL: strings.TrimRight(opts.URL, "/"),
		project: opts.Project,
		token:   opts.APIToken,
		client:  client,
		logger:  opts.Logger,
	}

	var project projectResponse
	if err := s.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(s.project), nil, &project); err != nil {
		return nil, err
	}
	s.logger.Info("Tracking session opened", "project_id", project.ID)
	return s, nil
}

func (s *httpSession) StartRun(ctx context.Context, name string, params map[string]any) (Run, error) {
	var resp startRunResponse
	path := "/api/v1/projects/" + url.PathEscape(s.project) + "/runs"
	if err := s.do(ctx, http.MethodPost, path, startRunRequest{Name: name, Params: params}, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.NewConnectivityError(s.baseURL+path, errors.New("server returned an empty run id"))
	}
	s.logger.Info("Run started", log.RunIDKey, resp.ID, "name", name)
	return &httpRun{session: s, id: resp.ID}, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// not nil. 401/403 map to AuthenticationError; transport failures and
// other non-2xx statuses map to ConnectivityError.
func (s *httpSession) do(ctx context.Context, method, path string, in, out any) error {
	endpoint := s.baseURL + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "tracking: encode %s request", path)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrapf(err, "tracking: build %s request", path)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.NewConnectivityError(endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthenticationError(backendName, s.project, fmt.Sprintf("server answered %s", resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewConnectivityError(endpoint,
			errors.Newf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewConnectivityError(endpoint, errors.Wrap(err, "decode response"))
	}
	return nil
}

type httpRun struct {
	session *httpSession
	id      string
}

func (r *httpRun) ID() string { return r.id }

func (r *httpRun) path(suffix string) string {
	return "/api/v1/runs/" + url.PathEscape(r.id) + suffix
}

func (r *httpRun) LogMetric(ctx context.Context, name string, value float64) error {
	return r.session.do(ctx, http.MethodPost, r.path("/metrics"),
		metricRequest{Channel: name, Value: value, Timestamp: time.Now().UTC()}, nil)
}

func (r *httpRun) LogImage(ctx context.Context, name string, img Image) error {
	return r.session.do(ctx, http.MethodPost, r.path("/images"), imageRequest{
		Channel:   name,
		Name:      img.Name,
		Format:    img.Format,
		Data:      img.Data,
		Timestamp: time.Now().UTC(),
	}, nil)
}

func (r *httpRun) AddTag(ctx context.Context, tag string) error {
	return r.session.do(ctx, http.MethodPost, r.path("/tags"), tagRequest{Tag: tag}, nil)
}

func (r *httpRun) Stop(ctx context.Context) error {
	return r.session.do(ctx, http.MethodPost, r.path("/stop"), nil, nil)
}
