// Copyright 2026 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package gitlab

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudbase/gitlab-job-exporter/config"
	exporterErrors "github.com/cloudbase/gitlab-job-exporter/errors"
	"github.com/cloudbase/gitlab-job-exporter/metrics"
	"github.com/cloudbase/gitlab-job-exporter/params"
)

const (
	// TokenHeader is the header GitLab reads personal and project
	// access tokens from.
	TokenHeader = "PRIVATE-TOKEN"

	// maxErrorBody caps how much of an error response we keep for logging.
	maxErrorBody = 512
)

// Client talks to the projects API of a single GitLab project.
type Client struct {
	baseURL   string
	projectID string
	token     string
	timeout   time.Duration

	cli *http.Client
}

// NewClient returns a new GitLab API client for the project configured in cfg.
func NewClient(cfg config.Gitlab) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, exporterErrors.NewBadRequestError("missing project ID")
	}
	if cfg.Token == "" {
		return nil, exporterErrors.NewBadRequestError("missing token")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, exporterErrors.NewBadRequestError("invalid base URL %q", cfg.BaseURL)
	}

	roots, err := cfg.CACertPool()
	if err != nil {
		return nil, errors.Wrap(err, "loading CA bundle")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if roots != nil {
		transport.TLSClientConfig = &tls.Config{
			RootCAs:    roots,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		projectID: cfg.ProjectID,
		token:     cfg.Token,
		timeout:   cfg.RequestTimeout(),
		cli:       &http.Client{Transport: transport},
	}, nil
}

// WithHTTPClient replaces the underlying http client. Mostly useful in tests.
func (c *Client) WithHTTPClient(cli *http.Client) *Client {
	c.cli = cli
	return c
}

// projectPathID returns the project ID as a single path segment. Numeric
// IDs go through unchanged. Namespaced paths are escaped, unless they
// already are (group%2Fproject), in which case they are used as given.
func projectPathID(projectID string) string {
	if strings.Contains(projectID, "%") {
		return projectID
	}
	return url.PathEscape(projectID)
}

func (c *Client) projectURL(suffix string, query url.Values) string {
	u := c.baseURL + projectPathID(c.projectID) + suffix
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON performs an authenticated GET against u and decodes the JSON
// response body into target.
func (c *Client) getJSON(ctx context.Context, operation, u string, target interface{}) (err error) {
	metrics.GitlabOperationCount.WithLabelValues(
		operation, // label: operation
	).Inc()
	defer func() {
		if err != nil {
			metrics.GitlabOperationFailedCount.WithLabelValues(
				operation, // label: operation
			).Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return exporterErrors.NewBadRequestError("creating request for %s: %s", operation, err)
	}
	req.Header.Set(TokenHeader, c.token)
	req.Header.Set("Accept", "application/json")

	slog.DebugContext(ctx, "calling gitlab", "operation", operation, "url", u)
	resp, err := c.cli.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return exporterErrors.NewConnectivityError(0, "%s: request timed out after %s", operation, c.timeout)
		}
		return exporterErrors.NewConnectivityError(0, "%s: %s", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.DebugContext(ctx, "gitlab returned an error", "operation", operation, "status_code", resp.StatusCode, "body", string(body))
		return exporterErrors.NewConnectivityError(resp.StatusCode, "%s: unexpected status code %d", operation, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return exporterErrors.NewConnectivityError(0, "%s: reading response timed out after %s", operation, c.timeout)
		}
		return exporterErrors.NewDataError("%s: decoding response: %s", operation, err)
	}
	return nil
}

// GetProject fetches the project metadata.
func (c *Client) GetProject(ctx context.Context) (params.Project, error) {
	var project params.Project
	if err := c.getJSON(ctx, "GetProject", c.projectURL("", nil), &project); err != nil {
		return params.Project{}, err
	}
	return project, nil
}

// GetRepositoryURL resolves the canonical HTTP URL of the project's
// repository.
func (c *Client) GetRepositoryURL(ctx context.Context) (string, error) {
	project, err := c.GetProject(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetching project")
	}
	if project.HTTPURLToRepo == "" {
		return "", exporterErrors.NewDataError("project %s has no http_url_to_repo", c.projectID)
	}
	return project.HTTPURLToRepo, nil
}

// ListJobs returns a single page of the project's jobs with the given status.
// GitLab returns jobs ordered by descending ID, so newer jobs come first.
func (c *Client) ListJobs(ctx context.Context, status params.JobStatus, perPage, page int) ([]params.Job, error) {
	if !status.IsTracked() {
		return nil, exporterErrors.NewBadRequestError("status %q is not tracked", status)
	}
	if perPage < 1 || page < 1 {
		return nil, exporterErrors.NewBadRequestError("invalid pagination %d/%d", perPage, page)
	}

	query := url.Values{}
	query.Set("scope", string(status))
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))

	var jobs []params.Job
	if err := c.getJSON(ctx, "ListJobs", c.projectURL("/jobs", query), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// LatestJobs returns the first page of jobs with the given status, with a
// page size of one. It will hold the most recent job, if any exist.
func (c *Client) LatestJobs(ctx context.Context, status params.JobStatus) ([]params.Job, error) {
	jobs, err := c.ListJobs(ctx, status, 1, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching latest %s job", status)
	}
	return jobs, nil
}
