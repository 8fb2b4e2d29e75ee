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

package routers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	apiParams "github.com/cloudbase/gitlab-job-exporter/apiserver/params"
	"github.com/cloudbase/gitlab-job-exporter/apiserver/controllers"
	"github.com/cloudbase/gitlab-job-exporter/auth"
	"github.com/cloudbase/gitlab-job-exporter/collector"
	"github.com/cloudbase/gitlab-job-exporter/config"
	exporterErrors "github.com/cloudbase/gitlab-job-exporter/errors"
	"github.com/cloudbase/gitlab-job-exporter/params"
)

const testRepoURL = "https://gitlab.example.com/group/demo.git"

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

type fakeGitlab struct {
	mux       sync.Mutex
	repoErr   error
	jobs      map[params.JobStatus][]params.Job
	repoCalls int
}

func (f *fakeGitlab) GetRepositoryURL(_ context.Context) (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.repoCalls++
	if f.repoErr != nil {
		return "", f.repoErr
	}
	return testRepoURL, nil
}

func (f *fakeGitlab) repositoryCalls() int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.repoCalls
}

func (f *fakeGitlab) LatestJobs(_ context.Context, status params.JobStatus) ([]params.Job, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.jobs[status], nil
}

type RoutersTestSuite struct {
	suite.Suite

	gitlab *fakeGitlab
	cfg    config.JWTAuth
	server *httptest.Server
}

func (s *RoutersTestSuite) job(id int64) params.Job {
	return params.Job{
		ID:         id,
		CreatedAt:  strPtr("2023-01-01T00:00:00Z"),
		StartedAt:  strPtr("2023-01-01T00:00:05Z"),
		FinishedAt: strPtr("2023-01-01T00:02:05Z"),
		Duration:   floatPtr(120),
	}
}

func (s *RoutersTestSuite) SetupTest() {
	s.gitlab = &fakeGitlab{
		jobs: map[params.JobStatus][]params.Job{
			params.JobStatusSuccess: {s.job(999)},
			params.JobStatusFailed:  {s.job(1000)},
		},
	}
	s.cfg = config.JWTAuth{
		Secret:     "metrics-secret",
		TimeToLive: config.Duration(time.Hour),
	}
	s.server = s.newServer(nil)
}

func (s *RoutersTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *RoutersTestSuite) newServer(middleware auth.Middleware) *httptest.Server {
	scraper := collector.NewScraper(s.gitlab, "master")
	reg := prometheus.NewRegistry()
	s.Require().NoError(reg.Register(collector.NewJobCollector(scraper)))

	router := NewAPIRouter(controllers.NewAPIController(scraper), MetricsHandler(reg), "/metrics", io.Discard, middleware)
	return httptest.NewServer(router)
}

func (s *RoutersTestSuite) get(server *httptest.Server, path, token string) (*http.Response, []byte) {
	req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, body
}

func (s *RoutersTestSuite) TestHealthz() {
	resp, body := s.get(s.server, "/healthz", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var health apiParams.HealthResponse
	s.Require().NoError(json.Unmarshal(body, &health))
	s.Require().Equal("ok", health.Status)
	s.Require().Equal(0, s.gitlab.repositoryCalls())
}

func (s *RoutersTestSuite) TestMetrics() {
	resp, body := s.get(s.server, "/metrics", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Contains(string(body), `gitlab_job_id_last_success{Branch="master",GitRepo="`+testRepoURL+`"} 999`)
	s.Require().Contains(string(body), `gitlab_job_id_last_failed{Branch="master",GitRepo="`+testRepoURL+`"} 1000`)
	s.Require().Contains(string(body), `gitlab_job_duration_seconds_last_success{Branch="master",GitRepo="`+testRepoURL+`"} 120`)

	resp, _ = s.get(s.server, "/metrics/", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *RoutersTestSuite) TestMetricsFailedScrape() {
	s.gitlab.repoErr = exporterErrors.NewConnectivityError(0, "GetProject: connection refused")

	resp, body := s.get(s.server, "/metrics", "")
	s.Require().Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Require().NotContains(string(body), "gitlab_job_id_last_success")
}

func (s *RoutersTestSuite) TestMetricsNoJobs() {
	s.gitlab.jobs[params.JobStatusFailed] = nil

	resp, _ := s.get(s.server, "/metrics", "")
	s.Require().Equal(http.StatusInternalServerError, resp.StatusCode)
}

func (s *RoutersTestSuite) TestLatestJobs() {
	resp, body := s.get(s.server, "/api/v1/jobs/latest", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var result params.ScrapeResult
	s.Require().NoError(json.Unmarshal(body, &result))
	s.Require().Equal(testRepoURL, result.RepositoryURL)
	s.Require().Len(result.Measurements, 2)
	s.Require().Equal(int64(999), result.Measurements[0].JobID)
	s.Require().Equal(5.0, result.Measurements[0].DurationStarting)

	var raw map[string]interface{}
	s.Require().NoError(json.Unmarshal(body, &raw))
	s.Require().NotContains(raw, "duration")
	durationSeconds, ok := raw["duration_seconds"].(float64)
	s.Require().True(ok, "duration_seconds should be a number")
	s.Require().GreaterOrEqual(durationSeconds, 0.0)
	s.Require().Less(durationSeconds, 60.0)
}

func (s *RoutersTestSuite) TestLatestJobsErrors() {
	tests := []struct {
		err    error
		status int
		title  string
	}{
		{
			err:    exporterErrors.NewConnectivityError(503, "GetProject: unexpected status code 503"),
			status: http.StatusBadGateway,
			title:  "Gitlab Unreachable",
		},
		{
			err:    exporterErrors.NewDataError("project 42 has no http_url_to_repo"),
			status: http.StatusBadGateway,
			title:  "Invalid Gitlab Data",
		},
		{
			err:    exporterErrors.NewBadRequestError("invalid request"),
			status: http.StatusBadRequest,
			title:  "Bad Request",
		},
		{
			err:    io.ErrUnexpectedEOF,
			status: http.StatusInternalServerError,
			title:  "Server error",
		},
	}

	for _, tc := range tests {
		s.gitlab.repoErr = tc.err
		resp, body := s.get(s.server, "/api/v1/jobs/latest", "")
		s.Require().Equal(tc.status, resp.StatusCode)

		var apiErr apiParams.APIErrorResponse
		s.Require().NoError(json.Unmarshal(body, &apiErr))
		s.Require().Equal(tc.title, apiErr.Error)
	}
}

func (s *RoutersTestSuite) TestNotFound() {
	resp, body := s.get(s.server, "/does/not/exist", "")
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)

	var apiErr apiParams.APIErrorResponse
	s.Require().NoError(json.Unmarshal(body, &apiErr))
	s.Require().Equal(apiParams.NotFoundResponse, apiErr)
}

func (s *RoutersTestSuite) TestAuthenticatedMetrics() {
	middleware, err := auth.NewMetricsMiddleware(s.cfg)
	s.Require().NoError(err)
	server := s.newServer(middleware)
	defer server.Close()

	resp, _ := s.get(server, "/metrics", "")
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.get(server, "/api/v1/jobs/latest", "")
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Require().Equal(0, s.gitlab.repositoryCalls())

	// Health stays open.
	resp, _ = s.get(server, "/healthz", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	token, err := auth.GetJWTMetricsToken(s.cfg)
	s.Require().NoError(err)
	resp, body := s.get(server, "/metrics", token)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Contains(string(body), "gitlab_job_id_last_success")
}

func TestRoutersTestSuite(t *testing.T) {
	suite.Run(t, new(RoutersTestSuite))
}
