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

package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/cloudbase/gitlab-job-exporter/config"
	exporterErrors "github.com/cloudbase/gitlab-job-exporter/errors"
	"github.com/cloudbase/gitlab-job-exporter/metrics"
	"github.com/cloudbase/gitlab-job-exporter/params"
	"github.com/cloudbase/gitlab-job-exporter/util/gitlab"
)

const testRepoURL = "https://gitlab.example.com/group/demo.git"

type fakeGitlab struct {
	mux sync.Mutex

	repoURL    string
	repoErr    error
	jobs       map[params.JobStatus][]params.Job
	jobErrs    map[params.JobStatus]error
	repoCalls  int
	statusSeen []params.JobStatus
}

func (f *fakeGitlab) GetRepositoryURL(_ context.Context) (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.repoCalls++
	return f.repoURL, f.repoErr
}

func (f *fakeGitlab) repositoryCalls() int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.repoCalls
}

func (f *fakeGitlab) seenStatuses() []params.JobStatus {
	f.mux.Lock()
	defer f.mux.Unlock()
	return append([]params.JobStatus(nil), f.statusSeen...)
}

func (f *fakeGitlab) LatestJobs(_ context.Context, status params.JobStatus) ([]params.Job, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.statusSeen = append(f.statusSeen, status)
	if err := f.jobErrs[status]; err != nil {
		return nil, err
	}
	return f.jobs[status], nil
}

type CollectorTestSuite struct {
	suite.Suite

	gitlab    *fakeGitlab
	scraper   *Scraper
	collector *JobCollector
	registry  *prometheus.Registry
}

func (s *CollectorTestSuite) SetupTest() {
	s.gitlab = &fakeGitlab{
		repoURL: testRepoURL,
		jobs: map[params.JobStatus][]params.Job{
			params.JobStatusSuccess: {
				newJob(999, "2023-01-01T00:00:00Z", "2023-01-01T00:00:05Z", "2023-01-01T00:02:05Z", 120.0),
			},
			params.JobStatusFailed: {
				newJob(998, "2022-12-31T23:00:00Z", "2022-12-31T23:00:10Z", "2022-12-31T23:00:40Z", 30.5),
			},
		},
		jobErrs: map[params.JobStatus]error{},
	}
	s.scraper = NewScraper(s.gitlab, "master")
	s.collector = NewJobCollector(s.scraper)
	s.registry = prometheus.NewRegistry()
	s.Require().NoError(s.registry.Register(s.collector))
}

func (s *CollectorTestSuite) TestScrape() {
	result, err := s.scraper.Scrape(context.Background())
	s.Require().NoError(err)

	s.Require().NotEmpty(result.ScrapeID)
	s.Require().Equal(testRepoURL, result.RepositoryURL)
	s.Require().Equal("master", result.Branch)
	s.Require().Equal([]string{testRepoURL, "master"}, result.Labels())
	s.Require().Len(result.Measurements, 2)
	s.Require().Equal(params.JobStatusSuccess, result.Measurements[0].Status)
	s.Require().Equal(int64(999), result.Measurements[0].JobID)
	s.Require().Equal(params.JobStatusFailed, result.Measurements[1].Status)
	s.Require().Equal(int64(998), result.Measurements[1].JobID)

	s.Require().GreaterOrEqual(result.DurationSeconds, 0.0)
	s.Require().Less(result.DurationSeconds, 60.0)

	s.Require().Equal(1, s.gitlab.repositoryCalls())
	s.Require().Equal(params.TrackedJobStatuses, s.gitlab.seenStatuses())
}

func (s *CollectorTestSuite) TestScrapeIDsAreUnique() {
	first, err := s.scraper.Scrape(context.Background())
	s.Require().NoError(err)
	second, err := s.scraper.Scrape(context.Background())
	s.Require().NoError(err)
	s.Require().NotEqual(first.ScrapeID, second.ScrapeID)
}

func (s *CollectorTestSuite) TestCollectExposition() {
	expected := fmt.Sprintf(`
# HELP gitlab_job_id_last_success Gitlab job ID of the last success job
# TYPE gitlab_job_id_last_success gauge
gitlab_job_id_last_success{Branch="master",GitRepo="%[1]s"} 999
# HELP gitlab_job_created_timestamp_last_success Gitlab job creation timestamp of the last success job
# TYPE gitlab_job_created_timestamp_last_success gauge
gitlab_job_created_timestamp_last_success{Branch="master",GitRepo="%[1]s"} 1672531200
# HELP gitlab_job_duration_starting_seconds_last_success Gitlab job time between creation and running of the last success job
# TYPE gitlab_job_duration_starting_seconds_last_success gauge
gitlab_job_duration_starting_seconds_last_success{Branch="master",GitRepo="%[1]s"} 5
# HELP gitlab_job_duration_running_seconds_last_success Gitlab job time between creation and finishing of the last success job
# TYPE gitlab_job_duration_running_seconds_last_success gauge
gitlab_job_duration_running_seconds_last_success{Branch="master",GitRepo="%[1]s"} 120
# HELP gitlab_job_duration_seconds_last_success Gitlab job time between creation and finishing of the last success job
# TYPE gitlab_job_duration_seconds_last_success gauge
gitlab_job_duration_seconds_last_success{Branch="master",GitRepo="%[1]s"} 120
# HELP gitlab_job_id_last_failed Gitlab job ID of the last failed job
# TYPE gitlab_job_id_last_failed gauge
gitlab_job_id_last_failed{Branch="master",GitRepo="%[1]s"} 998
# HELP gitlab_job_created_timestamp_last_failed Gitlab job creation timestamp of the last failed job
# TYPE gitlab_job_created_timestamp_last_failed gauge
gitlab_job_created_timestamp_last_failed{Branch="master",GitRepo="%[1]s"} 1672527600
# HELP gitlab_job_duration_starting_seconds_last_failed Gitlab job time between creation and running of the last failed job
# TYPE gitlab_job_duration_starting_seconds_last_failed gauge
gitlab_job_duration_starting_seconds_last_failed{Branch="master",GitRepo="%[1]s"} 10
# HELP gitlab_job_duration_running_seconds_last_failed Gitlab job time between creation and finishing of the last failed job
# TYPE gitlab_job_duration_running_seconds_last_failed gauge
gitlab_job_duration_running_seconds_last_failed{Branch="master",GitRepo="%[1]s"} 30
# HELP gitlab_job_duration_seconds_last_failed Gitlab job time between creation and finishing of the last failed job
# TYPE gitlab_job_duration_seconds_last_failed gauge
gitlab_job_duration_seconds_last_failed{Branch="master",GitRepo="%[1]s"} 30.5
`, testRepoURL)

	err := testutil.GatherAndCompare(s.registry, strings.NewReader(expected))
	s.Require().NoError(err)
	s.Require().Equal(10, testutil.CollectAndCount(s.collector))
}

func (s *CollectorTestSuite) TestDescribeBeforeFirstScrape() {
	ch := make(chan *prometheus.Desc, 32)
	s.collector.Describe(ch)
	close(ch)

	var descs []string
	for desc := range ch {
		descs = append(descs, desc.String())
	}
	s.Require().Len(descs, 10)
	s.Require().Contains(descs[0], `fqName: "gitlab_job_id_last_success"`)
	s.Require().Contains(descs[9], `fqName: "gitlab_job_duration_seconds_last_failed"`)

	s.Require().Equal(0, s.gitlab.repositoryCalls())
	s.Require().Empty(s.gitlab.seenStatuses())
}

func (s *CollectorTestSuite) TestResolverFailureSkipsJobQueries() {
	s.gitlab.repoErr = exporterErrors.NewConnectivityError(404, "GetProject: unexpected status code 404")

	_, err := s.scraper.Scrape(context.Background())
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "resolving repository URL")
	s.Require().Empty(s.gitlab.seenStatuses())

	_, err = s.registry.Gather()
	s.Require().Error(err)
}

func (s *CollectorTestSuite) TestEmptyJobListFailsScrape() {
	s.gitlab.jobs[params.JobStatusFailed] = []params.Job{}

	_, err := s.scraper.Scrape(context.Background())
	s.Require().ErrorIs(err, exporterErrors.ErrNoJobs)
	s.Require().Contains(err.Error(), "collecting failed jobs")

	families, err := s.registry.Gather()
	s.Require().Error(err)
	for _, family := range families {
		s.Require().False(strings.HasPrefix(family.GetName(), "gitlab_job_id_last"), "unexpected partial metric %s", family.GetName())
	}
}

func (s *CollectorTestSuite) TestFirstStatusFailureStopsScrape() {
	s.gitlab.jobErrs[params.JobStatusSuccess] = exporterErrors.NewConnectivityError(0, "ListJobs: request timed out")

	_, err := s.scraper.Scrape(context.Background())
	s.Require().Error(err)
	s.Require().Equal([]params.JobStatus{params.JobStatusSuccess}, s.gitlab.seenStatuses())
}

func (s *CollectorTestSuite) TestInvalidJobFailsScrape() {
	s.gitlab.jobs[params.JobStatusSuccess][0].Duration = nil

	_, err := s.scraper.Scrape(context.Background())
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "measuring job 999")

	_, err = s.registry.Gather()
	s.Require().Error(err)
}

func (s *CollectorTestSuite) TestCollectionTimeObservedOnFailure() {
	reg := prometheus.NewRegistry()
	s.Require().NoError(metrics.RegisterMetrics(reg))

	before := s.collectionCount(reg)
	s.gitlab.repoErr = exporterErrors.NewConnectivityError(500, "boom")
	_, err := s.scraper.Scrape(context.Background())
	s.Require().Error(err)
	s.Require().Equal(before+1, s.collectionCount(reg))

	s.gitlab.repoErr = nil
	_, err = s.scraper.Scrape(context.Background())
	s.Require().NoError(err)
	s.Require().Equal(before+2, s.collectionCount(reg))
}

func (s *CollectorTestSuite) collectionCount(reg *prometheus.Registry) uint64 {
	families, err := reg.Gather()
	s.Require().NoError(err)
	for _, family := range families {
		if family.GetName() == "gitlab_job_collector_collect_seconds" {
			return family.GetMetric()[0].GetSummary().GetSampleCount()
		}
	}
	s.FailNow("collect_seconds summary not found")
	return 0
}

func (s *CollectorTestSuite) TestSamplesRejectsUntrackedStatus() {
	_, err := Samples(params.ScrapeResult{
		RepositoryURL: testRepoURL,
		Branch:        "master",
		Measurements: []params.JobMeasurement{
			{Status: params.JobStatusRunning},
		},
	})
	s.Require().Error(err)
}

func TestCollectorTestSuite(t *testing.T) {
	suite.Run(t, new(CollectorTestSuite))
}

// TestScrapeAgainstGitlab runs a scrape through the real client against a
// fake GitLab API.
func TestScrapeAgainstGitlab(t *testing.T) {
	var (
		mux      sync.Mutex
		requests []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.Lock()
		requests = append(requests, r.URL.RequestURI())
		mux.Unlock()

		if r.Header.Get(gitlab.TokenHeader) != "secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v4/projects/42":
			fmt.Fprintf(w, `{"id": 42, "http_url_to_repo": %q}`, testRepoURL)
		case r.URL.Path == "/api/v4/projects/42/jobs" && r.URL.Query().Get("scope") == "success":
			fmt.Fprint(w, `[{"id": 999, "status": "success", "created_at": "2023-01-01T00:00:00.000Z", "started_at": "2023-01-01T00:00:05.000Z", "finished_at": "2023-01-01T00:02:05.000Z", "duration": 120.0}]`)
		case r.URL.Path == "/api/v4/projects/42/jobs" && r.URL.Query().Get("scope") == "failed":
			fmt.Fprint(w, `[{"id": 1000, "status": "failed", "created_at": "2023-01-02T00:00:00.000Z", "started_at": "2023-01-02T00:00:01.000Z", "finished_at": "2023-01-02T00:00:03.000Z", "duration": 2.0}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cli, err := gitlab.NewClient(config.Gitlab{
		BaseURL:   server.URL + "/api/v4/projects/",
		ProjectID: "42",
		Token:     "secret-token",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	collector := NewJobCollector(NewScraper(cli, "main"))
	expected := fmt.Sprintf(`
# HELP gitlab_job_id_last_success Gitlab job ID of the last success job
# TYPE gitlab_job_id_last_success gauge
gitlab_job_id_last_success{Branch="main",GitRepo="%[1]s"} 999
# HELP gitlab_job_id_last_failed Gitlab job ID of the last failed job
# TYPE gitlab_job_id_last_failed gauge
gitlab_job_id_last_failed{Branch="main",GitRepo="%[1]s"} 1000
`, testRepoURL)
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "gitlab_job_id_last_success", "gitlab_job_id_last_failed"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	mux.Lock()
	defer mux.Unlock()
	want := []string{
		"/api/v4/projects/42",
		"/api/v4/projects/42/jobs?page=1&per_page=1&scope=success",
		"/api/v4/projects/42/jobs?page=1&per_page=1&scope=failed",
	}
	if len(requests) != len(want) {
		t.Fatalf("expected %d requests, got %d: %v", len(want), len(requests), requests)
	}
	for idx := range want {
		if requests[idx] != want[idx] {
			t.Fatalf("request %d: expected %q, got %q", idx, want[idx], requests[idx])
		}
	}
}
