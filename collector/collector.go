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
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudbase/gitlab-job-exporter/metrics"
	"github.com/cloudbase/gitlab-job-exporter/params"
	"github.com/cloudbase/gitlab-job-exporter/util"
)

// GitlabClient is the subset of the GitLab API a scrape needs.
type GitlabClient interface {
	// GetRepositoryURL returns the http_url_to_repo field of the project.
	GetRepositoryURL(ctx context.Context) (string, error)
	// LatestJobs returns the first page of jobs in the given status,
	// with a page size of one.
	LatestJobs(ctx context.Context, status params.JobStatus) ([]params.Job, error)
}

// Scraper runs a full fetch cycle against GitLab. It holds no state
// between scrapes, so it is safe for concurrent use.
type Scraper struct {
	cli    GitlabClient
	branch string
}

func NewScraper(cli GitlabClient, branch string) *Scraper {
	return &Scraper{
		cli:    cli,
		branch: branch,
	}
}

// Scrape resolves the repository URL, then fetches and measures the latest
// job of every tracked status. Any error aborts the whole scrape.
func (s *Scraper) Scrape(ctx context.Context) (result params.ScrapeResult, err error) {
	scrapeID := uuid.NewString()
	ctx = util.WithSlogContext(ctx, slog.String("scrape_id", scrapeID))

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		metrics.CollectionTime.Observe(elapsed.Seconds())
		if err != nil {
			slog.With(slog.Any("error", err)).ErrorContext(ctx, "scrape failed", "duration", elapsed)
			return
		}
		result.DurationSeconds = elapsed.Seconds()
	}()

	slog.DebugContext(ctx, "resolving repository URL")
	repoURL, err := s.cli.GetRepositoryURL(ctx)
	if err != nil {
		return params.ScrapeResult{}, errors.Wrap(err, "resolving repository URL")
	}

	result = params.ScrapeResult{
		ScrapeID:      scrapeID,
		RepositoryURL: repoURL,
		Branch:        s.branch,
		Measurements:  make([]params.JobMeasurement, 0, len(params.TrackedJobStatuses)),
	}

	for _, status := range params.TrackedJobStatuses {
		slog.DebugContext(ctx, "fetching latest job", "status", status)
		measurement, err := s.measureStatus(ctx, status)
		if err != nil {
			return params.ScrapeResult{}, errors.Wrapf(err, "collecting %s jobs", status)
		}
		result.Measurements = append(result.Measurements, measurement)
	}
	return result, nil
}

func (s *Scraper) measureStatus(ctx context.Context, status params.JobStatus) (params.JobMeasurement, error) {
	jobs, err := s.cli.LatestJobs(ctx, status)
	if err != nil {
		return params.JobMeasurement{}, err
	}
	job, err := SelectLatest(jobs)
	if err != nil {
		return params.JobMeasurement{}, err
	}
	measurement, err := Measure(status, job)
	if err != nil {
		return params.JobMeasurement{}, errors.Wrapf(err, "measuring job %d", job.ID)
	}
	return measurement, nil
}

// Samples turns a scrape result into gauge samples, one per job metric
// and tracked status.
func Samples(result params.ScrapeResult) ([]prometheus.Metric, error) {
	samples := make([]prometheus.Metric, 0, len(result.Measurements)*len(metrics.AllJobMetrics))
	for _, measurement := range result.Measurements {
		family, ok := metrics.JobFamilyFor(measurement.Status)
		if !ok {
			return nil, fmt.Errorf("no metric family for status %q", measurement.Status)
		}
		familySamples, err := family.Samples(measurement, result.Labels()...)
		if err != nil {
			return nil, err
		}
		samples = append(samples, familySamples...)
	}
	return samples, nil
}

var scrapeErrorDesc = prometheus.NewDesc(
	"gitlab_job_collector_scrape_error",
	"Error encountered while collecting metrics from Gitlab",
	nil, nil,
)

// JobCollector is a prometheus.Collector that runs a scrape on every
// Collect call.
type JobCollector struct {
	scraper *Scraper
}

func NewJobCollector(scraper *Scraper) *JobCollector {
	return &JobCollector{
		scraper: scraper,
	}
}

// Describe sends the descriptors of every job metric family, whether or
// not a scrape has ever succeeded.
func (c *JobCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, family := range metrics.JobFamilies {
		family.Describe(ch)
	}
}

// Collect runs a scrape. Samples are only sent once every status has been
// measured. On failure a single invalid metric is sent instead, which makes
// the gatherer fail the whole scrape.
func (c *JobCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()

	result, err := c.scraper.Scrape(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(scrapeErrorDesc, err)
		return
	}

	samples, err := Samples(result)
	if err != nil {
		slog.With(slog.Any("error", err)).ErrorContext(ctx, "cannot create metrics", "scrape_id", result.ScrapeID)
		ch <- prometheus.NewInvalidMetric(scrapeErrorDesc, err)
		return
	}

	slog.DebugContext(ctx, "scrape finished", "scrape_id", result.ScrapeID, "duration_seconds", result.DurationSeconds)
	for _, sample := range samples {
		ch <- sample
	}
}
