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
	"time"

	exporterErrors "github.com/cloudbase/gitlab-job-exporter/errors"
	"github.com/cloudbase/gitlab-job-exporter/params"
)

// Layouts accepted for job timestamps. GitLab uses RFC 3339 with
// milliseconds, the others show up behind some proxies and older versions.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05",
}

func parseTimestamp(field string, value *string) (time.Time, error) {
	if value == nil || *value == "" {
		return time.Time{}, exporterErrors.NewDataError("job field %s is missing", field)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, *value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, exporterErrors.NewDataError("job field %s has invalid timestamp %q", field, *value)
}

func unixSeconds(ts time.Time) float64 {
	return float64(ts.Unix()) + float64(ts.Nanosecond())/float64(time.Second)
}

// Measure derives the exported values from job. Durations are signed:
// GitLab occasionally reports started_at before created_at, and that is
// passed through as a negative value.
func Measure(status params.JobStatus, job params.Job) (params.JobMeasurement, error) {
	createdAt, err := parseTimestamp("created_at", job.CreatedAt)
	if err != nil {
		return params.JobMeasurement{}, err
	}
	startedAt, err := parseTimestamp("started_at", job.StartedAt)
	if err != nil {
		return params.JobMeasurement{}, err
	}
	finishedAt, err := parseTimestamp("finished_at", job.FinishedAt)
	if err != nil {
		return params.JobMeasurement{}, err
	}
	if job.Duration == nil {
		return params.JobMeasurement{}, exporterErrors.NewDataError("job %d has no duration", job.ID)
	}

	return params.JobMeasurement{
		Status:           status,
		JobID:            job.ID,
		CreatedAt:        unixSeconds(createdAt),
		DurationStarting: startedAt.Sub(createdAt).Seconds(),
		DurationRunning:  finishedAt.Sub(startedAt).Seconds(),
		DurationTotal:    *job.Duration,
	}, nil
}

// SelectLatest returns the most recently created job of the page.
//
// GitLab sorts jobs in descending order, so with a page size of one the
// only element is the latest job. If a page ever holds more than one job,
// we pick the one with the highest created_at instead of trusting the
// order. Ties keep the first one seen.
func SelectLatest(jobs []params.Job) (params.Job, error) {
	switch len(jobs) {
	case 0:
		return params.Job{}, exporterErrors.ErrNoJobs
	case 1:
		return jobs[0], nil
	}

	latestIdx := -1
	var latest time.Time
	for idx, job := range jobs {
		createdAt, err := parseTimestamp("created_at", job.CreatedAt)
		if err != nil {
			return params.Job{}, err
		}
		if latestIdx == -1 || createdAt.After(latest) {
			latestIdx = idx
			latest = createdAt
		}
	}
	return jobs[latestIdx], nil
}
