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

package params

import "fmt"

type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusManual    JobStatus = "manual"
	JobStatusUndefined JobStatus = "undefined"
)

// TrackedJobStatuses is the set of statuses for which the latest job
// is exported. The order is the order in which metrics are emitted.
var TrackedJobStatuses = []JobStatus{
	JobStatusSuccess,
	JobStatusFailed,
}

// IsTracked returns true if metrics are exported for this status.
func (s JobStatus) IsTracked() bool {
	for _, tracked := range TrackedJobStatuses {
		if s == tracked {
			return true
		}
	}
	return false
}

func (s JobStatus) String() string {
	return string(s)
}

// Project holds the subset of the GitLab project object we consume.
type Project struct {
	ID            int64  `json:"id"`
	Name          string `json:"name,omitempty"`
	WebURL        string `json:"web_url,omitempty"`
	HTTPURLToRepo string `json:"http_url_to_repo"`
}

// Job is a CI job as returned by the GitLab jobs API. Timestamps and the
// duration are pointers, as GitLab returns null for jobs that never
// started or never finished.
type Job struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name,omitempty"`
	Stage      string      `json:"stage,omitempty"`
	Ref        string      `json:"ref,omitempty"`
	Status     JobStatus   `json:"status"`
	CreatedAt  *string     `json:"created_at"`
	StartedAt  *string     `json:"started_at"`
	FinishedAt *string     `json:"finished_at"`
	Duration   *float64    `json:"duration"`
	WebURL     string      `json:"web_url,omitempty"`
	Pipeline   JobPipeline `json:"pipeline"`
}

type JobPipeline struct {
	ID  int64  `json:"id"`
	Ref string `json:"ref,omitempty"`
	SHA string `json:"sha,omitempty"`
}

// JobMeasurement is the set of values derived from the latest job
// of a given status. Durations are signed and never clamped.
type JobMeasurement struct {
	Status JobStatus `json:"status"`
	JobID  int64     `json:"job_id"`
	// CreatedAt is the unix timestamp (in seconds) of the job creation.
	CreatedAt float64 `json:"created_at"`
	// DurationStarting is started_at - created_at, in seconds.
	DurationStarting float64 `json:"duration_starting"`
	// DurationRunning is finished_at - started_at, in seconds.
	DurationRunning float64 `json:"duration_running"`
	// DurationTotal is the duration reported by GitLab.
	DurationTotal float64 `json:"duration_total"`
}

// ScrapeResult holds everything gathered during a single scrape.
type ScrapeResult struct {
	ScrapeID      string           `json:"scrape_id"`
	RepositoryURL string           `json:"repository_url"`
	Branch        string           `json:"branch"`
	Measurements  []JobMeasurement `json:"measurements"`
	// DurationSeconds is the wall time of the scrape, in seconds.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Labels returns the label values attached to every job gauge, in the
// order of the GitRepo, Branch label schema.
func (s ScrapeResult) Labels() []string {
	return []string{s.RepositoryURL, s.Branch}
}

func (s ScrapeResult) String() string {
	return fmt.Sprintf("%s@%s (%d statuses)", s.RepositoryURL, s.Branch, len(s.Measurements))
}
