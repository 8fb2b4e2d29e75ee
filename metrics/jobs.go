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

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudbase/gitlab-job-exporter/params"
)

const (
	LabelGitRepo = "GitRepo"
	LabelBranch  = "Branch"
)

// JobLabels is the label schema shared by every job gauge.
var JobLabels = []string{LabelGitRepo, LabelBranch}

// JobMetric identifies one of the gauges exported for the latest job
// of a status.
type JobMetric int

const (
	JobID JobMetric = iota
	JobCreatedTimestamp
	JobDurationStarting
	JobDurationRunning
	JobDurationTotal

	numJobMetrics
)

// AllJobMetrics lists every job metric in emission order.
var AllJobMetrics = [numJobMetrics]JobMetric{
	JobID,
	JobCreatedTimestamp,
	JobDurationStarting,
	JobDurationRunning,
	JobDurationTotal,
}

type jobMetricTemplate struct {
	name string
	help string
}

// The names are part of the exporter's public contract.
var jobMetricTemplates = [numJobMetrics]jobMetricTemplate{
	JobID: {
		name: "gitlab_job_id_last_%s",
		help: "Gitlab job ID of the last %s job",
	},
	JobCreatedTimestamp: {
		name: "gitlab_job_created_timestamp_last_%s",
		help: "Gitlab job creation timestamp of the last %s job",
	},
	JobDurationStarting: {
		name: "gitlab_job_duration_starting_seconds_last_%s",
		help: "Gitlab job time between creation and running of the last %s job",
	},
	JobDurationRunning: {
		name: "gitlab_job_duration_running_seconds_last_%s",
		help: "Gitlab job time between creation and finishing of the last %s job",
	},
	JobDurationTotal: {
		name: "gitlab_job_duration_seconds_last_%s",
		help: "Gitlab job time between creation and finishing of the last %s job",
	},
}

// Name returns the fully qualified metric name for status.
func (m JobMetric) Name(status params.JobStatus) string {
	return fmt.Sprintf(jobMetricTemplates[m].name, status)
}

// Help returns the help text for status.
func (m JobMetric) Help(status params.JobStatus) string {
	return fmt.Sprintf(jobMetricTemplates[m].help, status)
}

// Value extracts the value of this metric from a measurement.
func (m JobMetric) Value(measurement params.JobMeasurement) float64 {
	switch m {
	case JobID:
		return float64(measurement.JobID)
	case JobCreatedTimestamp:
		return measurement.CreatedAt
	case JobDurationStarting:
		return measurement.DurationStarting
	case JobDurationRunning:
		return measurement.DurationRunning
	case JobDurationTotal:
		return measurement.DurationTotal
	default:
		panic(fmt.Sprintf("unknown job metric %d", m))
	}
}

// JobFamily holds the gauge descriptors of one tracked status.
type JobFamily struct {
	Status params.JobStatus
	descs  [numJobMetrics]*prometheus.Desc
}

func newJobFamily(status params.JobStatus) JobFamily {
	family := JobFamily{Status: status}
	for _, m := range AllJobMetrics {
		family.descs[m] = prometheus.NewDesc(m.Name(status), m.Help(status), JobLabels, nil)
	}
	return family
}

// Desc returns the descriptor of metric m.
func (f JobFamily) Desc(m JobMetric) *prometheus.Desc {
	return f.descs[m]
}

// Describe sends all descriptors of the family to ch.
func (f JobFamily) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range f.descs {
		ch <- desc
	}
}

// Samples returns one gauge sample per metric of the family, built from
// measurement and labeled with labelValues (GitRepo, Branch).
func (f JobFamily) Samples(measurement params.JobMeasurement, labelValues ...string) ([]prometheus.Metric, error) {
	if measurement.Status != f.Status {
		return nil, fmt.Errorf("measurement for status %q does not belong to family %q", measurement.Status, f.Status)
	}
	samples := make([]prometheus.Metric, 0, numJobMetrics)
	for _, m := range AllJobMetrics {
		sample, err := prometheus.NewConstMetric(f.descs[m], prometheus.GaugeValue, m.Value(measurement), labelValues...)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", m.Name(f.Status), err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// JobFamilies holds one family per tracked status, in the order of
// params.TrackedJobStatuses. Descriptors are immutable, so sharing them
// between scrapes is safe.
var JobFamilies = newJobFamilies(params.TrackedJobStatuses)

func newJobFamilies(statuses []params.JobStatus) []JobFamily {
	families := make([]JobFamily, 0, len(statuses))
	for _, status := range statuses {
		families = append(families, newJobFamily(status))
	}
	return families
}

// JobFamilyFor returns the family of status.
func JobFamilyFor(status params.JobStatus) (JobFamily, bool) {
	for _, family := range JobFamilies {
		if family.Status == status {
			return family, true
		}
	}
	return JobFamily{}, false
}
