// Copyright 2025 Cloudbase Solutions SRL
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	metricsNamespace          = "gitlab"
	metricsCollectorSubsystem = "job_collector"
)

// RegisterMetrics registers the process wide metrics on reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	var c []prometheus.Collector
	c = append(c,
		// scrape timing
		CollectionTime,
		// gitlab api calls
		GitlabOperationCount,
		GitlabOperationFailedCount,
	)

	for _, collector := range c {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry returns a registry holding the process wide metrics, the go
// runtime and process collectors and any extra collector passed in.
func NewRegistry(extra ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if err := RegisterMetrics(reg); err != nil {
		return nil, err
	}
	for _, c := range extra {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
