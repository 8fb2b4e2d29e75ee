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

package appdefaults

import "time"

const (
	// DefaultConfigFilePath is the default path on disk to the exporter
	// configuration file.
	DefaultConfigFilePath = "/etc/gitlab-job-exporter/config.toml"

	// DefaultBindAddress is the address the metrics server listens on.
	DefaultBindAddress = "0.0.0.0"
	// DefaultPort is the port the metrics server listens on.
	DefaultPort = 9913

	// DefaultMetricsPath is the path on which metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultGitlabTimeout is the timeout applied to every request made
	// against the GitLab API.
	DefaultGitlabTimeout = 10 * time.Second

	// DefaultBranch is the value of the Branch label when none is configured.
	DefaultBranch = "master"

	// DefaultJWTTTL is the default duration a metrics token will be valid.
	DefaultJWTTTL time.Duration = 24 * time.Hour

	// DefaultShutdownTimeout is how long we wait for in-flight scrapes
	// when shutting down.
	DefaultShutdownTimeout = 30 * time.Second
)

var Version string

func GetVersion() string {
	if Version == "" {
		return "v0.0.0-unknown"
	}
	return Version
}
