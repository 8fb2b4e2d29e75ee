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

package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudbase/gitlab-job-exporter/config"
	"github.com/cloudbase/gitlab-job-exporter/util"
	"github.com/cloudbase/gitlab-job-exporter/util/appdefaults"
)

var (
	cfgFile   string
	debug     bool
	gitlabURL string
	projectID string
	branch    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gitlab-job-exporter",
	Short: "Prometheus exporter for GitLab CI jobs",
	Long: `Exports the ID and timings of the latest successful and failed
CI jobs of a GitLab project as prometheus metrics.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", appdefaults.DefaultConfigFilePath, "exporter config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&gitlabURL, "gitlab-url", "", "Gitlab projects API URL (overrides config and "+config.EnvGitlabURL+")")
	rootCmd.PersistentFlags().StringVar(&projectID, "project-id", "", "Gitlab project ID (overrides config and "+config.EnvGitlabProjectID+")")
	rootCmd.PersistentFlags().StringVar(&branch, "branch", "", "Value of the Branch label (overrides config and "+config.EnvGitlabBranch+")")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func flagOverrides(cfg *config.Config) {
	if gitlabURL != "" {
		cfg.Gitlab.BaseURL = gitlabURL
	}
	if projectID != "" {
		cfg.Gitlab.ProjectID = projectID
	}
	if branch != "" {
		cfg.Gitlab.Branch = branch
	}
	if debug {
		cfg.Default.LogLevel = config.LevelDebug
	}
}

// loadConfig loads and validates the config, then sets up logging.
func loadConfig() (*config.Config, io.Writer, error) {
	cfg, err := config.NewConfig(cfgFile, flagOverrides)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetching config")
	}

	logWriter, err := util.SetupLogging(cfg.Default)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setting up logging")
	}
	return cfg, logWriter, nil
}
