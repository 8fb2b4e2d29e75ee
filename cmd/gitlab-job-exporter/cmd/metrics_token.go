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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudbase/gitlab-job-exporter/auth"
	"github.com/cloudbase/gitlab-job-exporter/config"
)

var metricsTokenCmd = &cobra.Command{
	Use:          "metrics-token",
	SilenceUsage: true,
	Short:        "Handle metrics tokens",
	Long:         `Allows you to create metrics tokens.`,
	Run:          nil,
}

var metricsTokenCreateCmd = &cobra.Command{
	Use:          "create",
	Short:        "Create a metrics token",
	Long:         `Create a token Prometheus can use to scrape an authenticated metrics endpoint.`,
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Gitlab settings are not needed to sign a token.
		cfg, err := config.Load(cfgFile, flagOverrides)
		if err != nil {
			return errors.Wrap(err, "fetching config")
		}
		if err := cfg.Metrics.JWTAuth.Validate(); err != nil {
			return errors.Wrap(err, "validating jwt_auth")
		}

		token, err := auth.GetJWTMetricsToken(cfg.Metrics.JWTAuth)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	metricsTokenCmd.AddCommand(
		metricsTokenCreateCmd,
	)

	rootCmd.AddCommand(metricsTokenCmd)
}
