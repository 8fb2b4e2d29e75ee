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
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cloudbase/gitlab-job-exporter/cmd/gitlab-job-exporter/common"
	"github.com/cloudbase/gitlab-job-exporter/metrics"
	"github.com/cloudbase/gitlab-job-exporter/params"
)

var outputFormat = common.OutputFormatTable

var collectCmd = &cobra.Command{
	Use:          "collect",
	SilenceUsage: true,
	Short:        "Run a single scrape and print the result",
	Long: `Query Gitlab once for the latest job of every tracked status and
print the values that would be exported.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		scraper, err := newScraper(cfg)
		if err != nil {
			return err
		}

		result, err := scraper.Scrape(cmd.Context())
		if err != nil {
			return err
		}
		formatScrapeResult(result)
		return nil
	},
}

func printAsJSON(value interface{}) {
	asJs, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal value to json: %s\n", err)
		return
	}
	fmt.Println(string(asJs))
}

func formatScrapeResult(result params.ScrapeResult) {
	if outputFormat == common.OutputFormatJSON {
		printAsJSON(result)
		return
	}
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (%s)", result.RepositoryURL, result.Branch))
	header := table.Row{"Metric", "Value"}
	t.AppendHeader(header)

	for _, measurement := range result.Measurements {
		for _, m := range metrics.AllJobMetrics {
			t.AppendRow(table.Row{m.Name(measurement.Status), m.Value(measurement)})
		}
		t.AppendSeparator()
	}
	t.AppendFooter(table.Row{"Scrape duration (s)", fmt.Sprintf("%.3f", result.DurationSeconds)})
	fmt.Println(t.Render())
}

func init() {
	collectCmd.Flags().Var(&outputFormat, "format", "Output format (table, json)")
	rootCmd.AddCommand(collectCmd)
}
