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
	"context"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cloudbase/gitlab-job-exporter/apiserver/controllers"
	"github.com/cloudbase/gitlab-job-exporter/apiserver/routers"
	"github.com/cloudbase/gitlab-job-exporter/auth"
	"github.com/cloudbase/gitlab-job-exporter/collector"
	"github.com/cloudbase/gitlab-job-exporter/config"
	"github.com/cloudbase/gitlab-job-exporter/metrics"
	"github.com/cloudbase/gitlab-job-exporter/util/appdefaults"
	"github.com/cloudbase/gitlab-job-exporter/util/gitlab"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	SilenceUsage: true,
	Short:        "Run the metrics server",
	Long: `Start the HTTP server. Every request to the metrics endpoint
queries Gitlab for the latest jobs and returns fresh metrics.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServer(cmd.Context())
	},
}

func newScraper(cfg *config.Config) (*collector.Scraper, error) {
	cli, err := gitlab.NewClient(cfg.Gitlab)
	if err != nil {
		return nil, errors.Wrap(err, "creating gitlab client")
	}
	return collector.NewScraper(cli, cfg.Gitlab.Branch), nil
}

func runServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	cfg, logWriter, err := loadConfig()
	if err != nil {
		return err
	}

	scraper, err := newScraper(cfg)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "registering prometheus metrics collectors")
	reg, err := metrics.NewRegistry(collector.NewJobCollector(scraper))
	if err != nil {
		return errors.Wrap(err, "registering metrics")
	}

	var metricsMiddleware auth.Middleware
	if !cfg.Metrics.DisableAuth {
		mw, err := auth.NewMetricsMiddleware(cfg.Metrics.JWTAuth)
		if err != nil {
			return errors.Wrap(err, "creating metrics middleware")
		}
		metricsMiddleware = mw
	}

	controller := controllers.NewAPIController(scraper)
	router := routers.NewAPIRouter(controller, routers.MetricsHandler(reg), cfg.Metrics.Path, logWriter, metricsMiddleware)

	tlsConfig, err := cfg.APIServer.APITLSConfig()
	if err != nil {
		return errors.Wrap(err, "loading TLS config")
	}

	srv := &http.Server{
		Addr:              cfg.APIServer.BindAddress(),
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.APIServer.ReadTimeout.Duration(),
		WriteTimeout:      cfg.APIServer.WriteTimeout.Duration(),
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errors.Wrap(err, "creating listener")
	}
	slog.InfoContext(ctx, "serving metrics",
		"address", listener.Addr().String(),
		"path", cfg.Metrics.Path,
		"project_id", cfg.Gitlab.ProjectID,
		"branch", cfg.Gitlab.Branch,
		"tls", cfg.APIServer.UseTLS)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.APIServer.UseTLS {
			// certificates are already loaded in srv.TLSConfig
			err = srv.ServeTLS(listener, "", "")
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listening")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down metrics server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), appdefaults.DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "graceful api server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
