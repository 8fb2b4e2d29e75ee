// Copyright 2022 Cloudbase Solutions SRL
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

package routers

import (
	"io"
	"log/slog"
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudbase/gitlab-job-exporter/apiserver/controllers"
	"github.com/cloudbase/gitlab-job-exporter/auth"
)

// MetricsHandler returns the scrape handler for gatherer. A failed scrape
// answers with a 500 instead of serving partial metrics.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	})
}

// NewAPIRouter returns the router of the exporter. If metricsMiddleware is
// nil, the metrics and API endpoints are served without authentication.
func NewAPIRouter(han *controllers.APIController, metricsHandler http.Handler, metricsPath string, logWriter io.Writer, metricsMiddleware auth.Middleware) *mux.Router {
	router := mux.NewRouter()
	logMiddleware := func(h http.Handler) http.Handler {
		return gorillaHandlers.CombinedLoggingHandler(logWriter, h)
	}

	// Health is never authenticated, so liveness checks keep working.
	router.Handle("/healthz", logMiddleware(http.HandlerFunc(han.HealthHandler))).Methods("GET", "HEAD")

	metricsRouter := router.PathPrefix(metricsPath).Subrouter()
	if metricsMiddleware != nil {
		metricsRouter.Use(metricsMiddleware.Middleware)
	}
	metricsRouter.Handle("", logMiddleware(metricsHandler)).Methods("GET", "HEAD")
	metricsRouter.Handle("/", logMiddleware(metricsHandler)).Methods("GET", "HEAD")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	if metricsMiddleware != nil {
		apiRouter.Use(metricsMiddleware.Middleware)
	}
	// Latest jobs, as JSON
	apiRouter.Handle("/jobs/latest", logMiddleware(http.HandlerFunc(han.LatestJobsHandler))).Methods("GET")
	apiRouter.Handle("/jobs/latest/", logMiddleware(http.HandlerFunc(han.LatestJobsHandler))).Methods("GET")

	router.NotFoundHandler = logMiddleware(http.HandlerFunc(han.NotFoundHandler))
	return router
}
