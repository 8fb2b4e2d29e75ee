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

package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/cloudbase/gitlab-job-exporter/apiserver/params"
	"github.com/cloudbase/gitlab-job-exporter/collector"
	exporterErrors "github.com/cloudbase/gitlab-job-exporter/errors"
	"github.com/cloudbase/gitlab-job-exporter/util/appdefaults"
)

func NewAPIController(scraper *collector.Scraper) *APIController {
	return &APIController{
		scraper: scraper,
	}
}

type APIController struct {
	scraper *collector.Scraper
}

func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	origErr := errors.Cause(err)
	apiErr := params.APIErrorResponse{
		Details: err.Error(),
	}

	switch origErr.(type) {
	case *exporterErrors.BadRequestError:
		w.WriteHeader(http.StatusBadRequest)
		apiErr.Error = "Bad Request"
	case *exporterErrors.ConnectivityError:
		w.WriteHeader(http.StatusBadGateway)
		apiErr.Error = "Gitlab Unreachable"
	case *exporterErrors.DataError:
		w.WriteHeader(http.StatusBadGateway)
		apiErr.Error = "Invalid Gitlab Data"
	default:
		slog.With(slog.Any("error", err)).ErrorContext(ctx, "Unhandled error")
		w.WriteHeader(http.StatusInternalServerError)
		apiErr.Error = "Server error"
	}

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		slog.With(slog.Any("error", err)).ErrorContext(ctx, "failed to encode response")
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.With(slog.Any("error", err)).ErrorContext(ctx, "failed to encode response")
	}
}

// HealthHandler reports that the exporter is up. It does not contact GitLab.
func (a *APIController) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, params.HealthResponse{
		Status:  "ok",
		Version: appdefaults.GetVersion(),
	})
}

// LatestJobsHandler runs a scrape and returns the measurements as JSON.
func (a *APIController) LatestJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := a.scraper.Scrape(ctx)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

// NotFoundHandler returns a JSON 404.
func (a *APIController) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusNotFound, params.NotFoundResponse)
}
