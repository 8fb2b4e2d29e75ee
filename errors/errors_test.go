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

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoJobsMatchesWrappedDataError(t *testing.T) {
	wrapped := fmt.Errorf("collecting failed jobs: %w", NewDataError("no jobs found"))
	require.ErrorIs(t, wrapped, ErrNoJobs)

	var dataErr *DataError
	require.ErrorAs(t, wrapped, &dataErr)

	require.NotErrorIs(t, NewDataError("job 5 has no duration"), ErrNoJobs)
}

func TestConnectivityErrorStatusCode(t *testing.T) {
	err := NewConnectivityError(502, "GetProject: unexpected status code %d", 502)
	require.Equal(t, "GetProject: unexpected status code 502", err.Error())

	var connErr *ConnectivityError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, 502, connErr.StatusCode)
	require.NotErrorIs(t, err, ErrNoJobs)
}

func TestBadRequestErrorFormatting(t *testing.T) {
	err := NewBadRequestError("status %q is not tracked", "running")
	require.Equal(t, `status "running" is not tracked`, err.Error())
}
