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

import "fmt"

// ErrNoJobs is returned when GitLab has no job for a requested status.
var ErrNoJobs = NewDataError("no jobs found")

type baseError struct {
	msg string
}

func (b *baseError) Error() string {
	return b.msg
}

// NewBadRequestError returns a new BadRequestError
func NewBadRequestError(msg string, a ...interface{}) error {
	return &BadRequestError{
		baseError{
			msg: fmt.Sprintf(msg, a...),
		},
	}
}

// BadRequestError is returned when invalid input is received
type BadRequestError struct {
	baseError
}

// NewConnectivityError returns a new ConnectivityError. A statusCode
// of 0 means no response was received.
func NewConnectivityError(statusCode int, msg string, a ...interface{}) error {
	return &ConnectivityError{
		baseError: baseError{
			msg: fmt.Sprintf(msg, a...),
		},
		StatusCode: statusCode,
	}
}

// ConnectivityError is returned when GitLab could not be reached, the
// request timed out or the response status was not 2xx.
type ConnectivityError struct {
	baseError
	StatusCode int
}

// NewDataError returns a new DataError
func NewDataError(msg string, a ...interface{}) error {
	return &DataError{
		baseError{
			msg: fmt.Sprintf(msg, a...),
		},
	}
}

// DataError is returned when GitLab answered, but the payload is not
// something we can derive metrics from.
type DataError struct {
	baseError
}

// Is allows errors.Is(err, ErrNoJobs) to match any DataError carrying
// the same message.
func (d *DataError) Is(target error) bool {
	t, ok := target.(*DataError)
	if !ok {
		return false
	}
	return t.msg == d.msg
}
