// Copyright 2025 PD Discovery Platform Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package graphmem

import "errors"

// TransientError marks a submission failure worth retrying: the backend was
// unavailable, rate limited, or the request timed out.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient ingestion error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks a submission the backend rejected outright. Retrying
// an identical payload cannot succeed.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent ingestion error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
