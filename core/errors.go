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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidEpisode indicates an Episode failed validation.
	ErrInvalidEpisode = errors.New("invalid episode")

	// ErrUnknownEpisodeType indicates an episode type outside the closed set.
	ErrUnknownEpisodeType = errors.New("unknown episode type")

	// ErrEmptyGroupID indicates the GroupID field is empty.
	ErrEmptyGroupID = errors.New("group id cannot be empty")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("episode name cannot be empty")

	// ErrEmptySubjectKey indicates the SubjectKey field is empty.
	ErrEmptySubjectKey = errors.New("subject key cannot be empty")

	// ErrEmptyBody indicates the Body field is empty.
	ErrEmptyBody = errors.New("episode body cannot be empty")

	// ErrInvalidStatus indicates an invalid Status value.
	ErrInvalidStatus = errors.New("invalid ingestion status")
)
