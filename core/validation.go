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

import "fmt"

// ValidateEpisode validates an Episode according to domain rules.
//
// Validation rules:
//   - GroupID, Name, SubjectKey and Body must not be empty
//   - Type must be one of the six recognized kinds
//
// NOT validated:
//   - ContentHash (recomputed by the loader, never trusted from input)
//   - Source / SourceDescription (optional provenance)
func ValidateEpisode(episode *Episode) error {
	if episode == nil {
		return fmt.Errorf("%w: episode is nil", ErrInvalidEpisode)
	}

	if episode.GroupID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEpisode, ErrEmptyGroupID)
	}

	if episode.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEpisode, ErrEmptyName)
	}

	if episode.SubjectKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEpisode, ErrEmptySubjectKey)
	}

	if episode.Body == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEpisode, ErrEmptyBody)
	}

	if err := ValidateEpisodeType(episode.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEpisode, err)
	}

	return nil
}

// ValidateEpisodeType validates that an EpisodeType has a recognized value.
func ValidateEpisodeType(t EpisodeType) error {
	if _, ok := episodeTypeNames[t]; !ok {
		return fmt.Errorf("%w: value %d", ErrUnknownEpisodeType, t)
	}
	return nil
}

// ValidateStatus validates that a Status has a recognized value.
func ValidateStatus(s Status) error {
	if _, ok := statusNames[s]; !ok {
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, s)
	}
	return nil
}
