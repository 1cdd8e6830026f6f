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


package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdplatform/graphload/core"
)

// Mode selects how strictly type coverage per subject is enforced.
type Mode int

const (
	// ModeStrict aborts the batch when any subject is missing one of the
	// six expected episode types. Default.
	ModeStrict Mode = iota
	// ModeBestEffort proceeds with a warning instead.
	ModeBestEffort
)

func (m Mode) String() string {
	if m == ModeBestEffort {
		return "best-effort"
	}
	return "strict"
}

// Validator verifies a batch directory's structural and content integrity
// before any ingestion begins. It is a pure, read-only transform: either it
// returns a fully typed Batch or a ValidationError naming every offending
// file.
type Validator struct {
	mode   Mode
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithMode sets the type-coverage policy. Default is ModeStrict.
func WithMode(mode Mode) Option {
	return func(v *Validator) {
		v.mode = mode
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger
	}
}

// NewValidator creates a new validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		mode:   ModeStrict,
		logger: slog.Default().With("component", "manifest-validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks a batch directory and returns its typed episodes.
//
// Checks, in order: manifest exists and parses; every declared checksum
// matches the recomputed digest of its file; no undeclared episode files are
// present; declared episode count matches the file count; every episode file
// parses into a recognized type; type coverage per subject (policy by mode).
// All file-level problems are collected before failing.
func (v *Validator) Validate(batchDir string) (*Batch, error) {
	man, err := v.loadManifest(batchDir)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{BatchDir: batchDir}

	present, err := v.listEpisodeFiles(batchDir)
	if err != nil {
		return nil, err
	}

	// Declared vs present, both directions.
	for _, name := range sortedKeys(man.Checksums) {
		if !present[name] {
			verr.Problems = append(verr.Problems, Problem{File: name, Reason: "declared in manifest but missing from batch directory"})
		}
	}
	for name := range present {
		if _, declared := man.Checksums[name]; !declared {
			verr.Problems = append(verr.Problems, Problem{File: name, Reason: "present in batch directory but not declared in manifest"})
		}
	}

	if man.EpisodeCount != len(man.Checksums) {
		verr.Problems = append(verr.Problems, Problem{
			File:   ManifestFileName,
			Reason: fmt.Sprintf("episode_count %d does not match %d declared checksums", man.EpisodeCount, len(man.Checksums)),
		})
	}

	// Digest and decode the files that are both declared and present.
	var episodes []*core.Episode
	seen := make(map[core.Identity]string)
	for _, name := range sortedKeys(man.Checksums) {
		if !present[name] {
			continue
		}
		path := filepath.Join(batchDir, name)

		digest, err := FileDigest(path)
		if err != nil {
			verr.Problems = append(verr.Problems, Problem{File: name, Reason: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		if digest != man.Checksums[name] {
			verr.Problems = append(verr.Problems, Problem{
				File:   name,
				Reason: fmt.Sprintf("checksum mismatch: manifest declares %s, file digests to %s", man.Checksums[name], digest),
			})
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			verr.Problems = append(verr.Problems, Problem{File: name, Reason: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		episode, err := decodeEpisode(data)
		if err != nil {
			verr.Problems = append(verr.Problems, Problem{File: name, Reason: err.Error()})
			continue
		}

		identity := episode.Identity()
		if prev, dup := seen[identity]; dup {
			verr.Problems = append(verr.Problems, Problem{
				File:   name,
				Reason: fmt.Sprintf("duplicate identity %s, already declared by %s", identity, prev),
			})
			continue
		}
		seen[identity] = name
		episodes = append(episodes, episode)
	}

	v.checkTypeCoverage(episodes, verr)

	if len(verr.Problems) > 0 {
		return nil, verr
	}

	v.logger.Info("batch validated",
		"batch_id", man.BatchID,
		"episodes", len(episodes),
		"mode", v.mode.String())

	return &Batch{Manifest: man, Episodes: episodes}, nil
}

// checkTypeCoverage verifies every subject carries all six expected episode
// types. Strict mode records problems; best-effort mode only warns.
func (v *Validator) checkTypeCoverage(episodes []*core.Episode, verr *ValidationError) {
	bySubject := make(map[string]map[core.EpisodeType]bool)
	for _, episode := range episodes {
		types := bySubject[episode.SubjectKey]
		if types == nil {
			types = make(map[core.EpisodeType]bool)
			bySubject[episode.SubjectKey] = types
		}
		types[episode.Type] = true
	}

	subjects := make([]string, 0, len(bySubject))
	for subject := range bySubject {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		for _, expected := range core.EpisodeTypes() {
			if bySubject[subject][expected] {
				continue
			}
			if v.mode == ModeBestEffort {
				v.logger.Warn("subject missing expected episode type",
					"subject", subject,
					"type", expected.String())
				continue
			}
			verr.Problems = append(verr.Problems, Problem{
				File:   subject,
				Reason: fmt.Sprintf("subject is missing expected episode type %s", expected),
			})
		}
	}
}

func (v *Validator) loadManifest(batchDir string) (*Manifest, error) {
	path := filepath.Join(batchDir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return nil, err
	}

	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnparseable, err)
	}
	return &man, nil
}

// listEpisodeFiles returns the JSON files in the batch directory, excluding
// the manifest itself.
func (v *Validator) listEpisodeFiles(batchDir string) (map[string]bool, error) {
	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == ManifestFileName || filepath.Ext(name) != ".json" {
			continue
		}
		present[name] = true
	}
	return present, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
