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


// Package queue orders validated episodes into dependency lanes and a
// deterministic submission sequence. Evidence and integration episodes
// logically reference entities introduced by earlier lanes, so lane order is
// a correctness invariant, not an optimization.
package queue

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pdplatform/graphload/core"
)

// laneTable is the fixed lane assignment per episode type. Lower lanes must
// reach a terminal state before higher lanes begin submitting.
var laneTable = map[core.EpisodeType]int{
	core.EpisodeTypeGeneProfile:        0,
	core.EpisodeTypeGWASEvidence:       1,
	core.EpisodeTypeEQTLEvidence:       2,
	core.EpisodeTypeLiteratureEvidence: 3,
	core.EpisodeTypePathwayEvidence:    4,
	core.EpisodeTypeIntegration:        5,
}

// LaneCount is the number of dependency lanes.
const LaneCount = 6

// Lane is one ordered partition of a batch's submission sequence.
type Lane struct {
	Index    int
	Type     core.EpisodeType
	Episodes []*core.Episode
}

// UnknownLaneError indicates an episode type outside the lane table. This is
// fatal for the whole batch: lane coverage is an invariant the orchestrator
// depends on, and an unknown type means an upstream contract violation.
type UnknownLaneError struct {
	EpisodeName string
	Type        core.EpisodeType
}

func (e *UnknownLaneError) Error() string {
	return fmt.Sprintf("episode %s has type %q with no lane assignment", e.EpisodeName, e.Type)
}

// Build produces the submission sequence for a batch: all six lanes in
// ascending index, each lane's episodes ordered by subject key ascending
// with the episode name breaking ties. The result is fully deterministic for
// identical inputs.
func Build(episodes []*core.Episode) ([]Lane, error) {
	lanes := make([]Lane, LaneCount)
	for t, idx := range laneTable {
		lanes[idx] = Lane{Index: idx, Type: t}
	}

	for _, episode := range episodes {
		idx, ok := laneTable[episode.Type]
		if !ok {
			return nil, &UnknownLaneError{EpisodeName: episode.Name, Type: episode.Type}
		}
		lanes[idx].Episodes = append(lanes[idx].Episodes, episode)
	}

	for i := range lanes {
		slices.SortFunc(lanes[i].Episodes, func(a, b *core.Episode) int {
			if c := strings.Compare(a.SubjectKey, b.SubjectKey); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		})
	}

	return lanes, nil
}

// Filter returns the episodes whose type is in the given set. An empty set
// keeps everything.
func Filter(episodes []*core.Episode, types []core.EpisodeType) []*core.Episode {
	if len(types) == 0 {
		return episodes
	}
	keep := make(map[core.EpisodeType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}

	var filtered []*core.Episode
	for _, episode := range episodes {
		if keep[episode.Type] {
			filtered = append(filtered, episode)
		}
	}
	return filtered
}
