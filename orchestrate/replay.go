package orchestrate

import (
	"context"
	"fmt"

	"github.com/pdplatform/graphload/core"
)

// Replay resubmits the latest quarantined episode for each given identity,
// using the same lane ordering, retry, and ledger rules as a batch run.
// Identities outside quarantine fail the whole replay before anything is
// submitted; episodes not named are untouched.
func (o *Orchestrator) Replay(ctx context.Context, identities ...core.Identity) (*core.IngestionReport, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("%w: no identities given", ErrNotQuarantined)
	}

	entries, err := o.quarantine.Latest(ctx, identities...)
	if err != nil {
		return nil, err
	}

	episodes := make([]*core.Episode, 0, len(identities))
	for _, identity := range identities {
		entry, ok := entries[identity]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotQuarantined, identity)
		}
		ep := entry.Episode
		episodes = append(episodes, &ep)
	}

	o.logger.Info("replaying quarantined episodes", "count", len(episodes))
	return o.run(ctx, "replay", episodes)
}
