package orchestrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdplatform/graphload/core"
)

// verify runs post-run backend sanity checks: every subject with at least
// one successful submission should be queryable, and the group's entity
// count should be nonzero once anything landed. Discrepancies are diagnostic
// only and never fail the run.
func (o *Orchestrator) verify(ctx context.Context, episodes []*core.Episode, report *core.IngestionReport) []core.VerificationDiscrepancy {
	succeeded := o.succeededSubjects(ctx, episodes)
	if len(succeeded) == 0 {
		return nil
	}

	var discrepancies []core.VerificationDiscrepancy

	groups := make(map[string][]string)
	for subject, groupID := range succeeded {
		groups[groupID] = append(groups[groupID], subject)
	}

	for groupID, subjects := range groups {
		sort.Strings(subjects)
		for _, subject := range subjects {
			exists, err := o.client.SubjectExists(ctx, groupID, subject)
			if err != nil {
				discrepancies = append(discrepancies, core.VerificationDiscrepancy{
					SubjectKey: subject,
					Detail:     fmt.Sprintf("existence query failed: %v", err),
				})
				continue
			}
			if !exists {
				discrepancies = append(discrepancies, core.VerificationDiscrepancy{
					SubjectKey: subject,
					Detail:     "subject not materialized after successful ingestion",
				})
			}
		}

		counts, err := o.client.Counts(ctx, groupID)
		if err != nil {
			discrepancies = append(discrepancies, core.VerificationDiscrepancy{
				Detail: fmt.Sprintf("count query failed for group %s: %v", groupID, err),
			})
			continue
		}
		if counts.Entities == 0 {
			discrepancies = append(discrepancies, core.VerificationDiscrepancy{
				Detail: fmt.Sprintf("group %s reports zero entities after ingestion", groupID),
			})
		}
	}

	if len(discrepancies) > 0 {
		o.logger.Warn("verification found discrepancies",
			"run_id", report.RunID, "count", len(discrepancies))
	}
	return discrepancies
}

// succeededSubjects maps subject key to group for every episode whose ledger
// record ended in success, including skips from earlier runs.
func (o *Orchestrator) succeededSubjects(ctx context.Context, episodes []*core.Episode) map[string]string {
	subjects := make(map[string]string)
	for _, ep := range episodes {
		if _, ok := subjects[ep.SubjectKey]; ok {
			continue
		}
		record, err := o.ledger.Lookup(ctx, ep.Identity())
		if err != nil {
			continue
		}
		if record.Status == core.StatusSuccess {
			subjects[ep.SubjectKey] = ep.GroupID
		}
	}
	return subjects
}
