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

// Package orchestrate drives batches of episodes into the graph-memory
// backend: lane-ordered sequencing, bounded concurrency, retry with backoff,
// ledger idempotency, and quarantine of episodes that cannot land.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/pdplatform/graphload/core"
	"github.com/pdplatform/graphload/graphmem"
	"github.com/pdplatform/graphload/manifest"
	"github.com/pdplatform/graphload/queue"
	"github.com/pdplatform/graphload/storage"
)

// Orchestrator runs validated batches against the graph-memory backend.
// A single Orchestrator is safe for sequential runs; concurrent calls to Run
// on the same instance are not supported because the ledger has one writer.
type Orchestrator struct {
	cfg        *Config
	ledger     storage.LedgerRepository
	quarantine storage.QuarantineRepository
	reports    storage.ReportRepository
	client     graphmem.Client
	pool       *ants.Pool
	observers  []Observer
	logger     *slog.Logger

	// track points at the active run's counters, for the status surface.
	track atomic.Pointer[tracker]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithConfig replaces the default run configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Orchestrator) error {
		if cfg == nil {
			cfg = DefaultRunConfig()
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}
}

// WithObserver registers a progress observer. May be given multiple times.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) error {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an orchestrator over the given repositories and
// backend client.
func NewOrchestrator(
	ledger storage.LedgerRepository,
	quarantine storage.QuarantineRepository,
	reports storage.ReportRepository,
	client graphmem.Client,
	opts ...Option,
) (*Orchestrator, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if quarantine == nil {
		return nil, ErrQuarantineRequired
	}
	if reports == nil {
		return nil, ErrReportsRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	o := &Orchestrator{
		cfg:        DefaultRunConfig(),
		ledger:     ledger,
		quarantine: quarantine,
		reports:    reports,
		client:     client,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(o.cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	o.pool = pool

	return o, nil
}

// Progress returns a live snapshot of the current or most recent run's
// counters. Safe to call from any goroutine while a run is underway.
func (o *Orchestrator) Progress() Snapshot {
	if t := o.track.Load(); t != nil {
		return t.snapshot()
	}
	return Snapshot{}
}

// Release releases the worker pool. The orchestrator must not be used after
// calling Release.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Run ingests one validated batch and returns its report. The report is
// persisted before Run returns, even when the run was cancelled partway;
// in the cancelled case Run returns both the partial report and the context
// error. Episode-level failures never fail the run, they are quarantined
// and reflected in the report.
func (o *Orchestrator) Run(ctx context.Context, batch *manifest.Batch) (*core.IngestionReport, error) {
	return o.run(ctx, batch.Manifest.BatchID, batch.Episodes)
}

func (o *Orchestrator) run(ctx context.Context, batchID string, episodes []*core.Episode) (*core.IngestionReport, error) {
	episodes = queue.Filter(episodes, o.cfg.TypeFilter)
	lanes, err := queue.Build(episodes)
	if err != nil {
		return nil, err
	}

	report := &core.IngestionReport{
		RunID:     uuid.NewString(),
		BatchID:   batchID,
		StartedAt: time.Now().UTC(),
		Total:     len(episodes),
	}

	track := &tracker{startedAt: report.StartedAt}
	track.total.Store(int64(len(episodes)))
	o.track.Store(track)

	o.logger.Info("run started",
		"run_id", report.RunID,
		"batch_id", batchID,
		"episodes", len(episodes),
		"concurrency", o.cfg.Concurrency)

	var runErr error
	for _, lane := range lanes {
		if len(lane.Episodes) == 0 {
			continue
		}
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		outcome := o.runLane(ctx, lane, report, track)
		report.Lanes = append(report.Lanes, outcome)
		for _, obs := range o.observers {
			obs.LaneDone(outcome)
		}

		o.logger.Info("lane finished",
			"run_id", report.RunID,
			"lane", outcome.Lane,
			"type", outcome.Type.String(),
			"succeeded", outcome.Succeeded,
			"skipped", outcome.Skipped,
			"quarantined", outcome.Quarantined)
	}

	if runErr == nil {
		report.Discrepancies = o.verify(ctx, episodes, report)
	}

	snap := track.snapshot()
	report.Succeeded = int(snap.Succeeded)
	report.Skipped = int(snap.Skipped)
	report.Quarantined = int(snap.Quarantined)
	report.FinishedAt = time.Now().UTC()

	if err := o.reports.SaveReport(context.WithoutCancel(ctx), report); err != nil {
		o.logger.Error("failed to persist run report", "run_id", report.RunID, "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	o.logger.Info("run finished",
		"run_id", report.RunID,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"quarantined", report.Quarantined,
		"duration", report.Duration())

	return report, runErr
}

// runLane submits one lane's episodes through the worker pool and waits for
// the lane barrier. Episodes of the same subject are processed strictly in
// order by a single worker; distinct subjects proceed independently, bounded
// only by the pool.
func (o *Orchestrator) runLane(ctx context.Context, lane queue.Lane, report *core.IngestionReport, track *tracker) core.LaneOutcome {
	outcome := core.LaneOutcome{Lane: lane.Index, Type: lane.Type}
	track.currentLane.Store(int64(lane.Index))

	// lane.Episodes is sorted by subject, so grouping is a single pass and
	// group order follows subject order.
	var groups [][]*core.Episode
	for _, ep := range lane.Episodes {
		if n := len(groups); n > 0 && groups[n-1][0].SubjectKey == ep.SubjectKey {
			groups[n-1] = append(groups[n-1], ep)
			continue
		}
		groups = append(groups, []*core.Episode{ep})
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, group := range groups {
		group := group
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			for _, ep := range group {
				// Cancellation takes effect between episodes, never
				// mid-submission.
				if ctx.Err() != nil {
					return
				}
				res := o.processEpisode(ctx, ep)

				mu.Lock()
				switch res.status {
				case core.StatusSuccess:
					if res.skipped {
						outcome.Skipped++
						track.skipped.Add(1)
					} else {
						outcome.Succeeded++
						track.succeeded.Add(1)
					}
				case core.StatusFailed, core.StatusQuarantined:
					outcome.Quarantined++
					track.quarantined.Add(1)
					report.QuarantinedIDs = append(report.QuarantinedIDs, core.QuarantinedIdentity{
						Identity:  ep.Identity(),
						LastError: res.errText,
						Permanent: res.status == core.StatusQuarantined,
					})
				}
				mu.Unlock()

				for _, obs := range o.observers {
					obs.EpisodeDone(ep.Identity(), res.status, res.attempts)
				}
			}
		})
		if err != nil {
			wg.Done()
			o.logger.Error("failed to submit lane work", "lane", lane.Index, "err", err)
		}
	}
	wg.Wait()

	return outcome
}

type episodeResult struct {
	status   core.Status
	skipped  bool
	attempts int
	errText  string
}

// processEpisode takes one episode to a terminal decision: skip, success,
// or quarantine. Infrastructure errors from the ledger are treated like
// transient submission failures so a flaky disk cannot silently drop an
// episode.
func (o *Orchestrator) processEpisode(ctx context.Context, ep *core.Episode) episodeResult {
	identity := ep.Identity()
	logger := o.logger.With("episode", identity.String(), "type", ep.Type.String())

	prior, err := o.ledger.Lookup(ctx, identity)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("ledger lookup failed", "err", err)
		return o.quarantineEpisode(ctx, ep, 0, false, fmt.Errorf("ledger lookup: %w", err))
	}
	if prior != nil && prior.Status == core.StatusSuccess && prior.ContentHash == ep.ContentHash && !o.cfg.Force {
		logger.Debug("skipping already-ingested episode")
		return episodeResult{status: core.StatusSuccess, skipped: true}
	}

	if err := o.ledger.Commit(ctx, &core.IngestionRecord{
		Identity:    identity,
		ContentHash: ep.ContentHash,
		Status:      core.StatusInProgress,
	}); err != nil {
		logger.Error("ledger commit failed", "err", err)
		return o.quarantineEpisode(ctx, ep, 0, false, fmt.Errorf("ledger commit: %w", err))
	}

	attempts, submitErr := o.submitWithRetry(ctx, ep, logger)

	if submitErr == nil {
		if err := o.ledger.Commit(ctx, &core.IngestionRecord{
			Identity:     identity,
			ContentHash:  ep.ContentHash,
			Status:       core.StatusSuccess,
			AttemptCount: attempts,
		}); err != nil {
			logger.Error("ledger commit failed after success", "err", err)
		}
		logger.Debug("episode ingested", "attempts", attempts)
		return episodeResult{status: core.StatusSuccess, attempts: attempts}
	}

	return o.quarantineEpisode(ctx, ep, attempts, graphmem.IsPermanent(submitErr), submitErr)
}

// submitWithRetry runs the episode's attempt sequence under its own timeout.
// The timeout derives from a detached context so an in-flight submission
// finishes even when the run is cancelled.
func (o *Orchestrator) submitWithRetry(ctx context.Context, ep *core.Episode, logger *slog.Logger) (int, error) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.EpisodeTimeout)
	defer cancel()

	req := graphmem.SubmitRequest{
		Name:              ep.Name,
		Body:              ep.Body,
		Source:            ep.Source,
		SourceDescription: ep.SourceDescription,
		GroupID:           ep.GroupID,
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = o.cfg.BackoffBase
	expo.MaxInterval = o.cfg.BackoffCeiling
	expo.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		attempts++
		err := o.client.Submit(ectx, req)
		if err == nil {
			return nil
		}
		if graphmem.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("transient submission failure", "attempt", attempts, "err", err)

		// Reflect the failed attempt before the backoff sleep so a crash
		// mid-retry leaves the attempt count durable.
		if commitErr := o.ledger.Commit(ectx, &core.IngestionRecord{
			Identity:     ep.Identity(),
			ContentHash:  ep.ContentHash,
			Status:       core.StatusInProgress,
			AttemptCount: attempts,
			LastError:    err.Error(),
		}); commitErr != nil {
			logger.Error("ledger commit failed mid-retry", "err", commitErr)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(expo, uint64(o.cfg.MaxRetries)), ectx))
	return attempts, err
}

// quarantineEpisode records a terminal failure in both the ledger and the
// quarantine store. Permanent rejects map to StatusQuarantined, exhausted
// transient failures to StatusFailed. Stores are written with a detached
// context so cancellation cannot lose the failure record.
func (o *Orchestrator) quarantineEpisode(ctx context.Context, ep *core.Episode, attempts int, permanent bool, cause error) episodeResult {
	identity := ep.Identity()
	status := core.StatusFailed
	if permanent {
		status = core.StatusQuarantined
	}

	sctx := context.WithoutCancel(ctx)
	if err := o.ledger.Commit(sctx, &core.IngestionRecord{
		Identity:     identity,
		ContentHash:  ep.ContentHash,
		Status:       status,
		AttemptCount: attempts,
		LastError:    cause.Error(),
	}); err != nil {
		o.logger.Error("ledger commit failed for quarantined episode",
			"episode", identity.String(), "err", err)
	}

	if err := o.quarantine.Append(sctx, &core.QuarantineEntry{
		Episode:       *ep,
		LastError:     cause.Error(),
		AttemptCount:  attempts,
		Permanent:     permanent,
		QuarantinedAt: time.Now().UTC(),
	}); err != nil {
		o.logger.Error("quarantine append failed",
			"episode", identity.String(), "err", err)
	}

	o.logger.Warn("episode quarantined",
		"episode", identity.String(),
		"permanent", permanent,
		"attempts", attempts,
		"err", cause)

	return episodeResult{status: status, attempts: attempts, errText: cause.Error()}
}
