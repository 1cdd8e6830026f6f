package orchestrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdplatform/graphload/core"
	"github.com/pdplatform/graphload/graphmem"
	"github.com/pdplatform/graphload/graphmem/mock"
	"github.com/pdplatform/graphload/manifest"
	"github.com/pdplatform/graphload/storage"
	storagebadger "github.com/pdplatform/graphload/storage/badger"
)

func fastConfig(opts ...ConfigOption) *Config {
	base := []ConfigOption{
		WithBackoffBase(time.Millisecond),
		WithEpisodeTimeout(5 * time.Second),
	}
	return NewRunConfig(append(base, opts...)...)
}

type testHarness struct {
	orch       *Orchestrator
	client     *mock.Client
	ledger     storage.LedgerRepository
	quarantine storage.QuarantineRepository
	reports    storage.ReportRepository
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()

	ledger, quarantine, backend, err := storagebadger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	reports := storagebadger.NewReportRepository(backend)
	client := mock.NewClient()

	opts = append([]Option{WithConfig(fastConfig())}, opts...)
	orch, err := NewOrchestrator(ledger, quarantine, reports, client, opts...)
	require.NoError(t, err)
	t.Cleanup(orch.Release)

	return &testHarness{
		orch:       orch,
		client:     client,
		ledger:     ledger,
		quarantine: quarantine,
		reports:    reports,
	}
}

func testEpisode(epType core.EpisodeType, subject string) *core.Episode {
	ep := &core.Episode{
		GroupID:           "pd_target_discovery",
		Name:              epType.String() + "_" + subject,
		Type:              epType,
		SubjectKey:        subject,
		Body:              `{"gene_symbol":"` + subject + `"}`,
		Source:            "json",
		SourceDescription: "test export",
	}
	ep.ContentHash = ep.ComputeContentHash()
	return ep
}

// fullBatch builds one episode of every type per subject.
func fullBatch(subjects ...string) *manifest.Batch {
	var episodes []*core.Episode
	for _, subject := range subjects {
		for _, t := range core.EpisodeTypes() {
			episodes = append(episodes, testEpisode(t, subject))
		}
	}
	return &manifest.Batch{
		Manifest: &manifest.Manifest{BatchID: "batch-001", EpisodeCount: len(episodes)},
		Episodes: episodes,
	}
}

func laneOf(name string) int {
	for i, t := range core.EpisodeTypes() {
		if strings.HasPrefix(name, t.String()+"_") {
			return i
		}
	}
	return -1
}

func TestRun_AllSucceed(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA", "LRRK2", "GBA")

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 18, report.Total)
	assert.Equal(t, 18, report.Succeeded)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Quarantined)
	assert.True(t, report.Clean())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "batch-001", report.BatchID)
	assert.Len(t, report.Lanes, 6)
	assert.Empty(t, report.Discrepancies)

	assert.Equal(t, 18, h.client.SubmitCount())

	// Every identity ends in a success ledger record.
	for _, ep := range batch.Episodes {
		record, err := h.ledger.Lookup(context.Background(), ep.Identity())
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, record.Status)
		assert.Equal(t, ep.ContentHash, record.ContentHash)
	}

	// The report is persisted for the status surface.
	saved, err := h.reports.LastReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, saved.RunID)
}

func TestRun_LaneOrdering(t *testing.T) {
	h := newHarness(t, WithConfig(fastConfig(WithConcurrency(4))))
	h.client.SubmitDelay = 2 * time.Millisecond

	_, err := h.orch.Run(context.Background(), fullBatch("SNCA", "LRRK2", "GBA", "PRKN", "PINK1"))
	require.NoError(t, err)

	// Every lane-N submission must precede every lane-N+1 submission.
	lastLane := 0
	for _, s := range h.client.Submissions() {
		lane := laneOf(s.Request.Name)
		require.GreaterOrEqual(t, lane, lastLane,
			"submission %s out of lane order", s.Request.Name)
		lastLane = lane
	}
}

func TestRun_IdempotentRerun(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA", "LRRK2")

	_, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 12, h.client.SubmitCount())

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 12, h.client.SubmitCount(), "rerun must not resubmit anything")
	assert.Equal(t, 12, report.Skipped)
	assert.Equal(t, 0, report.Succeeded)
	assert.True(t, report.Clean())
}

func TestRun_ForceResubmits(t *testing.T) {
	h := newHarness(t, WithConfig(fastConfig(WithForce(true))))
	batch := fullBatch("SNCA")

	_, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)
	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 12, h.client.SubmitCount())
	assert.Equal(t, 6, report.Succeeded)
	assert.Equal(t, 0, report.Skipped)
}

func TestRun_ContentChangeResubmits(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA", "LRRK2")

	_, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	// Upstream corrected one episode's content.
	changed := batch.Episodes[0]
	changed.Body = `{"gene_symbol":"SNCA","revised":true}`
	changed.ContentHash = changed.ComputeContentHash()

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 13, h.client.SubmitCount())
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 11, report.Skipped)
}

func TestRun_TransientRetryThenSuccess(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA")

	target := batch.Episodes[0]
	h.client.ScriptFailures(target.Name,
		graphmem.Transient(errors.New("rate limited")),
		graphmem.Transient(errors.New("backend unavailable")))

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 6, report.Succeeded)
	assert.True(t, report.Clean())
	assert.Equal(t, 8, h.client.SubmitCount(), "two retries on top of six episodes")

	record, err := h.ledger.Lookup(context.Background(), target.Identity())
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, record.Status)
	assert.Equal(t, 3, record.AttemptCount)
}

func TestRun_TransientExhaustedQuarantines(t *testing.T) {
	h := newHarness(t, WithConfig(fastConfig(WithMaxRetries(2))))
	batch := fullBatch("SNCA")

	target := batch.Episodes[0]
	fail := graphmem.Transient(errors.New("backend unavailable"))
	h.client.ScriptFailures(target.Name, fail, fail, fail, fail, fail)

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err, "episode failures never fail the run")

	assert.Equal(t, 1, report.Quarantined)
	assert.Equal(t, 5, report.Succeeded)
	assert.False(t, report.Clean())
	require.Len(t, report.QuarantinedIDs, 1)
	assert.Equal(t, target.Identity(), report.QuarantinedIDs[0].Identity)
	assert.False(t, report.QuarantinedIDs[0].Permanent)

	// Retry budget of 2 means exactly 3 submissions for the failing episode.
	attempts := 0
	for _, s := range h.client.Submissions() {
		if s.Request.Name == target.Name {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)

	record, err := h.ledger.Lookup(context.Background(), target.Identity())
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, record.Status)

	entries, err := h.quarantine.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, target.Identity(), entries[0].Episode.Identity())
	assert.False(t, entries[0].Permanent)
	assert.Equal(t, 3, entries[0].AttemptCount)
}

func TestRun_PermanentFailureSkipsRetry(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA")

	target := batch.Episodes[0]
	h.client.ScriptFailures(target.Name, graphmem.Permanent(errors.New("body rejected")))

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Quarantined)
	require.Len(t, report.QuarantinedIDs, 1)
	assert.True(t, report.QuarantinedIDs[0].Permanent)
	assert.Equal(t, 6, h.client.SubmitCount(), "permanent failures are not retried")

	record, err := h.ledger.Lookup(context.Background(), target.Identity())
	require.NoError(t, err)
	assert.Equal(t, core.StatusQuarantined, record.Status)

	entries, err := h.quarantine.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Permanent)
	assert.Equal(t, target.Body, entries[0].Episode.Body)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA", "LRRK2", "GBA")

	// SNCA's gene profile fails permanently. Its later evidence episodes and
	// every other subject must still go through.
	h.client.ScriptFailures("gene_profile_SNCA", graphmem.Permanent(errors.New("rejected")))

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Quarantined)
	assert.Equal(t, 17, report.Succeeded)

	names := h.client.SuccessNames()
	assert.Contains(t, names, "gwas_evidence_SNCA")
	assert.Contains(t, names, "integration_SNCA")
	assert.Contains(t, names, "gene_profile_LRRK2")
}

func TestRun_SubjectSerializedWithinLane(t *testing.T) {
	h := newHarness(t, WithConfig(fastConfig(WithConcurrency(8))))

	// Two episodes of the same type and subject exercise in-lane ordering.
	var episodes []*core.Episode
	for _, subject := range []string{"SNCA", "LRRK2", "GBA", "PRKN"} {
		for _, suffix := range []string{"a", "b", "c"} {
			ep := testEpisode(core.EpisodeTypeGWASEvidence, subject)
			ep.Name = ep.Name + "_" + suffix
			ep.ContentHash = ep.ComputeContentHash()
			episodes = append(episodes, ep)
		}
	}
	batch := &manifest.Batch{
		Manifest: &manifest.Manifest{BatchID: "batch-002", EpisodeCount: len(episodes)},
		Episodes: episodes,
	}

	var (
		mu       sync.Mutex
		violated []string
	)
	inFlight := make(map[string]int)
	h.client.SubmitFunc = func(ctx context.Context, req graphmem.SubmitRequest) error {
		subject := strings.Split(strings.TrimPrefix(req.Name, "gwas_evidence_"), "_")[0]
		mu.Lock()
		inFlight[subject]++
		if inFlight[subject] > 1 {
			violated = append(violated, subject)
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight[subject]--
		mu.Unlock()
		return nil
	}

	report, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Succeeded)
	assert.Empty(t, violated, "subjects with concurrent submissions in flight")
	assert.Greater(t, h.client.MaxInFlight(), 1, "distinct subjects should overlap")

	// Same-subject episodes submit in name order.
	var sncaOrder []string
	for _, s := range h.client.Submissions() {
		if strings.Contains(s.Request.Name, "SNCA") {
			sncaOrder = append(sncaOrder, s.Request.Name)
		}
	}
	assert.Equal(t, []string{
		"gwas_evidence_SNCA_a",
		"gwas_evidence_SNCA_b",
		"gwas_evidence_SNCA_c",
	}, sncaOrder)
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	h := newHarness(t, WithConfig(fastConfig(WithConcurrency(2))))
	h.client.SubmitDelay = 2 * time.Millisecond

	_, err := h.orch.Run(context.Background(), fullBatch("SNCA", "LRRK2", "GBA", "PRKN", "PINK1", "DJ1"))
	require.NoError(t, err)
	assert.LessOrEqual(t, h.client.MaxInFlight(), 2)
}

func TestRun_TypeFilter(t *testing.T) {
	h := newHarness(t, WithConfig(fastConfig(
		WithTypeFilter(core.EpisodeTypeGeneProfile, core.EpisodeTypeIntegration))))

	report, err := h.orch.Run(context.Background(), fullBatch("SNCA", "LRRK2"))
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 4, report.Succeeded)
	for _, s := range h.client.Submissions() {
		lane := laneOf(s.Request.Name)
		assert.True(t, lane == 0 || lane == 5, "unexpected submission %s", s.Request.Name)
	}
}

type funcObserver struct {
	episodeDone func(core.Identity, core.Status, int)
	laneDone    func(core.LaneOutcome)
}

func (o *funcObserver) EpisodeDone(id core.Identity, st core.Status, attempts int) {
	if o.episodeDone != nil {
		o.episodeDone(id, st, attempts)
	}
}

func (o *funcObserver) LaneDone(outcome core.LaneOutcome) {
	if o.laneDone != nil {
		o.laneDone(outcome)
	}
}

func TestRun_CancellationBetweenLanes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, WithObserver(&funcObserver{
		laneDone: func(outcome core.LaneOutcome) {
			if outcome.Lane == 0 {
				cancel()
			}
		},
	}))

	report, err := h.orch.Run(ctx, fullBatch("SNCA", "LRRK2"))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report, "a cancelled run still produces a report")

	assert.Equal(t, 2, report.Succeeded, "only the first lane ran")
	assert.Equal(t, 2, h.client.SubmitCount())

	// The partial report is persisted.
	saved, err := h.reports.LastReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, saved.RunID)
}

func TestRun_ObserverCallbacks(t *testing.T) {
	collector := &CollectingObserver{}
	h := newHarness(t, WithObserver(collector))

	_, err := h.orch.Run(context.Background(), fullBatch("SNCA"))
	require.NoError(t, err)

	assert.Len(t, collector.Episodes(), 6)
	assert.Len(t, collector.Lanes(), 6)
	for _, ev := range collector.Episodes() {
		assert.Equal(t, core.StatusSuccess, ev.Status)
		assert.Equal(t, 1, ev.Attempts)
	}
}

func TestRun_VerificationDiscrepancy(t *testing.T) {
	h := newHarness(t)
	h.client.SubjectExistsFunc = func(ctx context.Context, groupID, subjectKey string) (bool, error) {
		return false, nil
	}

	report, err := h.orch.Run(context.Background(), fullBatch("SNCA"))
	require.NoError(t, err, "discrepancies never fail the run")

	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "SNCA", report.Discrepancies[0].SubjectKey)
	assert.True(t, report.Clean())
}

func TestReplay(t *testing.T) {
	h := newHarness(t)
	batch := fullBatch("SNCA", "LRRK2")

	target := batch.Episodes[0]
	h.client.ScriptFailures(target.Name, graphmem.Permanent(errors.New("rejected")))

	_, err := h.orch.Run(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 12, h.client.SubmitCount())
	h.client.Reset()

	report, err := h.orch.Replay(context.Background(), target.Identity())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, h.client.SubmitCount(), "replay touches only the named identity")

	record, err := h.ledger.Lookup(context.Background(), target.Identity())
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, record.Status)
}

func TestReplay_UnknownIdentity(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Replay(context.Background(), core.Identity{GroupID: "pd", Name: "never_seen"})
	require.ErrorIs(t, err, ErrNotQuarantined)
	assert.Equal(t, 0, h.client.SubmitCount())
}

func TestNewOrchestrator_RequiredDependencies(t *testing.T) {
	ledger, quarantine, backend, err := storagebadger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	reports := storagebadger.NewReportRepository(backend)
	client := mock.NewClient()

	_, err = NewOrchestrator(nil, quarantine, reports, client)
	assert.ErrorIs(t, err, ErrLedgerRequired)

	_, err = NewOrchestrator(ledger, nil, reports, client)
	assert.ErrorIs(t, err, ErrQuarantineRequired)

	_, err = NewOrchestrator(ledger, quarantine, nil, client)
	assert.ErrorIs(t, err, ErrReportsRequired)

	_, err = NewOrchestrator(ledger, quarantine, reports, nil)
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultRunConfig().Validate())
	assert.Error(t, NewRunConfig(WithConcurrency(0)).Validate())
	assert.Error(t, NewRunConfig(WithMaxRetries(-1)).Validate())
	assert.Error(t, NewRunConfig(WithBackoffBase(0)).Validate())
	assert.Error(t, NewRunConfig(WithEpisodeTimeout(0)).Validate())
	assert.Error(t, NewRunConfig(WithTypeFilter(core.EpisodeType(99))).Validate())
}
