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


package graphload

import (
	"log/slog"

	"github.com/pdplatform/graphload/graphmem"
	"github.com/pdplatform/graphload/graphmem/graphiti"
	"github.com/pdplatform/graphload/orchestrate"
	"github.com/pdplatform/graphload/storage"
	"github.com/pdplatform/graphload/storage/badger"
)

// Loader bundles the ledger stores, the graph-memory client, and the
// orchestrator behind one handle. It is the embedding-friendly entry point;
// the CLI is a thin wrapper around it.
type Loader struct {
	backend    *badger.Backend
	ledger     storage.LedgerRepository
	quarantine storage.QuarantineRepository
	reports    storage.ReportRepository
	client     graphmem.Client
	orch       *orchestrate.Orchestrator
	logger     *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	serviceConfig *graphiti.Config
	runConfig     *orchestrate.Config
	client        graphmem.Client
	observers     []orchestrate.Observer
	inMemory      bool
}

// WithServiceConfig sets the graph-memory service configuration.
// Ignored when WithClient is also given.
func WithServiceConfig(cfg *graphiti.Config) LoaderOption {
	return func(o *loaderOptions) {
		o.serviceConfig = cfg
	}
}

// WithRunConfig sets the orchestrator run configuration.
func WithRunConfig(cfg *orchestrate.Config) LoaderOption {
	return func(o *loaderOptions) {
		o.runConfig = cfg
	}
}

// WithClient supplies a graph-memory client directly, bypassing the HTTP
// client construction. Used by tests and embedders with their own transport.
func WithClient(client graphmem.Client) LoaderOption {
	return func(o *loaderOptions) {
		o.client = client
	}
}

// WithRunObserver registers a progress observer on the orchestrator.
func WithRunObserver(obs orchestrate.Observer) LoaderOption {
	return func(o *loaderOptions) {
		o.observers = append(o.observers, obs)
	}
}

// WithInMemoryStore keeps the ledger in memory instead of on disk.
// Nothing survives Close; intended for tests and dry runs.
func WithInMemoryStore() LoaderOption {
	return func(o *loaderOptions) {
		o.inMemory = true
	}
}

// Open opens the ledger database at filePath and wires up a ready-to-run
// Loader.
func Open(filePath string, opts ...LoaderOption) (*Loader, error) {
	options := &loaderOptions{
		serviceConfig: graphiti.DefaultConfig(),
		runConfig:     orchestrate.DefaultRunConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	ledger := badger.NewLedgerRepository(backend)

	quarantine, err := badger.NewQuarantineRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	reports := badger.NewReportRepository(backend)

	client := options.client
	if client == nil {
		client, err = graphiti.NewClient(options.serviceConfig)
		if err != nil {
			quarantine.Close()
			backend.Close()
			return nil, err
		}
	}

	orchOpts := []orchestrate.Option{orchestrate.WithConfig(options.runConfig)}
	for _, obs := range options.observers {
		orchOpts = append(orchOpts, orchestrate.WithObserver(obs))
	}

	orch, err := orchestrate.NewOrchestrator(ledger, quarantine, reports, client, orchOpts...)
	if err != nil {
		client.Close()
		quarantine.Close()
		backend.Close()
		return nil, err
	}

	return &Loader{
		backend:    backend,
		ledger:     ledger,
		quarantine: quarantine,
		reports:    reports,
		client:     client,
		orch:       orch,
		logger:     slog.Default(),
	}, nil
}

// Close releases the orchestrator, the client, and the storage backend.
func (l *Loader) Close() error {
	l.orch.Release()

	if err := l.client.Close(); err != nil {
		l.logger.Error("error closing graph-memory client", "err", err)
	}
	if err := l.quarantine.Close(); err != nil {
		l.logger.Error("error closing quarantine repository", "err", err)
		return err
	}
	if err := l.ledger.Close(); err != nil {
		l.logger.Error("error closing ledger repository", "err", err)
		return err
	}
	if err := l.backend.Close(); err != nil {
		l.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Progress returns a live snapshot of the orchestrator's current run, for
// embedders serving a status surface alongside an active ingestion.
func (l *Loader) Progress() orchestrate.Snapshot {
	return l.orch.Progress()
}

// Orchestrator returns the run engine for ingesting and replaying batches.
func (l *Loader) Orchestrator() *orchestrate.Orchestrator {
	return l.orch
}

// Ledger returns the per-identity ingestion ledger.
func (l *Loader) Ledger() storage.LedgerRepository {
	return l.ledger
}

// Quarantine returns the append-only quarantine store.
func (l *Loader) Quarantine() storage.QuarantineRepository {
	return l.quarantine
}

// Reports returns the run report store.
func (l *Loader) Reports() storage.ReportRepository {
	return l.reports
}
