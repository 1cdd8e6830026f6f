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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pdplatform/graphload"
	"github.com/pdplatform/graphload/core"
	"github.com/pdplatform/graphload/graphmem/graphiti"
	"github.com/pdplatform/graphload/manifest"
	"github.com/pdplatform/graphload/orchestrate"
	"github.com/pdplatform/graphload/storage"
)

func main() {
	app := &cli.App{
		Name:  "graphload",
		Usage: "Load episode batches into a graph-memory backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Validate a batch directory and ingest its episodes",
				ArgsUsage: "<batch-dir>",
				Action:    ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB ledger directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum episodes in flight within a lane",
						Value: orchestrate.DefaultConcurrency,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Retry attempts per episode for transient failures",
						Value: orchestrate.DefaultMaxRetries,
					},
					&cli.DurationFlag{
						Name:  "backoff-base",
						Usage: "Base delay for exponential backoff",
						Value: orchestrate.DefaultBackoffBase,
					},
					&cli.DurationFlag{
						Name:  "episode-timeout",
						Usage: "Deadline for one episode's full attempt sequence",
						Value: orchestrate.DefaultEpisodeTimeout,
					},
					&cli.BoolFlag{
						Name:  "best-effort",
						Usage: "Proceed when a subject is missing episode types instead of aborting",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Resubmit episodes already recorded as ingested",
					},
					&cli.StringSliceFlag{
						Name:  "types",
						Usage: "Restrict the run to these episode types (e.g. gene_profile)",
					},
					&cli.StringFlag{
						Name:  "group-id",
						Usage: "Override the graph group ID of every episode in the batch",
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show the outcome of the most recent run",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB ledger directory",
						Required: true,
					},
				},
			},
			{
				Name:  "quarantine",
				Usage: "Inspect and replay quarantined episodes",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List quarantined episodes",
						Action: quarantineListCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "db",
								Aliases:  []string{"d"},
								Usage:    "Path to BadgerDB ledger directory",
								Required: true,
							},
						},
					},
					{
						Name:      "replay",
						Usage:     "Resubmit quarantined episodes by identity (group/name)",
						ArgsUsage: "<identity>...",
						Action:    quarantineReplayCommand,
						Flags: append(serviceFlags(),
							&cli.StringFlag{
								Name:     "db",
								Aliases:  []string{"d"},
								Usage:    "Path to BadgerDB ledger directory",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "max-retries",
								Usage: "Retry attempts per episode for transient failures",
								Value: orchestrate.DefaultMaxRetries,
							},
						),
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "service-url",
			Usage: "Graph-memory service base URL",
			Value: "http://localhost:8093",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Graph-memory service API key",
			EnvVars: []string{"GRAPHLOAD_API_KEY"},
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout per HTTP request to the service",
			Value: 60 * time.Second,
		},
	}
}

func serviceConfig(c *cli.Context) *graphiti.Config {
	return graphiti.NewConfig(
		graphiti.WithBaseURL(c.String("service-url")),
		graphiti.WithAPIKey(c.String("api-key")),
		graphiti.WithRequestTimeout(c.Duration("request-timeout")),
	)
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	batchDir := c.Args().First()
	if batchDir == "" {
		return fmt.Errorf("batch directory argument is required")
	}

	types, err := parseTypes(c.StringSlice("types"))
	if err != nil {
		return err
	}

	mode := manifest.ModeStrict
	if c.Bool("best-effort") {
		mode = manifest.ModeBestEffort
	}

	batch, err := manifest.NewValidator(manifest.WithMode(mode)).Validate(batchDir)
	if err != nil {
		var validationErr *manifest.ValidationError
		if errors.As(err, &validationErr) {
			fmt.Fprintln(os.Stderr, validationErr.Error())
			return cli.Exit("batch validation failed", 2)
		}
		return fmt.Errorf("batch validation failed: %w", err)
	}

	if groupID := c.String("group-id"); groupID != "" {
		for _, ep := range batch.Episodes {
			ep.GroupID = groupID
			ep.ContentHash = ep.ComputeContentHash()
		}
	}

	cfg := orchestrate.NewRunConfig(
		orchestrate.WithConcurrency(c.Int("concurrency")),
		orchestrate.WithMaxRetries(c.Int("max-retries")),
		orchestrate.WithBackoffBase(c.Duration("backoff-base")),
		orchestrate.WithEpisodeTimeout(c.Duration("episode-timeout")),
		orchestrate.WithForce(c.Bool("force")),
		orchestrate.WithTypeFilter(types...),
	)

	loader, err := graphload.Open(c.String("db"),
		graphload.WithServiceConfig(serviceConfig(c)),
		graphload.WithRunConfig(cfg))
	if err != nil {
		return err
	}
	defer loader.Close()

	report, err := loader.Orchestrator().Run(ctx, batch)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printReport(report)
	if !report.Clean() {
		return cli.Exit("run finished with quarantined episodes", 1)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	loader, err := graphload.Open(c.String("db"))
	if err != nil {
		return err
	}
	defer loader.Close()

	ctx := context.Background()
	report, err := loader.Reports().LastReport(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("no runs recorded")
		} else {
			return err
		}
	} else {
		printReport(report)
	}

	records, err := loader.Ledger().Records(ctx)
	if err != nil {
		return err
	}
	byStatus := make(map[core.Status]int)
	for _, record := range records {
		byStatus[record.Status]++
	}
	fmt.Printf("ledger: %d identities", len(records))
	for _, status := range []core.Status{core.StatusSuccess, core.StatusFailed, core.StatusQuarantined, core.StatusInProgress, core.StatusPending} {
		if n := byStatus[status]; n > 0 {
			fmt.Printf("  %s=%d", status, n)
		}
	}
	fmt.Println()
	return nil
}

func quarantineListCommand(c *cli.Context) error {
	loader, err := graphload.Open(c.String("db"))
	if err != nil {
		return err
	}
	defer loader.Close()

	entries, err := loader.Quarantine().List(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("quarantine is empty")
		return nil
	}

	for _, entry := range entries {
		kind := "transient-exhausted"
		if entry.Permanent {
			kind = "permanent"
		}
		fmt.Printf("%s  %s  attempts=%d  %s  %s\n",
			entry.QuarantinedAt.Format(time.RFC3339),
			entry.Episode.Identity(),
			entry.AttemptCount,
			kind,
			entry.LastError)
	}
	return nil
}

func quarantineReplayCommand(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one identity argument (group/name) is required")
	}

	identities := make([]core.Identity, 0, c.Args().Len())
	for _, arg := range c.Args().Slice() {
		identity, err := parseIdentity(arg)
		if err != nil {
			return err
		}
		identities = append(identities, identity)
	}

	loader, err := graphload.Open(c.String("db"),
		graphload.WithServiceConfig(serviceConfig(c)),
		graphload.WithRunConfig(orchestrate.NewRunConfig(
			orchestrate.WithMaxRetries(c.Int("max-retries")))))
	if err != nil {
		return err
	}
	defer loader.Close()

	report, err := loader.Orchestrator().Replay(context.Background(), identities...)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	printReport(report)
	if !report.Clean() {
		return cli.Exit("replay finished with quarantined episodes", 1)
	}
	return nil
}

// parseIdentity splits a "group/name" argument. Names may themselves contain
// slashes, so only the first separator counts.
func parseIdentity(arg string) (core.Identity, error) {
	group, name, ok := strings.Cut(arg, "/")
	if !ok || group == "" || name == "" {
		return core.Identity{}, fmt.Errorf("invalid identity %q: expected group/name", arg)
	}
	return core.Identity{GroupID: group, Name: name}, nil
}

func parseTypes(names []string) ([]core.EpisodeType, error) {
	types := make([]core.EpisodeType, 0, len(names))
	for _, name := range names {
		t, err := core.ParseEpisodeType(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("unrecognized episode type %q", name)
		}
		types = append(types, t)
	}
	return types, nil
}

func printReport(report *core.IngestionReport) {
	fmt.Printf("run %s  batch %s\n", report.RunID, report.BatchID)
	fmt.Printf("started %s  duration %s\n",
		report.StartedAt.Format(time.RFC3339), report.Duration().Round(time.Millisecond))
	fmt.Printf("total=%d succeeded=%d skipped=%d quarantined=%d\n",
		report.Total, report.Succeeded, report.Skipped, report.Quarantined)

	for _, lane := range report.Lanes {
		fmt.Printf("  lane %d %-20s succeeded=%d skipped=%d quarantined=%d\n",
			lane.Lane, lane.Type.String(), lane.Succeeded, lane.Skipped, lane.Quarantined)
	}
	for _, q := range report.QuarantinedIDs {
		kind := "transient-exhausted"
		if q.Permanent {
			kind = "permanent"
		}
		fmt.Printf("  quarantined %s (%s): %s\n", q.Identity, kind, q.LastError)
	}
	for _, d := range report.Discrepancies {
		if d.SubjectKey != "" {
			fmt.Printf("  discrepancy [%s]: %s\n", d.SubjectKey, d.Detail)
			continue
		}
		fmt.Printf("  discrepancy: %s\n", d.Detail)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
