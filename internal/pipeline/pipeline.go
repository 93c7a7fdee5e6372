// Package pipeline sequences the fetch, process, summarize and publish
// stages of a reconciliation run. Steps declare their dependencies; a failed
// step does not abort the run, it only skips the steps that depend on it.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/molly/follow-the-crypto-backend/internal/archive"
	"github.com/molly/follow-the-crypto-backend/internal/committees"
	"github.com/molly/follow-the-crypto-backend/internal/companies"
	"github.com/molly/follow-the-crypto-backend/internal/config"
	"github.com/molly/follow-the-crypto-backend/internal/export"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/individuals"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/recipients"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

// State carries the shared resources every step runs against.
type State struct {
	Store   store.Store
	Fetcher fec.Fetcher
	Data    *refdata.Data
	Config  *config.Config

	// RunID tags archives and exports produced by this run.
	RunID string
}

func NewState(st store.Store, fetcher fec.Fetcher, data *refdata.Data, cfg *config.Config) *State {
	return &State{
		Store:   st,
		Fetcher: fetcher,
		Data:    data,
		Config:  cfg,
		RunID:   uuid.NewString(),
	}
}

// Step is one named unit of work. A step runs only after every step it
// depends on has succeeded.
type Step struct {
	Name      string
	DependsOn []string
	Run       func(ctx context.Context, state *State) error
}

// Run executes steps in order. When only is non-empty, steps outside it run
// as if they had succeeded, so a partial run can rebuild downstream data
// without refetching. The returned error aggregates every step failure.
func Run(ctx context.Context, state *State, steps []Step, only []string) error {
	log := logger.FromContext(ctx)

	selected := map[string]bool{}
	for _, name := range only {
		selected[name] = true
	}

	failed := map[string]bool{}
	var errs []error
	for _, step := range steps {
		if len(only) > 0 && !selected[step.Name] {
			continue
		}

		var blockedBy string
		for _, dep := range step.DependsOn {
			if failed[dep] {
				blockedBy = dep
				break
			}
		}
		if blockedBy != "" {
			failed[step.Name] = true
			log.Warn().Str("step", step.Name).Str("dependency", blockedBy).Msg("Skipping step, dependency failed")
			continue
		}

		log.Info().Str("step", step.Name).Msg("Running step")
		if err := step.Run(ctx, state); err != nil {
			failed[step.Name] = true
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			log.Error().Err(err).Str("step", step.Name).Msg("Step failed")
			continue
		}
		log.Info().Str("step", step.Name).Msg("Step complete")
	}
	return errors.Join(errs...)
}

// DefaultSteps returns the full reconciliation run in execution order.
func DefaultSteps() []Step {
	return []Step{
		{
			Name: "FetchCommitteeContributions",
			Run: func(ctx context.Context, s *State) error {
				return committees.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod, s.Config.EfiledMinDate).Fetch(ctx)
			},
		},
		{
			Name:      "ProcessCommitteeContributions",
			DependsOn: []string{"FetchCommitteeContributions"},
			Run: func(ctx context.Context, s *State) error {
				return committees.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod, s.Config.EfiledMinDate).Process(ctx)
			},
		},
		{
			Name: "FetchIndividualContributions",
			Run: func(ctx context.Context, s *State) error {
				return individuals.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod, s.Config.EfiledMinDate).Fetch(ctx)
			},
		},
		{
			Name:      "ProcessIndividualContributions",
			DependsOn: []string{"FetchIndividualContributions"},
			Run: func(ctx context.Context, s *State) error {
				return individuals.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod, s.Config.EfiledMinDate).Process(ctx)
			},
		},
		{
			Name: "FetchCompanyContributions",
			Run: func(ctx context.Context, s *State) error {
				return companies.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod, s.Config.EfiledMinDate).Fetch(ctx)
			},
		},
		{
			// Company processing folds in employer-matched rows from the raw
			// individual snapshot, so it needs both fetches.
			Name:      "ProcessCompanyContributions",
			DependsOn: []string{"FetchCompanyContributions", "FetchIndividualContributions"},
			Run: func(ctx context.Context, s *State) error {
				return companies.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod, s.Config.EfiledMinDate).Process(ctx)
			},
		},
		{
			Name:      "SummarizeRecipients",
			DependsOn: []string{"ProcessCompanyContributions", "ProcessIndividualContributions"},
			Run: func(ctx context.Context, s *State) error {
				return recipients.New(s.Store, s.Fetcher, s.Data, s.Config.CyclePeriod).Summarize(ctx)
			},
		},
		{
			Name:      "ExportRecipients",
			DependsOn: []string{"SummarizeRecipients"},
			Run: func(ctx context.Context, s *State) error {
				if s.Config.BigQueryDataset == "" {
					log := logger.FromContext(ctx)
					log.Info().Msg("BQ_DATASET not set, skipping export")
					return nil
				}
				client, err := export.New(ctx, s.Config.ProjectID, s.Config.BigQueryDataset)
				if err != nil {
					return err
				}
				defer client.Close()
				return client.ExportRecipients(ctx, s.Store, s.RunID)
			},
		},
		{
			Name:      "ArchiveRawSnapshots",
			DependsOn: []string{"FetchCommitteeContributions", "FetchIndividualContributions", "FetchCompanyContributions"},
			Run: func(ctx context.Context, s *State) error {
				if s.Config.ArchiveBucket == "" {
					log := logger.FromContext(ctx)
					log.Info().Msg("ARCHIVE_BUCKET not set, skipping archive")
					return nil
				}
				client, err := archive.New(ctx, s.Config.ArchiveBucket)
				if err != nil {
					return err
				}
				defer client.Close()
				for _, collection := range []string{
					committees.RawCollection,
					individuals.RawCollection,
					companies.RawCollection,
				} {
					if err := client.ArchiveCollection(ctx, s.Store, collection, s.RunID); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
