package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/streamvault/ytingest/config"
	"github.com/streamvault/ytingest/ingest"
	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/quota"
	"github.com/streamvault/ytingest/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "ytingest",
		Short:        "Incrementally synchronize YouTube channels into the local catalog",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default ./ytingest.yaml)")

	root.AddCommand(newSyncCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	return root
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseDSN == "" {
				return fmt.Errorf("database_dsn must be set")
			}
			if err := store.RunMigrations(cfg.DatabaseDSN); err != nil {
				return err
			}
			log.Info().Msg("Migrations applied")
			return nil
		},
	}
}

func newSyncCmd(configPath *string) *cobra.Command {
	var seedList string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one ingestion pass over every tracked channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg, parseSeedList(seedList))
		},
	}
	cmd.Flags().StringVar(&seedList, "seed-list", "", "Comma-separated list of channel IDs to register before the run")
	return cmd
}

// parseSeedList splits a comma-separated list of channel IDs.
func parseSeedList(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func runSync(parent context.Context, cfg *config.Config, seedIDs []string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.RunMigrations(cfg.DatabaseDSN); err != nil {
		return err
	}

	st, err := store.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range seedIDs {
		existing, err := st.FindChannelByExternalID(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := st.SaveChannel(ctx, &model.Channel{ExternalID: id}); err != nil {
			return err
		}
		log.Info().Str("channel_id", id).Msg("Registered seed channel")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	tracker := quota.New(st, loc)
	processor := ingest.NewProcessor(st, tracker)
	job := ingest.NewJob(st, processor, cfg, nil)

	var summary *ingest.Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var runErr error
		summary, runErr = job.Run(ctx)
		return runErr
	})
	if err := g.Wait(); err != nil {
		return err
	}

	printSummary(summary)

	totals, err := st.CountVideosByState(ctx)
	if err != nil {
		return err
	}
	for state, count := range totals {
		fmt.Printf("catalog %s: %d\n", strings.ToLower(string(state)), count)
	}
	return nil
}

func printSummary(s *ingest.Summary) {
	fmt.Printf("run %s: %d channels processed, %d new, %d updated\n", s.RunID, s.Processed, s.New, s.Updated)
	for state, count := range s.LiveStateCounts {
		fmt.Printf("  %s: %d\n", strings.ToLower(string(state)), count)
	}
	for _, f := range s.Failures {
		fmt.Printf("  failed %s (%s): %s\n", f.ChannelExternalID, f.Title, f.Reason)
	}
}
