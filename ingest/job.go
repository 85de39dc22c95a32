package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/streamvault/ytingest/client"
	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/store"
)

// JobConfig is the per-run configuration resolved before the run starts.
type JobConfig struct {
	APIKey         string
	QuotaLimit     int64
	QuotaThreshold int64
	Delay          time.Duration
}

// ConfigResolver supplies the effective job configuration for one run.
type ConfigResolver interface {
	Resolve(ctx context.Context) (*JobConfig, error)
}

// ChannelProcessor is the per-channel entry point the job drives.
// Satisfied by *Processor.
type ChannelProcessor interface {
	ProcessChannel(ctx context.Context, yt client.Client, ch *model.Channel, opts Options) (*Result, error)
}

// ClientFactory builds a connected upstream client for a run's API key.
type ClientFactory func(ctx context.Context, apiKey string) (client.Client, error)

// DefaultClientFactory builds the real YouTube Data API client.
func DefaultClientFactory(ctx context.Context, apiKey string) (client.Client, error) {
	c, err := client.NewDataClient(apiKey)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ChannelFailure records one channel the run could not finish.
type ChannelFailure struct {
	ChannelExternalID string
	Title             string
	Reason            string
}

// Summary aggregates one run's outcome. Partial success is never hidden:
// counts include work persisted for channels that later failed, and every
// failed channel appears in Failures.
type Summary struct {
	RunID           string
	Processed       int
	New             int
	Updated         int
	LiveStateCounts map[model.LiveBroadcastState]int
	Failures        []ChannelFailure
}

// Job runs the ingestion pipeline over the whole channel set, strictly
// sequentially, isolating per-channel failures and stopping the entire
// run on quota exhaustion.
type Job struct {
	store     store.Store
	processor ChannelProcessor
	resolver  ConfigResolver
	newClient ClientFactory
}

// NewJob creates a Job. newClient may be nil, in which case the real
// YouTube client is used.
func NewJob(st store.Store, processor ChannelProcessor, resolver ConfigResolver, newClient ClientFactory) *Job {
	if newClient == nil {
		newClient = DefaultClientFactory
	}
	return &Job{
		store:     st,
		processor: processor,
		resolver:  resolver,
		newClient: newClient,
	}
}

// Run executes one ingestion pass over every tracked channel.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	cfg, err := j.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve job config: %w", err)
	}

	yt, err := j.newClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("build upstream client: %w", err)
	}

	channels, err := j.store.FindAllChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load channel set: %w", err)
	}

	summary := &Summary{
		RunID:           uuid.NewString(),
		LiveStateCounts: make(map[model.LiveBroadcastState]int),
	}
	opts := Options{
		Delay:          cfg.Delay,
		QuotaLimit:     cfg.QuotaLimit,
		QuotaThreshold: cfg.QuotaThreshold,
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("channels", len(channels)).
		Int64("quota_limit", cfg.QuotaLimit).
		Msg("Starting ingestion run")

	for _, ch := range channels {
		result, perr := j.processor.ProcessChannel(ctx, yt, ch, opts)
		if result != nil {
			summary.New += result.New
			summary.Updated += result.Updated
			for state, count := range result.LiveStateCounts {
				summary.LiveStateCounts[state] += count
			}
		}
		if perr != nil {
			summary.Failures = append(summary.Failures, ChannelFailure{
				ChannelExternalID: ch.ExternalID,
				Title:             ch.Title,
				Reason:            perr.Error(),
			})
			if errors.Is(perr, ErrQuotaExceeded) {
				// No further call of any kind is admissible today.
				log.Warn().
					Str("run_id", summary.RunID).
					Str("channel_id", ch.ExternalID).
					Msg("Quota exhausted, stopping the run")
				break
			}
			log.Error().
				Err(perr).
				Str("run_id", summary.RunID).
				Str("channel_id", ch.ExternalID).
				Str("channel_title", ch.Title).
				Msg("Channel processing failed, continuing with the next channel")
			continue
		}
		summary.Processed++
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("processed", summary.Processed).
		Int("new", summary.New).
		Int("updated", summary.Updated).
		Int("failures", len(summary.Failures)).
		Msg("Ingestion run finished")

	return summary, nil
}
