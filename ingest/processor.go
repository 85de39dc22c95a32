// Package ingest implements the channel ingestion pipeline: per-channel
// playlist discovery, resumable paginated enumeration, new-vs-existing
// classification, batched detail resolution, quota admission, and page
// checkpointing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/streamvault/ytingest/client"
	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/quota"
	"github.com/streamvault/ytingest/store"
)

// Options parameterize one channel's sync pass.
type Options struct {
	Delay          time.Duration
	QuotaLimit     int64
	QuotaThreshold int64

	// RequestCutoff overrides the stored watermark when forced, when no
	// watermark exists, or when it is strictly newer than the watermark.
	RequestCutoff *time.Time
	ForceCutoff   bool
}

// Result summarizes one channel's sync pass.
type Result struct {
	New             int
	Updated         int
	LiveStateCounts map[model.LiveBroadcastState]int
}

func newResult() *Result {
	return &Result{LiveStateCounts: make(map[model.LiveBroadcastState]int)}
}

// Processor runs the per-channel sync state machine.
type Processor struct {
	store      store.Store
	tracker    *quota.Tracker
	fetcher    *DetailFetcher
	checkpoint *CheckpointWriter
}

// NewProcessor creates a Processor and its collaborators over the given
// store and quota tracker.
func NewProcessor(st store.Store, tracker *quota.Tracker) *Processor {
	return &Processor{
		store:      st,
		tracker:    tracker,
		fetcher:    NewDetailFetcher(tracker, st),
		checkpoint: NewCheckpointWriter(st),
	}
}

// ProcessChannel synchronizes one channel: refreshes its metadata,
// enumerates its uploads playlist from the stored cursor, creates or
// diffs the items found, and checkpoints after every page. The returned
// Result carries whatever was accomplished even when err is non-nil.
func (p *Processor) ProcessChannel(ctx context.Context, yt client.Client, ch *model.Channel, opts Options) (*Result, error) {
	result := newResult()

	playlist, err := p.resolvePlaylist(ctx, yt, ch, opts)
	if err != nil {
		return result, err
	}

	cutoff := effectiveCutoff(playlist, opts)
	lg := log.With().Str("channel_id", ch.ExternalID).Str("playlist_id", playlist.ExternalID).Logger()
	if cutoff != nil {
		lg.Info().Time("cutoff", *cutoff).Msg("Starting sync pass")
	} else {
		lg.Info().Msg("Starting full-history sync pass")
	}

	pageToken := ""
	if playlist.LastPageToken != nil {
		pageToken = *playlist.LastPageToken
		lg.Info().Msg("Resuming interrupted pass from stored page cursor")
	}

	var newestSeen *time.Time
	for {
		if err := admit(ctx, p.tracker, callOptions(opts)); err != nil {
			return result, err
		}
		page, err := yt.ListPlaylistItems(ctx, playlist.ExternalID, pageToken)
		if err != nil {
			return result, err
		}

		seeds := make(map[string]Seed)
		pageIDs := make([]string, 0, len(page.Entries))
		stopFetching := false
		for _, entry := range page.Entries {
			// Deleted or unavailable upstream videos appear with a blank ID.
			if entry.VideoID == "" {
				continue
			}
			if newestSeen == nil {
				ts := entry.PublishedAt
				newestSeen = &ts
			}
			if reachedCutoff(entry.PublishedAt, cutoff) {
				stopFetching = true
				break
			}
			seeds[entry.VideoID] = Seed{PublishedAt: entry.PublishedAt}
			pageIDs = append(pageIDs, entry.VideoID)
		}

		existing, err := p.store.FindVideosByExternalIDs(ctx, pageIDs)
		if err != nil {
			return result, fmt.Errorf("classify page items: %w", err)
		}
		for _, v := range existing {
			delete(seeds, v.ExternalID)
		}

		currentToken := tokenPtr(pageToken)

		created, err := p.fetcher.FetchAndCreate(ctx, yt, playlist, seeds, callOptions(opts))
		if err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				p.checkpointBeforeAbort(ctx, playlist, nil, currentToken)
			}
			return result, err
		}
		pageNew := p.applyNewItems(playlist, created, result)

		updated, err := p.fetcher.UpdateExisting(ctx, yt, existing, callOptions(opts))
		if err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				// Keep what this page already fetched, but leave the cursor
				// on this page so the next run retries it.
				p.checkpointBeforeAbort(ctx, playlist, pageNew, currentToken)
			}
			return result, err
		}
		result.Updated += updated

		nextToken := tokenPtr(page.NextPageToken)
		if stopFetching {
			nextToken = nil
		}
		if err := p.checkpoint.SavePageProgress(ctx, playlist, pageNew, nextToken); err != nil {
			return result, err
		}

		if stopFetching || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if err := p.finalize(ctx, playlist, result, newestSeen); err != nil {
		return result, err
	}

	lg.Info().
		Int("new", result.New).
		Int("updated", result.Updated).
		Msg("Sync pass complete")
	return result, nil
}

// resolvePlaylist fetches the channel detail, refreshes the stored title
// when upstream changed it, and resolves or creates the uploads playlist.
func (p *Processor) resolvePlaylist(ctx context.Context, yt client.Client, ch *model.Channel, opts Options) (*model.Playlist, error) {
	if err := admit(ctx, p.tracker, callOptions(opts)); err != nil {
		return nil, err
	}
	detail, err := yt.GetChannel(ctx, ch.ExternalID)
	if err != nil {
		return nil, err
	}

	if detail.Title != ch.Title {
		log.Info().
			Str("channel_id", ch.ExternalID).
			Str("old_title", ch.Title).
			Str("new_title", detail.Title).
			Msg("Refreshing channel title from upstream")
		ch.Title = detail.Title
		if err := p.store.SaveChannel(ctx, ch); err != nil {
			return nil, fmt.Errorf("refresh channel title: %w", err)
		}
	}

	playlist, err := p.store.FindPlaylistByExternalID(ctx, detail.UploadsPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("resolve playlist: %w", err)
	}
	if playlist == nil {
		playlist = &model.Playlist{
			ExternalID: detail.UploadsPlaylistID,
			Title:      fmt.Sprintf("Uploads from %s", detail.Title),
			ChannelID:  ch.ID,
		}
		if err := p.store.SavePlaylist(ctx, playlist); err != nil {
			return nil, fmt.Errorf("create playlist: %w", err)
		}
		log.Info().
			Str("channel_id", ch.ExternalID).
			Str("playlist_id", playlist.ExternalID).
			Msg("Created uploads playlist")
	}
	return playlist, nil
}

// effectiveCutoff picks the publish timestamp below which items are
// assumed already ingested for this pass.
func effectiveCutoff(playlist *model.Playlist, opts Options) *time.Time {
	cutoff := playlist.ProcessedAt
	if opts.RequestCutoff == nil {
		return cutoff
	}
	if opts.ForceCutoff || cutoff == nil || opts.RequestCutoff.After(*cutoff) {
		return opts.RequestCutoff
	}
	return cutoff
}

// reachedCutoff reports whether an entry published at ts is the
// oldest-boundary signal for this pass. The enumeration endpoint returns
// entries newest first, so the first entry not strictly after the cutoff
// means everything from here on is already ingested. Revisit this
// predicate before pointing the pipeline at a provider without that
// ordering guarantee.
func reachedCutoff(ts time.Time, cutoff *time.Time) bool {
	return cutoff != nil && !ts.After(*cutoff)
}

// applyNewItems folds freshly built items into the pass result. A record
// the store cannot hold (invalid text encoding) is logged and dropped
// without aborting the page; the rest is still checkpointed.
func (p *Processor) applyNewItems(playlist *model.Playlist, created []*model.Video, result *Result) []*model.Video {
	applied := make([]*model.Video, 0, len(created))
	for _, v := range created {
		if !utf8.ValidString(v.Title) || !utf8.ValidString(v.Description) {
			log.Error().
				Str("playlist_id", playlist.ExternalID).
				Str("video_id", v.ExternalID).
				Msg("Dropping video with invalid text encoding")
			continue
		}
		applied = append(applied, v)
		result.New++
		result.LiveStateCounts[v.LiveState]++
	}
	return applied
}

// checkpointBeforeAbort attempts a best-effort checkpoint on the way out
// of a quota abort; the quota condition itself still propagates.
func (p *Processor) checkpointBeforeAbort(ctx context.Context, playlist *model.Playlist, items []*model.Video, currentToken *string) {
	if err := p.checkpoint.SavePageProgress(ctx, playlist, items, currentToken); err != nil {
		log.Error().Err(err).Str("playlist_id", playlist.ExternalID).Msg("Failed to checkpoint page before quota abort")
	}
}

// finalize completes the pass: the watermark advances to the newest
// publish timestamp observed when at least one new item was found, and
// the cursor is cleared.
func (p *Processor) finalize(ctx context.Context, playlist *model.Playlist, result *Result, newestSeen *time.Time) error {
	if result.New > 0 && newestSeen != nil {
		playlist.ProcessedAt = newestSeen
	}
	playlist.LastPageToken = nil
	if err := p.store.SavePlaylist(ctx, playlist); err != nil {
		return fmt.Errorf("finalize playlist: %w", err)
	}
	return nil
}

func callOptions(opts Options) CallOptions {
	return CallOptions{
		Delay:          opts.Delay,
		QuotaLimit:     opts.QuotaLimit,
		QuotaThreshold: opts.QuotaThreshold,
	}
}

func tokenPtr(token string) *string {
	if token == "" {
		return nil
	}
	return &token
}
