package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/streamvault/ytingest/client"
	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/quota"
	"github.com/streamvault/ytingest/store"
)

// listCallCost is the upstream cost of one list-style API call.
const listCallCost = 1

// thumbnailPreference orders thumbnail resolutions best first.
var thumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

// Seed carries the enumeration-step metadata for a video about to be
// created. The publish timestamp comes from here, never from the detail
// call, whose own timestamp field is unreliable for ordering.
type Seed struct {
	PublishedAt time.Time
}

// CallOptions parameterize one quota-admitted upstream call.
type CallOptions struct {
	Delay          time.Duration
	QuotaLimit     int64
	QuotaThreshold int64
}

// admit gates an upstream call: quota check first (no partial call on
// denial), then the caller-specified inter-request delay, then the usage
// record. The delay honors cancellation; an interrupted wait surfaces the
// context error rather than being swallowed.
func admit(ctx context.Context, tracker *quota.Tracker, opts CallOptions) error {
	ok, err := tracker.HasSufficientQuota(ctx, opts.QuotaLimit, opts.QuotaThreshold)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}
	if !ok {
		return ErrQuotaExceeded
	}
	if opts.Delay > 0 {
		timer := time.NewTimer(opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("inter-request delay interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	if err := tracker.RecordUsage(ctx, listCallCost); err != nil {
		return fmt.Errorf("record quota usage: %w", err)
	}
	return nil
}

// DetailFetcher resolves batches of video IDs against the upstream detail
// endpoint, either building new records or diffing existing ones.
type DetailFetcher struct {
	tracker *quota.Tracker
	store   store.Store
}

// NewDetailFetcher creates a DetailFetcher.
func NewDetailFetcher(tracker *quota.Tracker, st store.Store) *DetailFetcher {
	return &DetailFetcher{tracker: tracker, store: st}
}

// FetchAndCreate issues one batched detail call for the seeded IDs and
// builds a full Video per returned item. IDs returned by upstream but
// absent from the seed map are dropped: the upstream batch boundary is not
// assumed to exactly match the request. The built records are not
// persisted here; the page checkpoint owns that write.
func (f *DetailFetcher) FetchAndCreate(ctx context.Context, yt client.Client, playlist *model.Playlist, seeds map[string]Seed, opts CallOptions) ([]*model.Video, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	if len(seeds) > client.MaxBatchSize {
		return nil, fmt.Errorf("seed batch of %d exceeds the %d-ID ceiling", len(seeds), client.MaxBatchSize)
	}
	if err := admit(ctx, f.tracker, opts); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seeds))
	for id := range seeds {
		ids = append(ids, id)
	}
	details, err := yt.ListVideos(ctx, ids)
	if err != nil {
		return nil, err
	}

	videos := make([]*model.Video, 0, len(details))
	for _, d := range details {
		seed, ok := seeds[d.ExternalID]
		if !ok {
			log.Debug().Str("video_id", d.ExternalID).Msg("Dropping detail result absent from the seed batch")
			continue
		}
		state, perr := model.ParseLiveBroadcastState(d.LiveBroadcastContent)
		if perr != nil {
			return nil, perr
		}
		videos = append(videos, &model.Video{
			ExternalID:       d.ExternalID,
			PlaylistID:       playlist.ID,
			Title:            d.Title,
			Description:      d.Description,
			Kind:             d.Kind,
			PublishedAt:      seed.PublishedAt,
			LiveState:        state,
			ScheduledStartAt: d.ScheduledStartAt,
			ThumbnailURL:     bestThumbnail(d.Thumbnails),
		})
	}

	log.Debug().
		Str("playlist_id", playlist.ExternalID).
		Int("requested", len(seeds)).
		Int("built", len(videos)).
		Msg("Built new videos from detail batch")

	return videos, nil
}

// UpdateExisting issues one batched detail call for the given records and
// overwrites any field that changed upstream. Only records with at least
// one changed field are persisted; the count persisted is returned.
func (f *DetailFetcher) UpdateExisting(ctx context.Context, yt client.Client, existing []*model.Video, opts CallOptions) (int, error) {
	if len(existing) == 0 {
		return 0, nil
	}
	if len(existing) > client.MaxBatchSize {
		return 0, fmt.Errorf("update batch of %d exceeds the %d-ID ceiling", len(existing), client.MaxBatchSize)
	}
	if err := admit(ctx, f.tracker, opts); err != nil {
		return 0, err
	}

	byID := make(map[string]*model.Video, len(existing))
	ids := make([]string, 0, len(existing))
	for _, v := range existing {
		byID[v.ExternalID] = v
		ids = append(ids, v.ExternalID)
	}
	details, err := yt.ListVideos(ctx, ids)
	if err != nil {
		return 0, err
	}

	var changed []*model.Video
	for _, d := range details {
		v, ok := byID[d.ExternalID]
		if !ok {
			continue
		}
		state, perr := model.ParseLiveBroadcastState(d.LiveBroadcastContent)
		if perr != nil {
			return 0, perr
		}

		dirty := false
		if v.Title != d.Title {
			v.Title = d.Title
			dirty = true
		}
		if v.Description != d.Description {
			v.Description = d.Description
			dirty = true
		}
		if v.LiveState != state {
			v.LiveState = state
			dirty = true
		}
		if !timePtrEqual(v.ScheduledStartAt, d.ScheduledStartAt) {
			v.ScheduledStartAt = d.ScheduledStartAt
			dirty = true
		}
		if dirty {
			changed = append(changed, v)
		}
	}

	if len(changed) == 0 {
		return 0, nil
	}
	if err := f.store.SaveVideos(ctx, changed); err != nil {
		return 0, fmt.Errorf("persist updated videos: %w", err)
	}

	log.Debug().Int("checked", len(existing)).Int("updated", len(changed)).Msg("Diffed existing videos against detail batch")
	return len(changed), nil
}

// bestThumbnail picks the highest-resolution thumbnail URL present.
func bestThumbnail(thumbnails map[string]string) string {
	for _, key := range thumbnailPreference {
		if url := thumbnails[key]; url != "" {
			return url
		}
	}
	return ""
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
