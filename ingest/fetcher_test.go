package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/ytingest/client"
	"github.com/streamvault/ytingest/model"
)

func TestFetchAndCreateEmptySeedMap(t *testing.T) {
	env := newTestEnv()
	yt := &fakeClient{}
	playlist := &model.Playlist{ID: 1, ExternalID: "UU1"}

	videos, err := env.fetcher.FetchAndCreate(context.Background(), yt, playlist, nil, defaultCallOptions())
	require.NoError(t, err)
	assert.Empty(t, videos)
	assert.Zero(t, yt.totalCalls(), "an empty seed map must not reach the network")
}

func TestFetchAndCreateQuotaDeniedBeforeCall(t *testing.T) {
	env := newTestEnv()
	yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": detail("v1", "one")}}
	playlist := &model.Playlist{ID: 1, ExternalID: "UU1"}
	seeds := map[string]Seed{"v1": {PublishedAt: ts(12)}}

	opts := CallOptions{QuotaLimit: 0, QuotaThreshold: 0}
	_, err := env.fetcher.FetchAndCreate(context.Background(), yt, playlist, seeds, opts)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Zero(t, yt.totalCalls(), "quota denial must precede any network call")
}

func TestFetchAndCreateBuildsFromSeedTimestamp(t *testing.T) {
	env := newTestEnv()
	d := detail("v1", "one")
	yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": d}}
	playlist := &model.Playlist{ID: 7, ExternalID: "UU1"}
	seedTime := ts(9)
	seeds := map[string]Seed{"v1": {PublishedAt: seedTime}}

	videos, err := env.fetcher.FetchAndCreate(context.Background(), yt, playlist, seeds, defaultCallOptions())
	require.NoError(t, err)
	require.Len(t, videos, 1)

	v := videos[0]
	assert.Equal(t, "v1", v.ExternalID)
	assert.Equal(t, int64(7), v.PlaylistID)
	assert.Equal(t, "one", v.Title)
	assert.Equal(t, model.LiveStateStandard, v.LiveState)
	assert.True(t, v.PublishedAt.Equal(seedTime), "publish timestamp must come from the enumeration seed")
}

func TestFetchAndCreateDropsUnseededResults(t *testing.T) {
	env := newTestEnv()
	// Answer v1's batch with a stray video that was never requested,
	// simulating a mismatched upstream batch boundary.
	yt := &fakeClient{details: map[string]*client.VideoDetail{
		"v1": detail("v9", "stray"),
	}}
	playlist := &model.Playlist{ID: 1, ExternalID: "UU1"}
	seeds := map[string]Seed{"v1": {PublishedAt: ts(9)}}

	videos, err := env.fetcher.FetchAndCreate(context.Background(), yt, playlist, seeds, defaultCallOptions())
	require.NoError(t, err)
	assert.Empty(t, videos, "results outside the seed map are silently dropped")
}

func TestFetchAndCreateThumbnailPreference(t *testing.T) {
	tests := []struct {
		name       string
		thumbnails map[string]string
		expected   string
	}{
		{
			name:       "maxres wins",
			thumbnails: map[string]string{"default": "d", "high": "h", "maxres": "m"},
			expected:   "m",
		},
		{
			name:       "high when maxres and standard absent",
			thumbnails: map[string]string{"default": "d", "high": "h"},
			expected:   "h",
		},
		{
			name:       "standard beats high",
			thumbnails: map[string]string{"standard": "s", "high": "h", "medium": "me"},
			expected:   "s",
		},
		{
			name:       "default as last resort",
			thumbnails: map[string]string{"default": "d"},
			expected:   "d",
		},
		{
			name:       "no thumbnails is not an error",
			thumbnails: map[string]string{},
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			d := detail("v1", "one")
			d.Thumbnails = tt.thumbnails
			yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": d}}
			playlist := &model.Playlist{ID: 1, ExternalID: "UU1"}
			seeds := map[string]Seed{"v1": {PublishedAt: ts(9)}}

			videos, err := env.fetcher.FetchAndCreate(context.Background(), yt, playlist, seeds, defaultCallOptions())
			require.NoError(t, err)
			require.Len(t, videos, 1)
			assert.Equal(t, tt.expected, videos[0].ThumbnailURL)
		})
	}
}

func TestFetchAndCreateScheduledStartOnlyWhenPresent(t *testing.T) {
	env := newTestEnv()
	start := ts(15)
	upcoming := detail("v1", "premiere")
	upcoming.LiveBroadcastContent = "upcoming"
	upcoming.ScheduledStartAt = &start
	plain := detail("v2", "plain")

	yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": upcoming, "v2": plain}}
	playlist := &model.Playlist{ID: 1, ExternalID: "UU1"}
	seeds := map[string]Seed{
		"v1": {PublishedAt: ts(9)},
		"v2": {PublishedAt: ts(8)},
	}

	videos, err := env.fetcher.FetchAndCreate(context.Background(), yt, playlist, seeds, defaultCallOptions())
	require.NoError(t, err)
	require.Len(t, videos, 2)

	byID := map[string]*model.Video{}
	for _, v := range videos {
		byID[v.ExternalID] = v
	}
	require.NotNil(t, byID["v1"].ScheduledStartAt)
	assert.True(t, byID["v1"].ScheduledStartAt.Equal(start))
	assert.Equal(t, model.LiveStateUpcoming, byID["v1"].LiveState)
	assert.Nil(t, byID["v2"].ScheduledStartAt)
}

func TestFetchAndCreateInterruptedDelay(t *testing.T) {
	env := newTestEnv()
	yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": detail("v1", "one")}}
	playlist := &model.Playlist{ID: 1, ExternalID: "UU1"}
	seeds := map[string]Seed{"v1": {PublishedAt: ts(9)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := defaultCallOptions()
	opts.Delay = time.Hour
	_, err := env.fetcher.FetchAndCreate(ctx, yt, playlist, seeds, opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, yt.totalCalls(), "a cancelled delay must not reach the network")
}

func TestUpdateExistingIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	existing := &model.Video{
		ExternalID:  "v1",
		PlaylistID:  1,
		Title:       "one",
		Description: "description of v1",
		Kind:        "youtube#video",
		PublishedAt: ts(9),
		LiveState:   model.LiveStateStandard,
	}
	require.NoError(t, env.mem.SaveVideos(ctx, []*model.Video{existing}))

	yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": detail("v1", "one")}}
	updated, err := env.fetcher.UpdateExisting(ctx, yt, []*model.Video{existing}, defaultCallOptions())
	require.NoError(t, err)
	assert.Zero(t, updated, "unchanged upstream data persists zero records")
}

func TestUpdateExistingPersistsChangedFields(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	existing := &model.Video{
		ExternalID:       "v1",
		PlaylistID:       1,
		Title:            "old title",
		Description:      "description of v1",
		Kind:             "youtube#video",
		PublishedAt:      ts(9),
		LiveState:        model.LiveStateUpcoming,
		ScheduledStartAt: timeRef(ts(15)),
	}
	require.NoError(t, env.mem.SaveVideos(ctx, []*model.Video{existing}))

	// Upstream: title changed, premiere went live, scheduled start dropped.
	d := detail("v1", "new title")
	d.LiveBroadcastContent = "live"
	yt := &fakeClient{details: map[string]*client.VideoDetail{"v1": d}}

	updated, err := env.fetcher.UpdateExisting(ctx, yt, []*model.Video{existing}, defaultCallOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	stored := env.mem.VideoByExternalID("v1")
	require.NotNil(t, stored)
	assert.Equal(t, "new title", stored.Title)
	assert.Equal(t, model.LiveStateLive, stored.LiveState)
	assert.Nil(t, stored.ScheduledStartAt)
	// The publish timestamp is never part of the diff.
	assert.True(t, stored.PublishedAt.Equal(ts(9)))
}

func TestUpdateExistingEmptyInput(t *testing.T) {
	env := newTestEnv()
	yt := &fakeClient{}
	updated, err := env.fetcher.UpdateExisting(context.Background(), yt, nil, defaultCallOptions())
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, yt.totalCalls())
}

func TestUpdateExistingQuotaDenied(t *testing.T) {
	env := newTestEnv()
	yt := &fakeClient{}
	existing := []*model.Video{{ExternalID: "v1"}}

	opts := CallOptions{QuotaLimit: 0}
	_, err := env.fetcher.UpdateExisting(context.Background(), yt, existing, opts)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Zero(t, yt.totalCalls())
}
