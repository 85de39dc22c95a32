package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/streamvault/ytingest/client"
	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/quota"
	"github.com/streamvault/ytingest/store"
)

// fakeClient scripts the upstream API and records every call it receives.
type fakeClient struct {
	channel    *client.ChannelDetail
	channelErr error

	// pages is keyed by the requested page token ("" for the first page).
	pages    map[string]*client.PlaylistPage
	pagesErr error

	details    map[string]*client.VideoDetail
	detailsErr error

	channelCalls int
	pageCalls    []string
	detailCalls  [][]string
}

func (f *fakeClient) GetChannel(ctx context.Context, channelID string) (*client.ChannelDetail, error) {
	f.channelCalls++
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return f.channel, nil
}

func (f *fakeClient) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (*client.PlaylistPage, error) {
	f.pageCalls = append(f.pageCalls, pageToken)
	if f.pagesErr != nil {
		return nil, f.pagesErr
	}
	page, ok := f.pages[pageToken]
	if !ok {
		return nil, fmt.Errorf("no scripted page for token %q", pageToken)
	}
	return page, nil
}

func (f *fakeClient) ListVideos(ctx context.Context, videoIDs []string) ([]*client.VideoDetail, error) {
	ids := append([]string(nil), videoIDs...)
	f.detailCalls = append(f.detailCalls, ids)
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	var details []*client.VideoDetail
	for _, id := range videoIDs {
		if d, ok := f.details[id]; ok {
			details = append(details, d)
		}
	}
	return details, nil
}

func (f *fakeClient) totalCalls() int {
	return f.channelCalls + len(f.pageCalls) + len(f.detailCalls)
}

func ts(hour int) time.Time {
	return time.Date(2023, 1, 1, hour, 0, 0, 0, time.UTC)
}

func detail(id, title string) *client.VideoDetail {
	return &client.VideoDetail{
		ExternalID:           id,
		Title:                title,
		Description:          "description of " + id,
		Kind:                 "youtube#video",
		LiveBroadcastContent: "standard",
		Thumbnails:           map[string]string{"default": "https://i.ytimg.com/" + id + "/default.jpg"},
	}
}

func entry(id string, publishedAt time.Time) client.PlaylistEntry {
	return client.PlaylistEntry{VideoID: id, PublishedAt: publishedAt}
}

// testEnv bundles the pipeline wired over the in-memory store.
type testEnv struct {
	mem       *store.Memory
	tracker   *quota.Tracker
	processor *Processor
	fetcher   *DetailFetcher
}

func newTestEnv() *testEnv {
	mem := store.NewMemory()
	tracker := quota.New(mem, time.UTC)
	return &testEnv{
		mem:       mem,
		tracker:   tracker,
		processor: NewProcessor(mem, tracker),
		fetcher:   NewDetailFetcher(tracker, mem),
	}
}

func defaultOptions() Options {
	return Options{QuotaLimit: 10000, QuotaThreshold: 0}
}

func defaultCallOptions() CallOptions {
	return CallOptions{QuotaLimit: 10000, QuotaThreshold: 0}
}

// seedChannel stores a channel and returns it.
func (e *testEnv) seedChannel(externalID, title string) *model.Channel {
	ch := &model.Channel{ExternalID: externalID, Title: title}
	if err := e.mem.SaveChannel(context.Background(), ch); err != nil {
		panic(err)
	}
	return ch
}

// seedPlaylist stores a playlist and returns it.
func (e *testEnv) seedPlaylist(externalID string, channelID int64, processedAt *time.Time, lastPageToken *string) *model.Playlist {
	pl := &model.Playlist{
		ExternalID:    externalID,
		Title:         "Uploads",
		ChannelID:     channelID,
		ProcessedAt:   processedAt,
		LastPageToken: lastPageToken,
	}
	if err := e.mem.SavePlaylist(context.Background(), pl); err != nil {
		panic(err)
	}
	return pl
}

func timeRef(t time.Time) *time.Time { return &t }

func strRef(s string) *string { return &s }
