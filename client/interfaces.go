// Package client provides access to the upstream video platform API. It
// exposes the three read-only endpoints the ingestion pipeline consumes:
// channel lookup, playlist-item enumeration, and batched video detail.
package client

import (
	"context"
	"time"
)

// MaxBatchSize is the upstream ceiling on page size and on the number of
// video IDs accepted by a single detail call.
const MaxBatchSize = 50

// ChannelDetail is the subset of channel data the pipeline needs.
type ChannelDetail struct {
	ExternalID        string
	Title             string
	UploadsPlaylistID string
}

// PlaylistEntry is one enumerated playlist item. VideoID is empty when the
// upstream video has been deleted or made unavailable.
type PlaylistEntry struct {
	VideoID     string
	PublishedAt time.Time
}

// PlaylistPage is one page of enumerated playlist items. NextPageToken is
// empty on the last page.
type PlaylistPage struct {
	Entries       []PlaylistEntry
	NextPageToken string
}

// VideoDetail is the full detail payload for one video.
type VideoDetail struct {
	ExternalID           string
	Title                string
	Description          string
	Kind                 string
	LiveBroadcastContent string
	ScheduledStartAt     *time.Time
	Thumbnails           map[string]string
}

// Client defines the upstream API operations used by the pipeline. It is
// pure transport: quota admission and rate limiting happen in the caller.
type Client interface {
	// GetChannel retrieves a channel's title and uploads-playlist ID.
	GetChannel(ctx context.Context, channelID string) (*ChannelDetail, error)

	// ListPlaylistItems retrieves one page of playlist items, newest first.
	// An empty pageToken requests the first page.
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (*PlaylistPage, error)

	// ListVideos retrieves details for up to MaxBatchSize video IDs.
	ListVideos(ctx context.Context, videoIDs []string) ([]*VideoDetail, error)
}
