package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

// DataClient implements Client on top of the YouTube Data API v3.
type DataClient struct {
	service *ytapi.Service
	apiKey  string
}

// NewDataClient creates a YouTube data client. Connect must be called
// before use.
func NewDataClient(apiKey string) (*DataClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}
	return &DataClient{apiKey: apiKey}, nil
}

// Connect establishes a connection to the YouTube API.
func (c *DataClient) Connect(ctx context.Context) error {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	service, err := ytapi.NewService(ctx, option.WithAPIKey(c.apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create YouTube service")
		return fmt.Errorf("failed to create YouTube service: %w", err)
	}

	c.service = service
	log.Debug().Msg("Connected to YouTube API")
	return nil
}

// GetChannel retrieves a channel's title and uploads-playlist ID.
func (c *DataClient) GetChannel(ctx context.Context, channelID string) (*ChannelDetail, error) {
	const op = "channels.list"
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected")
	}

	response, err := c.service.Channels.List([]string{"snippet", "contentDetails"}).
		Id(channelID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("Failed to get channel from YouTube API")
		return nil, classify(op, err)
	}

	if len(response.Items) == 0 {
		log.Error().Str("channel_id", channelID).Msg("Channel not found on YouTube")
		return nil, requestErrorf(op, "channel not found on YouTube: %s", channelID)
	}

	item := response.Items[0]
	detail := &ChannelDetail{
		ExternalID: item.Id,
		Title:      item.Snippet.Title,
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		detail.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}
	if detail.UploadsPlaylistID == "" {
		return nil, requestErrorf(op, "channel %s has no uploads playlist", channelID)
	}

	log.Debug().
		Str("channel_id", detail.ExternalID).
		Str("title", detail.Title).
		Str("uploads_playlist_id", detail.UploadsPlaylistID).
		Msg("YouTube channel info retrieved")

	return detail, nil
}

// ListPlaylistItems retrieves one page of a playlist's items, newest first.
func (c *DataClient) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (*PlaylistPage, error) {
	const op = "playlistItems.list"
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected")
	}

	call := c.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(MaxBatchSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	response, err := call.Do()
	if err != nil {
		log.Error().Err(err).Str("playlist_id", playlistID).Msg("Failed to list playlist items")
		return nil, classify(op, err)
	}

	// A nil items array means zero results, not an error.
	page := &PlaylistPage{
		Entries:       make([]PlaylistEntry, 0, len(response.Items)),
		NextPageToken: response.NextPageToken,
	}
	for _, item := range response.Items {
		entry := PlaylistEntry{}
		if item.ContentDetails != nil {
			entry.VideoID = item.ContentDetails.VideoId
		}

		// contentDetails.videoPublishedAt is the video's own publish time;
		// snippet.publishedAt is only when it was added to the playlist.
		raw := ""
		if item.ContentDetails != nil {
			raw = item.ContentDetails.VideoPublishedAt
		}
		if raw == "" && item.Snippet != nil {
			raw = item.Snippet.PublishedAt
		}
		publishedAt, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			log.Warn().Str("video_id", entry.VideoID).Str("date", raw).Msg("Failed to parse playlist item publish date, skipping entry")
			continue
		}
		entry.PublishedAt = publishedAt
		page.Entries = append(page.Entries, entry)
	}

	return page, nil
}

// ListVideos retrieves full details for a batch of video IDs.
func (c *DataClient) ListVideos(ctx context.Context, videoIDs []string) ([]*VideoDetail, error) {
	const op = "videos.list"
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected")
	}
	if len(videoIDs) > MaxBatchSize {
		return nil, fmt.Errorf("video detail batch of %d exceeds the %d-ID ceiling", len(videoIDs), MaxBatchSize)
	}

	response, err := c.service.Videos.List([]string{"snippet", "liveStreamingDetails"}).
		Id(videoIDs...).
		Context(ctx).
		Do()
	if err != nil {
		log.Error().Err(err).Strs("video_ids", videoIDs).Msg("Failed to get video details")
		return nil, classify(op, err)
	}

	details := make([]*VideoDetail, 0, len(response.Items))
	for _, item := range response.Items {
		detail := &VideoDetail{
			ExternalID: item.Id,
			Kind:       item.Kind,
		}
		if item.Snippet != nil {
			detail.Title = item.Snippet.Title
			detail.Description = item.Snippet.Description
			detail.LiveBroadcastContent = normalizeLiveBroadcastContent(item.Snippet.LiveBroadcastContent)
			detail.Thumbnails = extractThumbnails(item.Snippet.Thumbnails)
		}
		if item.LiveStreamingDetails != nil && item.LiveStreamingDetails.ScheduledStartTime != "" {
			start, perr := time.Parse(time.RFC3339, item.LiveStreamingDetails.ScheduledStartTime)
			if perr != nil {
				log.Warn().Str("video_id", item.Id).Str("date", item.LiveStreamingDetails.ScheduledStartTime).Msg("Failed to parse scheduled start time")
			} else {
				detail.ScheduledStartAt = &start
			}
		}
		details = append(details, detail)
	}

	return details, nil
}

// normalizeLiveBroadcastContent maps the Data API's "none" onto the
// pipeline's standard state.
func normalizeLiveBroadcastContent(raw string) string {
	if raw == "none" {
		return "standard"
	}
	return raw
}

func extractThumbnails(t *ytapi.ThumbnailDetails) map[string]string {
	thumbnails := make(map[string]string)
	if t == nil {
		return thumbnails
	}
	if t.Default != nil {
		thumbnails["default"] = t.Default.Url
	}
	if t.Medium != nil {
		thumbnails["medium"] = t.Medium.Url
	}
	if t.High != nil {
		thumbnails["high"] = t.High.Url
	}
	if t.Standard != nil {
		thumbnails["standard"] = t.Standard.Url
	}
	if t.Maxres != nil {
		thumbnails["maxres"] = t.Maxres.Url
	}
	return thumbnails
}
