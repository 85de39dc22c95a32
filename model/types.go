// Package model defines the catalog records the ingestion pipeline
// synchronizes: channels, their uploads playlists, videos, and daily
// quota usage.
package model

import (
	"fmt"
	"strings"
	"time"
)

// LiveBroadcastState describes the broadcast lifecycle of a video.
type LiveBroadcastState string

const (
	LiveStateStandard LiveBroadcastState = "STANDARD"
	LiveStateUpcoming LiveBroadcastState = "UPCOMING"
	LiveStateLive     LiveBroadcastState = "LIVE"
)

// InvalidDataError reports a field value outside the pipeline's expected
// domain. It signals a defect in upstream data or in our mapping, not a
// condition to retry.
type InvalidDataError struct {
	Field string
	Value string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Field, e.Value)
}

// ParseLiveBroadcastState maps a raw upstream value to a
// LiveBroadcastState. A missing value means a plain video.
func ParseLiveBroadcastState(raw string) (LiveBroadcastState, error) {
	if raw == "" {
		return LiveStateStandard, nil
	}
	switch s := LiveBroadcastState(strings.ToUpper(raw)); s {
	case LiveStateStandard, LiveStateUpcoming, LiveStateLive:
		return s, nil
	}
	return "", &InvalidDataError{Field: "live broadcast state", Value: raw}
}

// Channel is an external channel tracked by the catalog. ExternalID is the
// immutable upstream identifier; Title is refreshed from upstream.
type Channel struct {
	ID         int64
	ExternalID string
	Title      string
}

// Playlist is a channel's uploads playlist. It carries the only durable
// resumption state of the pipeline: ProcessedAt is the publish timestamp of
// the newest item fully accounted for, and LastPageToken is the pagination
// cursor of an in-flight sync pass (nil when none is in flight).
type Playlist struct {
	ID            int64
	ExternalID    string
	Title         string
	ChannelID     int64
	ProcessedAt   *time.Time
	LastPageToken *string
}

// Video is one uploaded item of a playlist, keyed by the globally unique
// upstream video identifier.
type Video struct {
	ID               int64
	ExternalID       string
	PlaylistID       int64
	Title            string
	Description      string
	Kind             string
	PublishedAt      time.Time
	LiveState        LiveBroadcastState
	ScheduledStartAt *time.Time
	ThumbnailURL     string
}

// Processable reports whether the video is ready for downstream consumers:
// a standard video, or a live/upcoming one whose scheduled start has passed.
func (v *Video) Processable(now time.Time) bool {
	if v.LiveState == LiveStateStandard {
		return true
	}
	return v.ScheduledStartAt != nil && !v.ScheduledStartAt.After(now)
}

// QuotaUsage is the accumulated API cost for one calendar day in the
// configured quota-reset timezone. Day is formatted as 2006-01-02.
type QuotaUsage struct {
	Day  string
	Cost int64
}
